package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies what kind of conversational event a Message records.
// Unrecognized remote shapes keep the remote item type string so archived
// counts always reconcile with what the service returned.
type MessageType string

const (
	TypeText         MessageType = "text"
	TypePhoto        MessageType = "photo"
	TypeVideo        MessageType = "video"
	TypeAlbum        MessageType = "album"
	TypeSharedAlbum  MessageType = "shared_album"
	TypeStoryShare   MessageType = "story_share"
	TypeVoiceMessage MessageType = "voice_message"
	TypeLink         MessageType = "link"
	TypeGIF          MessageType = "gif"
	TypeReel         MessageType = "reel"
)

// MediaKind distinguishes image and video assets.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef points at one downloaded (or downloadable) asset. RemoteURL is
// cleared once the asset has been written to disk; it only survives into the
// archive when the download failed, so the reference is not lost.
type MediaRef struct {
	Kind      MediaKind `json:"kind"`
	RemoteURL string    `json:"remote_url,omitempty"`
	LocalPath string    `json:"local_path,omitempty"`
}

// Content is the variant payload of a Message: plain text, one or more media
// references, or nothing. It serializes as a bare string, as
// {"media": [...]}, or as null.
type Content struct {
	Text  string
	Media []MediaRef
}

func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Media) > 0 {
		return json.Marshal(struct {
			Media []MediaRef `json:"media"`
		}{c.Media})
	}
	if c.Text != "" {
		return json.Marshal(c.Text)
	}
	return []byte("null"), nil
}

func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var obj struct {
		Media []MediaRef `json:"media"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("content is neither string, media object, nor null: %w", err)
	}
	c.Media = obj.Media
	return nil
}

// Message is one logged conversational event. Timestamp carries the exact
// instant the message was sent; ordering, dedup and early-stop comparisons
// are defined on that instant, never on its rendered form. The location
// attached to Timestamp controls how it renders when persisted.
type Message struct {
	ID        string
	Timestamp time.Time
	Sender    string
	Type      MessageType
	Content   Content
}

// timestampLayout is RFC 3339 with microsecond precision, matching what the
// service delivers. The full fraction and the zone offset are included so
// the exact UTC instant survives a load round-trip; truncating here would
// make the resume marker compare older than the head it was derived from.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

type messageJSON struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	User      string      `json:"user"`
	Type      MessageType `json:"type"`
	Content   Content     `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Timestamp: m.Timestamp.Format(timestampLayout),
		User:      m.Sender,
		Type:      m.Type,
		Content:   m.Content,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(timestampLayout, raw.Timestamp)
	if err != nil {
		// Tolerate archives written before fractional seconds were kept,
		// and any other fraction width RFC 3339 allows.
		ts, err = time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return fmt.Errorf("message %s: bad timestamp %q: %w", raw.ID, raw.Timestamp, err)
		}
	}
	m.ID = raw.ID
	m.Timestamp = ts
	m.Sender = raw.User
	m.Type = raw.Type
	m.Content = raw.Content
	return nil
}
