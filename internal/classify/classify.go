// Package classify turns raw thread items into normalized archive messages.
// Classification happens exactly once, up front: Parse decides which of the
// fixed shapes a raw item is, and everything downstream operates on that
// decision, never on the raw payload again.
package classify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind is the classified shape of a raw item.
type Kind int

const (
	KindText Kind = iota
	KindReel
	KindPhoto
	KindVideo
	KindVisualAlbum       // per-item array of visual media
	KindGenericShareAlbum // cross-app share with attached previews
	KindCarouselShare     // feed-post carousel
	KindStoryShare
	KindVoice
	KindLink
	KindGIF
	KindUnknown
)

// Item is one classified thread item. Timestamp is the UTC send instant.
type Item struct {
	ID        string
	SenderID  string
	Timestamp time.Time
	Kind      Kind

	raw rawItem
}

// RemoteType returns the service's own item type string, used as the stored
// type for unrecognized shapes.
func (it Item) RemoteType() string { return it.raw.ItemType }

// Parse decodes and classifies one raw thread item. A missing timestamp is
// item-local trouble, not a reason to drop the item: the zero time sorts the
// item as accepted on incremental runs, which errs on the side of archiving.
func Parse(data json.RawMessage) (Item, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return Item{}, fmt.Errorf("decode thread item: %w", err)
	}
	if raw.ItemID == "" {
		return Item{}, fmt.Errorf("thread item has no item_id")
	}

	it := Item{
		ID:       raw.ItemID,
		SenderID: "user_" + strconv.FormatInt(raw.UserID, 10),
		Kind:     classifyShape(&raw),
		raw:      raw,
	}
	if raw.Timestamp > 0 {
		it.Timestamp = time.UnixMicro(raw.Timestamp).UTC()
	}
	return it, nil
}

// classifyShape applies the dispatch rules in fixed priority order. The
// order matters: one raw item can partially match several shapes (a reel
// share also carries media, a carousel share also carries image versions).
func classifyShape(raw *rawItem) Kind {
	switch {
	case raw.Text != "":
		return KindText

	case raw.Clip != nil || len(raw.FelixShare) > 0:
		return KindReel

	// Single-asset payloads: an inline media object, a one-element visual
	// media wrapper, or a non-carousel feed share.
	case raw.Media != nil && raw.Media.videoURL() != "":
		return KindVideo
	case raw.Media != nil && raw.Media.imageURL() != "":
		return KindPhoto
	case len(raw.VisualMedia) == 1:
		if raw.VisualMedia[0].Media.videoURL() != "" {
			return KindVideo
		}
		return KindPhoto
	case raw.MediaShare != nil && len(raw.MediaShare.CarouselMedia) == 0 &&
		(raw.MediaShare.ImageVersions2 != nil || len(raw.MediaShare.VideoVersions) > 0):
		if len(raw.MediaShare.VideoVersions) > 0 {
			return KindVideo
		}
		return KindPhoto

	case len(raw.VisualMedia) >= 2:
		return KindVisualAlbum

	case len(raw.GenericXMA) >= 4:
		return KindGenericShareAlbum

	case raw.MediaShare != nil && len(raw.MediaShare.CarouselMedia) > 0:
		return KindCarouselShare

	case raw.StoryShare != nil:
		return KindStoryShare

	case raw.VoiceMedia != nil:
		return KindVoice

	case raw.Link != nil:
		return KindLink

	case raw.AnimatedMedia != nil:
		return KindGIF

	// A short cross-app share matched nothing above; it is still an album
	// as far as the archive is concerned, extraction is attempted later.
	case len(raw.GenericXMA) > 0:
		return KindGenericShareAlbum

	default:
		return KindUnknown
	}
}
