// Package archive owns the persisted conversation: a newest-first JSON
// array of messages plus the media directory next to it. The archive is
// loaded once per run, mutated only by Merge, and written back exactly once
// via an atomic replace.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dmarchive/internal/domain"
	"dmarchive/internal/timezone"
)

const (
	archiveFile = "conversation.json"
	mediaSubdir = "photos"
)

// Marker is the resume threshold: the timestamp and id of the newest entry
// present when the run started. It bounds incremental fetches and is never
// persisted.
type Marker struct {
	Timestamp time.Time
	ID        string
}

// NewerThan reports whether an item at (ts, id) is strictly newer than the
// marker. Equal instants fall back to the id; remote ids are monotonically
// assigned decimal strings, so a longer id is a later one.
func (m *Marker) NewerThan(ts time.Time, id string) bool {
	if ts.After(m.Timestamp) {
		return true
	}
	if ts.Before(m.Timestamp) {
		return false
	}
	return CompareIDs(id, m.ID) > 0
}

// CompareIDs orders two decimal-string identifiers numerically.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Store is the persisted archive of one conversation.
type Store struct {
	dir      string
	tz       *timezone.Converter
	logger   *slog.Logger
	messages []domain.Message // newest-first
	marker   *Marker
}

// Open finds the existing conversation folder for the friend under dataDir,
// or creates a fresh one, along with the media subdirectory.
func Open(dataDir, friend string, tz *timezone.Converter, logger *slog.Logger) (*Store, error) {
	prefix := "conversation_" + friend + "_"
	matches, err := filepath.Glob(filepath.Join(dataDir, prefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	sort.Strings(matches)

	var dir string
	if len(matches) > 0 {
		dir = matches[len(matches)-1]
		logger.Info("using existing conversation folder", "dir", dir)
	} else {
		dir = filepath.Join(dataDir, prefix+time.Now().Format("20060102_150405"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation folder: %w", err)
		}
		logger.Info("created conversation folder", "dir", dir)
	}

	if err := os.MkdirAll(filepath.Join(dir, mediaSubdir), 0o755); err != nil {
		return nil, fmt.Errorf("create media folder: %w", err)
	}

	return &Store{dir: dir, tz: tz, logger: logger}, nil
}

// Dir returns the conversation folder.
func (s *Store) Dir() string { return s.dir }

// MediaDir returns the absolute media directory.
func (s *Store) MediaDir() string { return filepath.Join(s.dir, mediaSubdir) }

// Path returns the archive file location.
func (s *Store) Path() string { return filepath.Join(s.dir, archiveFile) }

// Load reads the persisted archive if present and derives the resume marker
// from the head element (the archive is newest-first, so the head is
// authoritative). A missing file is an empty archive, not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			s.messages = nil
			s.marker = nil
			s.logger.Info("no existing archive, starting fresh")
			return nil
		}
		return fmt.Errorf("read archive: %w", err)
	}

	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("parse archive %s: %w", s.Path(), err)
	}
	s.messages = msgs
	s.marker = nil
	if len(msgs) > 0 {
		s.marker = &Marker{Timestamp: msgs[0].Timestamp, ID: msgs[0].ID}
	}
	s.logger.Info("loaded archive", "messages", len(msgs))
	return nil
}

// Marker returns the resume threshold computed at Load, nil on a first run.
func (s *Store) Marker() *Marker { return s.marker }

// Len returns the number of archived messages.
func (s *Store) Len() int { return len(s.messages) }

// Messages returns the archived sequence, newest-first.
func (s *Store) Messages() []domain.Message { return s.messages }

// Merge prepends the accepted new messages (already newest-first) ahead of
// the existing sequence. Any id already present anywhere in the archive is
// skipped and logged, whatever the upstream ordering promised.
func (s *Store) Merge(newItems []domain.Message) (added, skipped int) {
	existing := make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		existing[m.ID] = struct{}{}
	}

	merged := make([]domain.Message, 0, len(newItems)+len(s.messages))
	for _, m := range newItems {
		if _, dup := existing[m.ID]; dup {
			s.logger.Warn("skipping duplicate message", "id", m.ID)
			skipped++
			continue
		}
		existing[m.ID] = struct{}{}
		merged = append(merged, m)
		added++
	}
	s.messages = append(merged, s.messages...)
	return added, skipped
}

// Persist writes the full sequence to the archive location atomically:
// serialize to a temporary file in the same directory, then rename over the
// target. A crash mid-write leaves the previous archive intact.
func (s *Store) Persist() error {
	// Normalize rendering to the target civil zone; the instant itself is
	// untouched.
	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		m.Timestamp = s.tz.Civil(m.Timestamp)
		out[i] = m
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, archiveFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace archive: %w", err)
	}

	s.logger.Info("persisted archive", "messages", len(s.messages), "path", s.Path())
	return nil
}
