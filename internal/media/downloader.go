// Package media persists binary assets for archived messages under the
// conversation's media directory.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"dmarchive/internal/domain"
)

// Fetcher streams the binary content behind a media URL. The session client
// satisfies this.
type Fetcher interface {
	DownloadMedia(ctx context.Context, url string) (io.ReadCloser, error)
}

// Downloader writes media assets to disk with deterministic names:
// <runTimestamp>_<sequenceIndex>_<kind>.<ext>. The run timestamp plus a
// per-run sequence counter guarantees uniqueness within a run; reruns only
// ever touch items the early-stop filter accepted, so names cannot collide
// across runs either.
type Downloader struct {
	fetch    Fetcher
	dir      string // absolute media directory
	subdir   string // directory name recorded in local paths
	runStamp string
	seq      atomic.Int64
	logger   *slog.Logger
}

func NewDownloader(fetch Fetcher, mediaDir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		fetch:    fetch,
		dir:      mediaDir,
		subdir:   filepath.Base(mediaDir),
		runStamp: time.Now().Format("20060102_150405"),
		logger:   logger,
	}
}

// Download fetches ref.RemoteURL and writes it under the media directory.
// On success ref.LocalPath is set (relative to the conversation folder) and
// ref.RemoteURL is cleared. On failure the ref is left untouched; there is
// no retry, a failed asset is picked up as a degraded reference.
func (d *Downloader) Download(ctx context.Context, ref *domain.MediaRef) error {
	if ref.RemoteURL == "" {
		return fmt.Errorf("media ref has no remote url")
	}

	name := fmt.Sprintf("%s_%04d_%s.%s", d.runStamp, d.seq.Add(1), ref.Kind, extFor(ref.Kind))
	path := filepath.Join(d.dir, name)

	body, err := d.fetch.DownloadMedia(ctx, ref.RemoteURL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", ref.RemoteURL, err)
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path) // partial file is worse than no file
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	ref.LocalPath = d.subdir + "/" + name
	ref.RemoteURL = ""
	d.logger.Info("downloaded media", "file", name)
	return nil
}

func extFor(kind domain.MediaKind) string {
	if kind == domain.MediaVideo {
		return "mp4"
	}
	return "jpg"
}
