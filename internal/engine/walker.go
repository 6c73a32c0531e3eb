package engine

import (
	"context"
	"encoding/json"
	"time"

	"dmarchive/internal/domain"
)

const (
	// pageSize is fixed by the remote service.
	pageSize = 20

	// pageDelay is the mandatory minimum wait between page fetches. It is a
	// correctness requirement of the remote service's abuse-prevention
	// policy, not a tuning knob: removing it risks account suspension.
	pageDelay = 1 * time.Second
)

// pageFetcher is the slice of the session client the walker needs.
type pageFetcher interface {
	FetchThreadPage(ctx context.Context, threadID, cursor string) (*domain.ThreadPage, error)
}

// Walker drives cursor-based retrieval of thread pages, newest to oldest.
// It is a finite, non-restartable sequence: once exhausted (no further
// cursor, item cap reached, or a fetch error) it stays done. Fetch errors
// are surfaced, never retried; a transient failure mid-archive means abort
// now and resume on the next invocation.
type Walker struct {
	client   pageFetcher
	threadID string
	itemCap  int

	cursor  string
	fetched int
	started bool
	done    bool
}

func NewWalker(client pageFetcher, threadID string, itemCap int) *Walker {
	return &Walker{client: client, threadID: threadID, itemCap: itemCap}
}

// Next returns the next page of raw items. ok is false once the walk is
// exhausted. The mandatory inter-page delay is applied before every fetch
// after the first, regardless of outcome.
func (w *Walker) Next(ctx context.Context) (items []json.RawMessage, ok bool, err error) {
	if w.done {
		return nil, false, nil
	}

	if w.started {
		timer := time.NewTimer(pageDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.done = true
			return nil, false, ctx.Err()
		case <-timer.C:
		}
	}
	w.started = true

	page, err := w.client.FetchThreadPage(ctx, w.threadID, w.cursor)
	if err != nil {
		w.done = true
		return nil, false, &domain.FetchError{Cursor: w.cursor, Err: err}
	}

	w.fetched += len(page.Items)
	w.cursor = page.Cursor
	if w.cursor == "" || len(page.Items) == 0 || w.fetched >= w.itemCap {
		w.done = true
	}
	return page.Items, true, nil
}
