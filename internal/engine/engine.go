// Package engine drives one synchronization run: load the archive, bound
// the fetch with the resume marker, walk thread pages newest to oldest,
// classify and extract each item, and merge the result back into the
// archive. Execution is strictly sequential; the remote service's rate
// policy rules out concurrent requests.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"dmarchive/internal/archive"
	"dmarchive/internal/classify"
	"dmarchive/internal/domain"
	"dmarchive/internal/media"
)

// updateRunItemCap bounds incremental runs that somehow never meet the
// resume marker (e.g. the head message was deleted remotely).
const updateRunItemCap = 100 * pageSize

// SkipPageFetchFailed is the skip reason recorded when pagination stops on
// a transient fetch failure; its presence means the run was cut short.
const SkipPageFetchFailed = "page fetch failed"

// Engine wires the pipeline stages together. All state flows explicitly
// between stages: the session handle, the resume marker, and the
// accumulated batch.
type Engine struct {
	Client          domain.SessionClient
	Store           *archive.Store
	Friend          string
	Reels           classify.ReelPolicy
	FirstRunItemCap int
	Stats           *Stats
	Logger          *slog.Logger
}

// Run performs one full synchronization pass. Fatal conditions (user
// resolution, thread lookup) return an error before anything is merged;
// a transient page-fetch failure stops pagination and persists what was
// merged so far, which is a normal completion.
func (e *Engine) Run(ctx context.Context) error {
	loadStart := time.Now()
	if err := e.Store.Load(); err != nil {
		return err
	}
	marker := e.Store.Marker()
	e.Stats.Phase("load", time.Since(loadStart))

	lookupStart := time.Now()
	userID, err := e.Client.ResolveUser(ctx, e.Friend)
	if err != nil {
		return err
	}
	threadID, err := e.Client.FindThreadWith(ctx, userID)
	if err != nil {
		return err
	}
	e.Stats.Phase("lookup", time.Since(lookupStart))
	e.Logger.Info("found conversation thread", "thread_id", threadID, "friend", e.Friend)

	downloader := media.NewDownloader(e.Client, e.Store.MediaDir(), e.Logger)
	extractor := &classify.Extractor{
		Downloads: downloader,
		Enrich: func(ctx context.Context, itemID string) (json.RawMessage, error) {
			return e.Client.FetchItemRaw(ctx, threadID, itemID)
		},
		Reels:  e.Reels,
		Logger: e.Logger,
	}

	itemCap := updateRunItemCap
	if marker == nil {
		itemCap = e.FirstRunItemCap
		e.Logger.Info("first run, fetching full history", "item_cap", itemCap)
	} else {
		e.Logger.Info("incremental run", "resume_id", marker.ID, "resume_ts", marker.Timestamp)
	}

	fetchStart := time.Now()
	newMsgs, err := e.walk(ctx, NewWalker(e.Client, threadID, itemCap), extractor, marker)
	e.Stats.Phase("fetch", time.Since(fetchStart))
	if err != nil {
		return err
	}

	mergeStart := time.Now()
	added, skipped := e.Store.Merge(newMsgs)
	e.Stats.ItemsMerged.Add(int64(added))
	e.Stats.DuplicatesSkipped.Add(int64(skipped))
	if err := e.Store.Persist(); err != nil {
		return err
	}
	e.Stats.Phase("merge", time.Since(mergeStart))

	e.Logger.Info("run complete",
		"new_messages", added,
		"duplicates", skipped,
		"total_messages", e.Store.Len(),
	)
	return nil
}

// walk accumulates extracted messages, newest-first, until the walker is
// exhausted or the early-stop filter proves the rest is already archived.
func (e *Engine) walk(ctx context.Context, walker *Walker, extractor *classify.Extractor, marker *archive.Marker) ([]domain.Message, error) {
	var newMsgs []domain.Message

	for {
		rawItems, ok, err := walker.Next(ctx)
		if err != nil {
			var fe *domain.FetchError
			if errors.As(err, &fe) {
				// Batch-abort: keep what we have, the archive resumes next run.
				e.Logger.Warn("transient fetch failure, stopping pagination", "err", fe)
				e.Stats.Skip(SkipPageFetchFailed)
				return newMsgs, nil
			}
			return nil, err
		}
		if !ok {
			break
		}
		e.Stats.PagesFetched.Inc()

		items := make([]classify.Item, 0, len(rawItems))
		for _, raw := range rawItems {
			e.Stats.ItemsProcessed.Inc()
			it, err := classify.Parse(raw)
			if err != nil {
				e.Logger.Warn("unparseable thread item, skipping", "err", err)
				e.Stats.Skip("unparseable item")
				continue
			}
			items = append(items, it)
		}

		accepted, cont := FilterNew(items, marker)
		for _, it := range accepted {
			msg := extractor.Extract(ctx, it)
			for _, ref := range msg.Content.Media {
				if ref.LocalPath != "" {
					e.Stats.MediaDownloaded.Inc()
				} else {
					e.Stats.MediaFailed.Inc()
				}
			}
			newMsgs = append(newMsgs, msg)
		}
		if !cont {
			e.Logger.Info("reached archived history, stopping pagination")
			break
		}
	}
	return newMsgs, nil
}
