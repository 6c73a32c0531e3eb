package engine

import (
	"dmarchive/internal/archive"
	"dmarchive/internal/classify"
)

// FilterNew returns the items strictly newer than the resume marker, plus
// whether pagination should continue. The batch is assumed newest-first:
// the first item at or below the marker proves every later item (and every
// later page) is already archived, so the caller must stop requesting pages,
// not merely stop yielding items. With no marker (first run) everything is
// accepted and pagination continues to the walker's own limit.
func FilterNew(items []classify.Item, marker *archive.Marker) (accepted []classify.Item, cont bool) {
	if marker == nil {
		return items, true
	}
	accepted = items[:0:0]
	for i, it := range items {
		// An item with no usable timestamp proves nothing about the pages
		// behind it; keep it and keep walking rather than lose a message.
		if it.Timestamp.IsZero() {
			accepted = append(accepted, it)
			continue
		}
		if !marker.NewerThan(it.Timestamp, it.ID) {
			return accepted, false
		}
		accepted = append(accepted, items[i])
	}
	return accepted, true
}
