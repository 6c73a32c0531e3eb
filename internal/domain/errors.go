package domain

import (
	"errors"
	"fmt"
)

// Fatal failures: the run aborts before any merge or persist.
var (
	ErrAuthFailed     = errors.New("authentication failed")
	ErrThreadNotFound = errors.New("conversation thread not found")
)

// FetchError marks a transient page-fetch failure. The engine stops
// paginating and persists whatever was merged so far; the next invocation
// resumes from the archive's new head.
type FetchError struct {
	Cursor string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("page fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("page fetch failed at cursor %s: %v", e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
