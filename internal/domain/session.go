package domain

import (
	"context"
	"encoding/json"
	"io"
)

// LoginStatus is the outcome of one authentication step. A second factor is
// an expected protocol state, not an error: the caller decides how to supply
// the code.
type LoginStatus string

const (
	LoginSuccess           LoginStatus = "success"
	LoginNeedsSecondFactor LoginStatus = "needs_second_factor"
	LoginFailed            LoginStatus = "failed"
)

// LoginResult reports the outcome of Login or SubmitTwoFactor.
type LoginResult struct {
	Status LoginStatus
	Reason string // service-provided failure detail, empty on success
}

// ThreadPage is one page of raw thread items, newest-first within the page.
// An empty Cursor signals no further history.
type ThreadPage struct {
	Items  []json.RawMessage
	Cursor string
}

// SessionClient is the authenticated remote session the sync engine drives.
// It covers exactly what the engine needs: user resolution, thread lookup,
// cursor-paginated item retrieval, per-item enrichment, and binary downloads.
type SessionClient interface {
	Login(ctx context.Context) (LoginResult, error)
	SubmitTwoFactor(ctx context.Context, code string) (LoginResult, error)

	// ResolveUser maps a username to the service's stable user identifier.
	ResolveUser(ctx context.Context, username string) (string, error)

	// FindThreadWith locates the direct thread whose participants include
	// the given user. Returns ErrThreadNotFound when no such thread exists.
	FindThreadWith(ctx context.Context, userID string) (string, error)

	// FetchThreadPage retrieves one page of thread items older than the
	// cursor. An empty cursor starts from the newest items.
	FetchThreadPage(ctx context.Context, threadID, cursor string) (*ThreadPage, error)

	// FetchItemRaw retrieves the full raw representation of a single item,
	// used when a page payload did not carry enough data to resolve media.
	FetchItemRaw(ctx context.Context, threadID, itemID string) (json.RawMessage, error)

	// DownloadMedia streams the binary content behind a media URL.
	DownloadMedia(ctx context.Context, url string) (io.ReadCloser, error)
}
