package instagram

import "encoding/json"

// Wire shapes for the private direct-message API. Only the fields the
// client reads are declared; payloads carry far more.

type apiEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type loginResponse struct {
	apiEnvelope
	TwoFactorRequired bool           `json:"two_factor_required,omitempty"`
	TwoFactorInfo     *twoFactorInfo `json:"two_factor_info,omitempty"`
	LoggedInUser      *userInfo      `json:"logged_in_user,omitempty"`
}

type twoFactorInfo struct {
	TwoFactorIdentifier string `json:"two_factor_identifier"`
}

type userInfoResponse struct {
	apiEnvelope
	User *userInfo `json:"user,omitempty"`
}

type userInfo struct {
	PK       int64  `json:"pk"`
	Username string `json:"username"`
}

type inboxResponse struct {
	apiEnvelope
	Inbox inboxPayload `json:"inbox"`
}

type inboxPayload struct {
	Threads      []inboxThread `json:"threads"`
	HasOlder     bool          `json:"has_older"`
	OldestCursor string        `json:"oldest_cursor"`
}

type inboxThread struct {
	ThreadID string     `json:"thread_id"`
	IsGroup  bool       `json:"is_group"`
	Users    []userInfo `json:"users"`
}

type threadResponse struct {
	apiEnvelope
	Thread threadPayload `json:"thread"`
}

type threadPayload struct {
	Items        []json.RawMessage `json:"items"`
	HasOlder     bool              `json:"has_older"`
	OldestCursor string            `json:"oldest_cursor"`
}

type itemsResponse struct {
	apiEnvelope
	Items []json.RawMessage `json:"items"`
}
