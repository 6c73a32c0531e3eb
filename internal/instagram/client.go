// Package instagram implements the authenticated session against the
// private direct-message API: cookie-based login with an optional second
// factor, user and thread resolution, cursor-paginated item retrieval, and
// media downloads.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dmarchive/internal/domain"
)

const (
	defaultAPIBase = "https://i.instagram.com/api/v1"
	defaultTimeout = 60 * time.Second

	// threadPageLimit is fixed by the service; asking for more is ignored.
	threadPageLimit = 20
)

type Config struct {
	Username string
	Password string
	APIBase  string // override for tests
	Logger   *slog.Logger
}

// Client is a cookie-authenticated API session. It is not safe for
// concurrent use; the sync engine drives it strictly sequentially.
type Client struct {
	username string
	password string
	apiBase  string
	deviceID string
	http     *http.Client
	logger   *slog.Logger

	// twoFactorID carries the challenge identifier between Login and
	// SubmitTwoFactor.
	twoFactorID string
}

func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("instagram: username and password are required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("instagram: cookie jar: %w", err)
	}
	return &Client{
		username: cfg.Username,
		password: cfg.Password,
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		deviceID: uuid.NewString(),
		http:     newHTTPClient(jar),
		logger:   cfg.Logger,
	}, nil
}

// newHTTPClient builds the pooled transport shared by every request of the
// session, including media downloads.
func newHTTPClient(jar http.CookieJar) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: defaultTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
		Jar:       jar,
	}
}

// Login authenticates with username and password. A required second factor
// is a protocol state, not an error: the result carries it and the caller
// follows up with SubmitTwoFactor.
func (c *Client) Login(ctx context.Context) (domain.LoginResult, error) {
	form := url.Values{
		"username":  {c.username},
		"password":  {c.password},
		"device_id": {c.deviceID},
	}
	var resp loginResponse
	if err := c.postForm(ctx, "/accounts/login/", form, &resp); err != nil {
		return domain.LoginResult{}, err
	}

	if resp.TwoFactorRequired {
		if resp.TwoFactorInfo == nil || resp.TwoFactorInfo.TwoFactorIdentifier == "" {
			return domain.LoginResult{}, fmt.Errorf("instagram: second factor required but no challenge identifier sent")
		}
		c.twoFactorID = resp.TwoFactorInfo.TwoFactorIdentifier
		c.logger.Info("login requires second factor", "user", c.username)
		return domain.LoginResult{Status: domain.LoginNeedsSecondFactor}, nil
	}
	if resp.Status != "ok" {
		c.logger.Warn("login rejected", "user", c.username, "reason", resp.Message)
		return domain.LoginResult{Status: domain.LoginFailed, Reason: resp.Message}, nil
	}

	c.logger.Info("logged in", "user", c.username)
	return domain.LoginResult{Status: domain.LoginSuccess}, nil
}

// SubmitTwoFactor completes a login that Login reported as needing a
// second factor.
func (c *Client) SubmitTwoFactor(ctx context.Context, code string) (domain.LoginResult, error) {
	if c.twoFactorID == "" {
		return domain.LoginResult{}, fmt.Errorf("instagram: no pending second-factor challenge")
	}
	form := url.Values{
		"username":              {c.username},
		"verification_code":     {code},
		"two_factor_identifier": {c.twoFactorID},
		"device_id":             {c.deviceID},
	}
	var resp loginResponse
	if err := c.postForm(ctx, "/accounts/two_factor_login/", form, &resp); err != nil {
		return domain.LoginResult{}, err
	}
	if resp.Status != "ok" {
		return domain.LoginResult{Status: domain.LoginFailed, Reason: resp.Message}, nil
	}
	c.twoFactorID = ""
	c.logger.Info("second factor accepted", "user", c.username)
	return domain.LoginResult{Status: domain.LoginSuccess}, nil
}

// ResolveUser maps a username to the service's numeric user id, returned
// as a decimal string.
func (c *Client) ResolveUser(ctx context.Context, username string) (string, error) {
	var resp userInfoResponse
	path := "/users/" + url.PathEscape(username) + "/usernameinfo/"
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf("resolve user %s: %w", username, err)
	}
	if resp.User == nil || resp.User.PK == 0 {
		return "", fmt.Errorf("resolve user %s: no such account", username)
	}
	return strconv.FormatInt(resp.User.PK, 10), nil
}

// FindThreadWith scans the direct inbox for the one-to-one thread whose
// other participant is the given user.
func (c *Client) FindThreadWith(ctx context.Context, userID string) (string, error) {
	pk, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("find thread: bad user id %q: %w", userID, err)
	}

	cursor := ""
	for {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		var resp inboxResponse
		if err := c.getJSON(ctx, "/direct_v2/inbox/", query, &resp); err != nil {
			return "", fmt.Errorf("scan inbox: %w", err)
		}
		for _, th := range resp.Inbox.Threads {
			if th.IsGroup {
				continue
			}
			for _, u := range th.Users {
				if u.PK == pk {
					return th.ThreadID, nil
				}
			}
		}
		if !resp.Inbox.HasOlder || resp.Inbox.OldestCursor == "" {
			return "", domain.ErrThreadNotFound
		}
		cursor = resp.Inbox.OldestCursor
	}
}

// FetchThreadPage retrieves one page of thread items older than the
// cursor. An empty returned cursor means the history is exhausted.
func (c *Client) FetchThreadPage(ctx context.Context, threadID, cursor string) (*domain.ThreadPage, error) {
	query := url.Values{
		"visual_message_return_type": {"unseen"},
		"direction":                  {"older"},
		"limit":                      {strconv.Itoa(threadPageLimit)},
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var resp threadResponse
	path := "/direct_v2/threads/" + url.PathEscape(threadID) + "/"
	if err := c.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	page := &domain.ThreadPage{Items: resp.Thread.Items}
	if resp.Thread.HasOlder {
		page.Cursor = resp.Thread.OldestCursor
	}
	return page, nil
}

// FetchItemRaw retrieves the full representation of a single thread item,
// used when the page payload stripped the media it references.
func (c *Client) FetchItemRaw(ctx context.Context, threadID, itemID string) (json.RawMessage, error) {
	query := url.Values{"item_ids": {"[" + itemID + "]"}}
	var resp itemsResponse
	path := "/direct_v2/threads/" + url.PathEscape(threadID) + "/get_items/"
	if err := c.getJSON(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("fetch item %s: %w", itemID, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("fetch item %s: not returned", itemID)
	}
	return resp.Items[0], nil
}

// DownloadMedia streams the binary behind a media URL using the session's
// cookies. The caller owns the returned body.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("media fetch returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", req.URL.Path, domain.ErrAuthFailed)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		// 400 still carries a JSON envelope (login failures use it).
		return fmt.Errorf("%s returned %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
