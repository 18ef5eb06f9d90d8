package usgs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenefetch/internal/logging"
)

const (
	// DefaultEndpoint is the production catalog API endpoint.
	DefaultEndpoint = "https://m2m.cr.usgs.gov/api/api/json/stable/"

	// sessionLifetime is how long the service honors an issued API key.
	// Calls after this window fail fast without touching the network.
	sessionLifetime = 2 * time.Hour

	userAgent = "scenefetch/1.0"
)

// envelope is the fixed response wrapper every endpoint returns.
type envelope struct {
	RequestID    json.Number     `json:"requestId"`
	ErrorCode    *string         `json:"errorCode"`
	ErrorMessage *string         `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

// Client talks JSON-over-POST to the scene catalog service. One Client
// carries at most one login session. Not safe for concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time

	token    string
	username string
	loginAt  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the time source used for session-expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the given endpoint, or the production endpoint
// when empty. No request timeout is set on the HTTP client: bulk resource
// transfers can run for hours, so deadlines come from the caller's context.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   endpoint,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the base URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// checkSession verifies a login happened and its token is still inside the
// service's two-hour session window.
func (c *Client) checkSession() error {
	if c.token == "" {
		return ErrNotLoggedIn
	}
	if c.now().Sub(c.loginAt) >= sessionLifetime {
		return fmt.Errorf("%w: token older than %s, log in again", ErrAuthExpired, sessionLifetime)
	}
	return nil
}

// LoggedIn reports whether a usable session token is held.
func (c *Client) LoggedIn() bool { return c.checkSession() == nil }

// post sends one endpoint call and decodes the envelope's data into out
// (skipped when out is nil). In-band errorCode values win over HTTP status.
func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	if c.token != "" {
		if err := c.checkSession(); err != nil {
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s: unexpected status %s", endpoint, resp.Status)
		}
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if env.ErrorCode != nil {
		msg := ""
		if env.ErrorMessage != nil {
			msg = *env.ErrorMessage
		}
		return fmt.Errorf("%s: %w", endpoint, mapServiceError(*env.ErrorCode, msg))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %s", endpoint, resp.Status)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", endpoint, err)
		}
	}
	return nil
}

func (c *Client) setSession(username, key string) {
	c.username = username
	c.token = key
	c.loginAt = c.now()
	logging.LogSessionStart(c.endpoint, username)
}

// Login starts a session with username and password credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var key string
	if err := c.post(ctx, "login", loginRequest{Username: username, Password: password}, &key); err != nil {
		return err
	}
	c.setSession(username, key)
	return nil
}

// LoginToken starts a session with an application token.
func (c *Client) LoginToken(ctx context.Context, username, token string) error {
	var key string
	if err := c.post(ctx, "login-token", loginTokenRequest{Username: username, Token: token}, &key); err != nil {
		return err
	}
	c.setSession(username, key)
	return nil
}

// Logout invalidates the session key. The local session state is cleared
// even when the call fails; the token dies on its own after two hours.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	err := c.post(ctx, "logout", struct{}{}, nil)
	c.token = ""
	c.username = ""
	c.loginAt = time.Time{}
	logging.LogSessionEnd(err)
	return err
}

// SceneSearch returns one page of scenes matching filter. startingNumber is
// 1-indexed; pass the page's NextRecord to continue.
func (c *Client) SceneSearch(ctx context.Context, dataset string, maxResults, startingNumber int, filter *SceneFilter) (*SceneSearchPage, error) {
	req := sceneSearchRequest{
		DatasetName:    dataset,
		MaxResults:     maxResults,
		StartingNumber: startingNumber,
		MetadataType:   "summary",
		SceneFilter:    filter,
	}
	var page SceneSearchPage
	if err := c.post(ctx, "scene-search", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SceneMetadata returns the full metadata field list for one scene.
func (c *Client) SceneMetadata(ctx context.Context, dataset, entityID string) ([]MetadataField, error) {
	req := sceneMetadataRequest{
		DatasetName:  dataset,
		EntityID:     entityID,
		MetadataType: "full",
	}
	var details SceneDetails
	if err := c.post(ctx, "scene-metadata", req, &details); err != nil {
		return nil, err
	}
	return details.Metadata, nil
}

// SceneListAdd adds scenes to the named list and verifies the service
// accepted all of them.
func (c *Client) SceneListAdd(ctx context.Context, listID, dataset string, entityIDs []string) error {
	req := sceneListAddRequest{
		ListID:      listID,
		DatasetName: dataset,
		IDField:     "entityId",
		EntityIDs:   entityIDs,
	}
	var added int
	if err := c.post(ctx, "scene-list-add", req, &added); err != nil {
		return err
	}
	if added != len(entityIDs) {
		return fmt.Errorf("scene-list-add: added %d of %d scenes", added, len(entityIDs))
	}
	return nil
}

// SceneListRemove drops the named list.
func (c *Client) SceneListRemove(ctx context.Context, listID string) error {
	return c.post(ctx, "scene-list-remove", sceneListRemoveRequest{ListID: listID}, nil)
}

// DownloadOptions lists orderable products for the scenes in the named list.
func (c *Client) DownloadOptions(ctx context.Context, dataset, listID string) ([]DownloadOption, error) {
	req := downloadOptionsRequest{DatasetName: dataset, ListID: listID}
	var options []DownloadOption
	if err := c.post(ctx, "download-options", req, &options); err != nil {
		return nil, err
	}
	return options, nil
}

// DownloadRequest orders the given products under label.
func (c *Client) DownloadRequest(ctx context.Context, downloads []DownloadProduct, label string) (*DownloadRequestResult, error) {
	req := downloadRequestRequest{Downloads: downloads, Label: label}
	var result DownloadRequestResult
	if err := c.post(ctx, "download-request", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadRetrieve returns the current download queue for label.
func (c *Client) DownloadRetrieve(ctx context.Context, label string) (*DownloadQueue, error) {
	var queue DownloadQueue
	if err := c.post(ctx, "download-retrieve", downloadRetrieveRequest{Label: label}, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// DownloadRemove deletes one entry from the remote download queue.
func (c *Client) DownloadRemove(ctx context.Context, downloadID int) error {
	var removed bool
	if err := c.post(ctx, "download-remove", downloadRemoveRequest{DownloadID: downloadID}, &removed); err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("download-remove: download %d not removed", downloadID)
	}
	return nil
}

// Permissions returns the permission names granted to the logged-in user.
func (c *Client) Permissions(ctx context.Context) ([]string, error) {
	var perms []string
	if err := c.post(ctx, "permissions", struct{}{}, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// FetchResource issues an authenticated GET for a bulk resource URL and
// returns the response for streaming. The caller closes the body. Auth and
// rate-limit statuses are mapped to their sentinel errors here so transfer
// callers can branch without inspecting status codes.
func (c *Client) FetchResource(ctx context.Context, url string) (*http.Response, error) {
	if err := c.checkSession(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build resource request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", logging.RedactURL(url), err)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %s", ErrAuthExpired, resp.Status)
	case http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %s", ErrRateLimited, resp.Status)
	}
	return resp, nil
}
