// Package upstream is the client for the Mastodon server the middleware sits in front of.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/telemetry"
)

// ErrUnauthorized is returned when the server rejects the access token
var ErrUnauthorized = errors.New("upstream rejected access token")

// StatusError is a non-success HTTP response from the upstream server
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Path, e.Code)
}

// Page selects a slice of a timeline
type Page struct {
	Limit   int
	MaxID   string
	SinceID string
}

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.MaxID != "" {
		q.Set("max_id", p.MaxID)
	}
	if p.SinceID != "" {
		q.Set("since_id", p.SinceID)
	}
	return q
}

// Client calls the Mastodon REST API. It never retries; each call gets one bounded timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "mastodon",
			Timeout:     timeout,
		}),
	}
}

// HomeTimeline fetches the user's home timeline in upstream order.
// Statuses that fail validation are dropped.
func (c *Client) HomeTimeline(ctx context.Context, token string, page Page) ([]models.Post, error) {
	ctx, span := telemetry.TraceExternalCall(ctx, "mastodon", "home_timeline", "")
	defer span.End()

	// decode one status at a time so a single bad entry cannot sink the page
	var raw []json.RawMessage
	code, err := c.do(ctx, http.MethodGet, "/api/v1/timelines/home", token, page.query(), &raw)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, code)
		return nil, err
	}

	posts := make([]models.Post, 0, len(raw))
	for _, item := range raw {
		var s Status
		if err := json.Unmarshal(item, &s); err != nil {
			logger.Log.Warn("Dropping undecodable upstream status", zap.Error(err))
			continue
		}
		post, err := s.ToPost()
		if err != nil {
			logger.Log.Warn("Dropping malformed upstream status", zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	telemetry.RecordExternalCallSuccess(span, code, len(posts))
	return posts, nil
}

// Status fetches a single status
func (c *Client) Status(ctx context.Context, token, id string) (*models.Post, error) {
	var s Status
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/statuses/"+url.PathEscape(id), token, nil, &s); err != nil {
		return nil, err
	}
	post, err := s.ToPost()
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// VerifyCredentials returns the account that owns token
func (c *Client) VerifyCredentials(ctx context.Context, token string) (*models.Account, error) {
	ctx, span := telemetry.TraceExternalCall(ctx, "mastodon", "verify_credentials", "")
	defer span.End()

	var a StatusAccount
	code, err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", token, nil, &a)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, code)
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("upstream returned an account without id")
	}
	telemetry.RecordExternalCallSuccess(span, code, 1)
	account := a.toAccount()
	return &account, nil
}

// Instance describes the upstream server
type Instance struct {
	URI     string `json:"uri"`
	Domain  string `json:"domain"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

// Instance fetches the public instance description. Used as a reachability probe.
func (c *Client) Instance(ctx context.Context) (*Instance, error) {
	var inst Instance
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/instance", "", nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Ping reports whether the upstream instance answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Instance(ctx)
	return err
}

// Favourite favourites a status on behalf of the user
func (c *Client) Favourite(ctx context.Context, token, id string) (*models.Post, error) {
	return c.statusAction(ctx, token, id, "favourite")
}

// Reblog boosts a status on behalf of the user
func (c *Client) Reblog(ctx context.Context, token, id string) (*models.Post, error) {
	return c.statusAction(ctx, token, id, "reblog")
}

// Bookmark bookmarks a status on behalf of the user
func (c *Client) Bookmark(ctx context.Context, token, id string) (*models.Post, error) {
	return c.statusAction(ctx, token, id, "bookmark")
}

func (c *Client) statusAction(ctx context.Context, token, id, action string) (*models.Post, error) {
	ctx, span := telemetry.TraceExternalCall(ctx, "mastodon", action, id)
	defer span.End()

	var s Status
	path := fmt.Sprintf("/api/v1/statuses/%s/%s", url.PathEscape(id), action)
	code, err := c.do(ctx, http.MethodPost, path, token, nil, &s)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, code)
		return nil, err
	}
	telemetry.RecordExternalCallSuccess(span, code, 1)

	// reblog responds with the wrapping status; the original is what was acted on
	if s.Reblog != nil {
		s = *s.Reblog
	}
	post, err := s.ToPost()
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, out interface{}) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return resp.StatusCode, nil
}
