// Package recommendations talks to a Gorse recommender for personalized candidates.
package recommendations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/corgi-recs/corgi/internal/models"
)

// Gorse feedback types written for each interaction
const (
	FeedbackLike    = "like"
	FeedbackShare   = "share"
	FeedbackStar    = "star"
	FeedbackComment = "comment"
	FeedbackRead    = "read"
)

// FeedbackType maps an interaction to the Gorse feedback type it is recorded as
func FeedbackType(action models.ActionType) string {
	switch action {
	case models.ActionFavorite:
		return FeedbackLike
	case models.ActionReblog:
		return FeedbackShare
	case models.ActionBookmark:
		return FeedbackStar
	case models.ActionReply:
		return FeedbackComment
	}
	return FeedbackRead
}

// GorseRESTClient provides recommendation algorithms using Gorse REST API
type GorseRESTClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGorseRESTClient creates a new Gorse REST client
func NewGorseRESTClient(baseURL, apiKey string, timeout time.Duration) *GorseRESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GorseRESTClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GorseItem represents an item (post) in Gorse
// Labels should be map[string]interface{} per Gorse documentation
type GorseItem struct {
	ItemId     string                 `json:"ItemId"`
	IsHidden   bool                   `json:"IsHidden,omitempty"`
	Categories []string               `json:"Categories,omitempty"`
	Timestamp  string                 `json:"Timestamp,omitempty"`
	Labels     map[string]interface{} `json:"Labels,omitempty"`
	Comment    string                 `json:"Comment,omitempty"`
}

// GorseFeedback represents user feedback in Gorse
type GorseFeedback struct {
	FeedbackType string `json:"FeedbackType"`
	UserId       string `json:"UserId"`
	ItemId       string `json:"ItemId"`
	Timestamp    string `json:"Timestamp,omitempty"`
}

// makeRequest makes an HTTP request to Gorse API
func (c *GorseRESTClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("gorse API error: status %d", resp.StatusCode)
	}

	return resp, nil
}

func (c *GorseRESTClient) send(ctx context.Context, method, endpoint string, body interface{}) error {
	resp, err := c.makeRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// ItemFromPost builds the Gorse item for a post. Signal dimensions become labels.
func ItemFromPost(post models.Post) GorseItem {
	categories := make([]string, 0, len(post.Tags)+1)
	categories = append(categories, post.NormalizedTags()...)
	if post.Metadata.Category != "" {
		categories = append(categories, "category_"+post.Metadata.Category)
	}

	labels := make(map[string]interface{})
	if tags := post.NormalizedTags(); len(tags) > 0 {
		labels["tags"] = tags
	}
	for key, value := range map[string]string{
		models.DimensionCategory:    post.Metadata.Category,
		models.DimensionVibe:        post.Metadata.Vibe,
		models.DimensionTone:        post.Metadata.Tone,
		models.DimensionAccountType: post.Metadata.AccountType,
		models.DimensionPostType:    post.Metadata.PostType,
	} {
		if value != "" {
			labels[key] = value
		}
	}

	item := GorseItem{
		ItemId:     post.ID,
		Categories: categories,
		Labels:     labels,
		Comment:    post.Account.Username,
	}
	if !post.CreatedAt.IsZero() {
		item.Timestamp = post.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// SyncItems upserts posts as Gorse items
func (c *GorseRESTClient) SyncItems(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	items := make([]GorseItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, ItemFromPost(p))
	}
	return c.send(ctx, http.MethodPost, "/api/items", items)
}

// SyncFeedback records one interaction in Gorse
func (c *GorseRESTClient) SyncFeedback(ctx context.Context, userAlias, postID string, action models.ActionType) error {
	feedback := []GorseFeedback{
		{
			FeedbackType: FeedbackType(action),
			UserId:       userAlias,
			ItemId:       postID,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
	}
	return c.send(ctx, http.MethodPost, "/api/feedback", feedback)
}

// Recommend returns up to n item ids recommended for a user, best first
func (c *GorseRESTClient) Recommend(ctx context.Context, userAlias string, n int) ([]string, error) {
	// Gorse GetRecommend endpoint: GET /api/recommend/{user-id}?n={n}
	endpoint := fmt.Sprintf("/api/recommend/%s?n=%d", url.PathEscape(userAlias), n)
	resp, err := c.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}
	defer resp.Body.Close()

	var itemIDs []string
	if err := json.NewDecoder(resp.Body).Decode(&itemIDs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(itemIDs) > n {
		itemIDs = itemIDs[:n]
	}
	return itemIDs, nil
}

// Neighbors returns ids of items similar to postID
func (c *GorseRESTClient) Neighbors(ctx context.Context, postID string, n int) ([]string, error) {
	// Gorse GetNeighbors endpoint: GET /api/item/{item-id}/neighbors?n={n}
	endpoint := fmt.Sprintf("/api/item/%s/neighbors?n=%d", url.PathEscape(postID), n)
	resp, err := c.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get similar posts: %w", err)
	}
	defer resp.Body.Close()

	type Score struct {
		Id    string  `json:"Id"`
		Score float64 `json:"Score"`
	}

	var scores []Score
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	ids := make([]string, 0, len(scores))
	for _, s := range scores {
		ids = append(ids, s.Id)
	}
	return ids, nil
}

// Health checks that the Gorse server answers
func (c *GorseRESTClient) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/api/health/ready", nil)
}
