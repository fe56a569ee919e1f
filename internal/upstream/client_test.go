package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timelineJSON = `[
	{"id": "3", "created_at": "2025-03-01T12:00:00.000Z", "content": "<p>third</p>", "visibility": "public",
	 "url": "https://example.social/@a/3", "language": "en",
	 "account": {"id": "10", "username": "alice", "acct": "alice", "bot": false},
	 "favourites_count": 4, "reblogs_count": 1, "replies_count": 0,
	 "tags": [{"name": "Go", "url": "https://example.social/tags/go"}]},
	{"id": "", "created_at": "2025-03-01T11:00:00.000Z", "account": {"id": "11"}},
	{"id": "2", "created_at": "not a time", "account": {"id": "11"}},
	{"id": "1", "created_at": "2025-03-01T10:00:00.000Z", "content": "<p>first</p>", "url": null,
	 "account": {"id": "12", "username": "robot", "bot": true}, "tags": []}
]`

func TestHomeTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/timelines/home", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "99", r.URL.Query().Get("max_id"))
		assert.Empty(t, r.URL.Query().Get("since_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(timelineJSON))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second)
	posts, err := c.HomeTimeline(context.Background(), "tok", Page{Limit: 20, MaxID: "99"})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "3", posts[0].ID)
	assert.Equal(t, "alice", posts[0].Account.Username)
	assert.Equal(t, []string{"Go"}, posts[0].Tags)
	assert.Equal(t, "https://example.social/@a/3", posts[0].URL)
	assert.Equal(t, "en", posts[0].Language)
	assert.Equal(t, 4, posts[0].FavouritesCount)
	assert.Equal(t, "person", posts[0].Metadata.AccountType)
	assert.Equal(t, "public", posts[0].Visibility)

	assert.Equal(t, "1", posts[1].ID)
	assert.Empty(t, posts[1].URL)
	assert.Equal(t, "bot", posts[1].Metadata.AccountType)
	assert.Equal(t, "private", posts[1].Visibility, "missing visibility is treated as restricted")
}

func TestHomeTimelineErrors(t *testing.T) {
	status := http.StatusUnauthorized
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.HomeTimeline(context.Background(), "bad", Page{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	status = http.StatusBadGateway
	_, err = c.HomeTimeline(context.Background(), "tok", Page{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestHomeTimelineTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, 50*time.Millisecond)
	_, err := c.HomeTimeline(context.Background(), "tok", Page{})
	assert.Error(t, err)
}

func TestVerifyCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "42", "username": "alice", "display_name": "Alice"}`))
	}))
	defer server.Close()

	account, err := NewClient(server.URL, time.Second).VerifyCredentials(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "Alice", account.DisplayName)
}

func TestStatusActions(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/v1/statuses/7/reblog" {
			_, _ = w.Write([]byte(`{"id": "900", "created_at": "2025-03-01T12:00:00Z", "account": {"id": "1", "username": "me"},
				"reblog": {"id": "7", "created_at": "2025-03-01T10:00:00Z", "account": {"id": "2", "username": "them"}, "tags": [{"name": "art"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "7", "created_at": "2025-03-01T10:00:00Z", "account": {"id": "2", "username": "them"}, "tags": [{"name": "art"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	ctx := context.Background()

	post, err := c.Favourite(ctx, "tok", "7")
	require.NoError(t, err)
	assert.Equal(t, "7", post.ID)

	post, err = c.Reblog(ctx, "tok", "7")
	require.NoError(t, err)
	assert.Equal(t, "7", post.ID)
	assert.Equal(t, []string{"art"}, post.Tags)

	_, err = c.Bookmark(ctx, "tok", "7")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/statuses/7/favourite",
		"/api/v1/statuses/7/reblog",
		"/api/v1/statuses/7/bookmark",
	}, paths)
}

func TestStatusToPostUnwrapsBoost(t *testing.T) {
	var st Status
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "500", "created_at": "2025-03-01T12:00:00Z", "content": "", "visibility": "public",
		"account": {"id": "1", "username": "booster"}, "tags": [],
		"reblog": {"id": "42", "created_at": "2025-02-28T09:00:00Z", "content": "<p>Gophers #go</p>",
			"visibility": "public", "url": "https://example.social/@gopher/42", "language": "en",
			"account": {"id": "2", "username": "gopher", "bot": true},
			"favourites_count": 12, "reblogs_count": 3, "replies_count": 2,
			"tags": [{"name": "go"}]}
	}`), &st))

	post, err := st.ToPost()
	require.NoError(t, err)
	assert.Equal(t, "500", post.ID)
	assert.Equal(t, "2025-03-01T12:00:00Z", post.CreatedAt.Format(time.RFC3339))
	assert.Equal(t, "<p>Gophers #go</p>", post.Content)
	assert.Equal(t, []string{"go"}, post.Tags)
	assert.Equal(t, "gopher", post.Account.Username)
	assert.Equal(t, "https://example.social/@gopher/42", post.URL)
	assert.Equal(t, "en", post.Language)
	assert.Equal(t, 12, post.FavouritesCount)
	assert.Equal(t, 3, post.ReblogsCount)
	assert.Equal(t, 2, post.RepliesCount)
	assert.Equal(t, "reblog", post.Metadata.PostType)
	assert.Equal(t, "bot", post.Metadata.AccountType)
	assert.True(t, post.Shareable())
}

func TestStatusToPostVisibility(t *testing.T) {
	author := StatusAccount{ID: "1", Username: "alice"}
	cases := []struct {
		name    string
		wrapper string
		boosted string
		want    string
	}{
		{"public", "public", "", "public"},
		{"unlisted", "unlisted", "", "unlisted"},
		{"followers only", "private", "", "private"},
		{"direct message", "direct", "", "direct"},
		{"missing", "", "", "private"},
		{"unknown", "local", "", "private"},
		{"boost of unlisted", "public", "unlisted", "unlisted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Status{ID: "1", Account: author, Visibility: tc.wrapper}
			if tc.boosted != "" {
				st.Reblog = &Status{ID: "2", Account: author, Visibility: tc.boosted}
			}
			post, err := st.ToPost()
			require.NoError(t, err)
			assert.Equal(t, tc.want, post.Visibility)
			assert.Equal(t, tc.want == "public", post.Shareable())
		})
	}
}

func TestStatusToPostRejectsMissingAuthor(t *testing.T) {
	_, err := Status{ID: "1"}.ToPost()
	assert.Error(t, err)
}

func TestInstanceProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instance", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"uri": "example.social", "title": "Example", "version": "4.3.0"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	inst, err := c.Instance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.3.0", inst.Version)
	assert.NoError(t, c.Ping(context.Background()))

	server.Close()
	assert.Error(t, c.Ping(context.Background()))
}
