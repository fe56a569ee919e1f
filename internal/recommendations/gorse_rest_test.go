package recommendations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/testutil"
)

func TestFeedbackType(t *testing.T) {
	assert.Equal(t, FeedbackLike, FeedbackType(models.ActionFavorite))
	assert.Equal(t, FeedbackShare, FeedbackType(models.ActionReblog))
	assert.Equal(t, FeedbackStar, FeedbackType(models.ActionBookmark))
	assert.Equal(t, FeedbackComment, FeedbackType(models.ActionReply))
	assert.Equal(t, FeedbackRead, FeedbackType("other"))
}

func TestItemFromPost(t *testing.T) {
	post := testutil.Post("p1", "#Go", "cats")
	post.Metadata = models.PostMetadata{Category: "tech", Vibe: "calm"}

	item := ItemFromPost(post)
	assert.Equal(t, "p1", item.ItemId)
	assert.Equal(t, []string{"go", "cats", "category_tech"}, item.Categories)
	assert.Equal(t, []string{"go", "cats"}, item.Labels["tags"])
	assert.Equal(t, "tech", item.Labels["category"])
	assert.Equal(t, "calm", item.Labels["vibe"])
	assert.NotContains(t, item.Labels, "tone")
	assert.Equal(t, "2025-03-01T12:00:00Z", item.Timestamp)
}

func TestSyncItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-API-Key"))

		var items []GorseItem
		require.NoError(t, json.NewDecoder(r.Body).Decode(&items))
		assert.Len(t, items, 2)
		assert.Equal(t, []interface{}{"art"}, items[0].Labels["tags"])

		json.NewEncoder(w).Encode(map[string]interface{}{"RowAffected": 2})
	}))
	defer server.Close()

	client := NewGorseRESTClient(server.URL, "test-api-key", time.Second)
	err := client.SyncItems(context.Background(), []models.Post{testutil.Post("a", "art"), testutil.Post("b")})
	assert.NoError(t, err)
	assert.NoError(t, client.SyncItems(context.Background(), nil))
}

func TestSyncFeedback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feedback", r.URL.Path)

		var feedback []GorseFeedback
		require.NoError(t, json.NewDecoder(r.Body).Decode(&feedback))
		require.Len(t, feedback, 1)
		assert.Equal(t, "share", feedback[0].FeedbackType)
		assert.Equal(t, "alias-1", feedback[0].UserId)
		assert.Equal(t, "p1", feedback[0].ItemId)
		assert.NotEmpty(t, feedback[0].Timestamp)

		json.NewEncoder(w).Encode(map[string]interface{}{"RowAffected": 1})
	}))
	defer server.Close()

	client := NewGorseRESTClient(server.URL, "test-api-key", time.Second)
	assert.NoError(t, client.SyncFeedback(context.Background(), "alias-1", "p1", models.ActionReblog))
}

func TestRecommend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recommend/alias-1", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("n"))
		json.NewEncoder(w).Encode([]string{"p1", "p2", "p3", "p4"})
	}))
	defer server.Close()

	client := NewGorseRESTClient(server.URL, "test-api-key", time.Second)
	ids, err := client.Recommend(context.Background(), "alias-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids)
}

func TestNeighbors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/item/p1/neighbors", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"Id": "p2", "Score": 0.9},
			{"Id": "p3", "Score": 0.4},
		})
	}))
	defer server.Close()

	client := NewGorseRESTClient(server.URL, "test-api-key", time.Second)
	ids, err := client.Neighbors(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids)
}

func TestMakeRequest_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewGorseRESTClient(server.URL, "test-api-key", time.Second)
	_, err := client.Recommend(context.Background(), "alias-1", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Error(t, client.Health(context.Background()))
}

func TestMakeRequest_Unreachable(t *testing.T) {
	client := NewGorseRESTClient("http://127.0.0.1:1", "test-api-key", 200*time.Millisecond)
	_, err := client.Recommend(context.Background(), "alias-1", 5)
	assert.Error(t, err)
}

func TestGorseSourceMaintainsOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, candidates.NewPostStore(db).Save(context.Background(), []models.Post{
		testutil.Post("p1", "go"),
		testutil.Post("p2"),
		testutil.Post("p3"),
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"p3", "missing", "p1", "p2"})
	}))
	defer server.Close()

	src := NewGorseSource(NewGorseRESTClient(server.URL, "k", time.Second), db)
	profile := &signals.Profile{UserAlias: "u1", Weights: map[string]map[string]float64{
		models.DimensionTag: {"go": 1},
	}}
	got, err := src.Candidates(context.Background(), candidates.Request{UserAlias: "u1", Count: 4, Profile: profile})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "p3", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)
	assert.Equal(t, "p2", got[2].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
	assert.Greater(t, got[1].Score, got[2].Score)
	assert.Equal(t, "matches #go", got[1].Reason)
	for _, c := range got {
		assert.Equal(t, models.SourcePersonalized, c.Source)
		assert.Equal(t, StrategyCollaborative, c.Strategy)
	}
}

func TestGorseSourceAnonymous(t *testing.T) {
	src := NewGorseSource(NewGorseRESTClient("http://127.0.0.1:1", "k", time.Second), testutil.NewTestDB(t))
	_, err := src.Candidates(context.Background(), candidates.Request{Count: 3})
	assert.ErrorIs(t, err, candidates.ErrNoProfile)
}

func TestGenerateReasonFallback(t *testing.T) {
	post := testutil.Post("p1")
	assert.Equal(t, "liked by people with similar taste", generateReason(post, candidates.Request{}))

	post.FavouritesCount = 20
	post.CreatedAt = time.Now()
	assert.Equal(t, "popular with people like you and recently posted", generateReason(post, candidates.Request{}))
}
