package candidates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/testutil"
)

func TestPersonalizedRanksUnseenPosts(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []models.Post{
		testutil.Post("go-1", "go"),
		testutil.Post("go-2", "go", "cats"),
		testutil.Post("knit", "knitting"),
		testutil.Post("seen", "go"),
	}))
	require.NoError(t, db.Create(&models.Interaction{
		UserAlias: "u1", PostID: "seen", ActionType: models.ActionFavorite,
	}).Error)

	profile := &signals.Profile{
		UserAlias: "u1",
		Weights: map[string]map[string]float64{
			models.DimensionTag: {"go": 5},
		},
	}
	src := NewPersonalized(db, NewProfileScorer())

	got, err := src.Candidates(ctx, Request{UserAlias: "u1", Count: 2, Profile: profile})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, models.SourcePersonalized, c.Source)
		assert.Equal(t, StrategyProfileWeighted, c.Strategy)
		assert.NotEqual(t, "seen", c.ID)
		assert.Contains(t, c.Tags, "go")
	}
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestPersonalizedRequiresProfile(t *testing.T) {
	src := NewPersonalized(testutil.NewTestDB(t), NewProfileScorer())

	_, err := src.Candidates(context.Background(), Request{Count: 3})
	assert.ErrorIs(t, err, ErrNoProfile)

	_, err = src.Candidates(context.Background(), Request{UserAlias: "u1", Count: 3})
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestPersonalizedMinScore(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, NewPostStore(db).Save(context.Background(), []models.Post{
		testutil.Post("a", "go"),
		testutil.Post("b", "knitting"),
	}))
	profile := &signals.Profile{UserAlias: "u1", Weights: map[string]map[string]float64{
		models.DimensionTag: {"go": 1},
	}}

	got, err := NewPersonalized(db, NewProfileScorer()).WithMinScore(0.3).
		Candidates(context.Background(), Request{UserAlias: "u1", Count: 5, Profile: profile})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestPostStoreUpsert(t *testing.T) {
	store := NewPostStore(testutil.NewTestDB(t))
	ctx := context.Background()

	post := testutil.Post("p1", "Art")
	post.FavouritesCount = 1
	require.NoError(t, store.Save(ctx, []models.Post{post, post, {ID: ""}}))

	post.FavouritesCount = 9
	require.NoError(t, store.Save(ctx, []models.Post{post}))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.FavouritesCount)
	assert.Equal(t, []string{"art"}, got.Tags)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.NoError(t, store.Save(ctx, nil))
}

func TestRestrictedPostsNeverReachOtherUsers(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	dm := testutil.Post("dm-1", "go")
	dm.Account = models.Account{ID: "alice", Username: "alice"}
	dm.Content = "<p>@bob hunter2 #go</p>"
	dm.Visibility = models.VisibilityDirect
	followers := testutil.Post("fo-1", "go")
	followers.Visibility = models.VisibilityPrivate
	unlisted := testutil.Post("ul-1", "go")
	unlisted.Visibility = models.VisibilityUnlisted
	unknown := testutil.Post("nv-1", "go")
	unknown.Visibility = ""

	require.NoError(t, store.Save(ctx, []models.Post{dm, followers, unlisted, unknown, testutil.Post("pub-1", "go")}))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only public posts are archived")
	_, err = store.Get(ctx, "dm-1")
	assert.ErrorIs(t, err, ErrPostNotFound)

	// rows that bypassed the store are still filtered when sourcing
	leaked := models.NewPostRecord(dm)
	require.NoError(t, db.Create(&leaked).Error)

	profile := &signals.Profile{UserAlias: "carol", Weights: map[string]map[string]float64{
		models.DimensionTag: {"go": 5},
	}}
	got, err := NewPersonalized(db, NewProfileScorer()).
		Candidates(ctx, Request{UserAlias: "carol", Count: 10, Profile: profile})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pub-1", got[0].ID)
	for _, c := range got {
		assert.NotContains(t, c.Content, "hunter2")
	}
}

func TestPersonalizedSkipsSeenPostsWithoutInteractionRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewPostStore(db).Save(ctx, []models.Post{
		testutil.Post("liked", "go"),
		testutil.Post("fresh", "go"),
	}))
	require.NoError(t, db.Create(&models.SeenPost{UserAlias: "u1", PostID: "liked"}).Error)

	profile := &signals.Profile{UserAlias: "u1", Weights: map[string]map[string]float64{
		models.DimensionTag: {"go": 5},
	}}
	got, err := NewPersonalized(db, NewProfileScorer()).
		Candidates(ctx, Request{UserAlias: "u1", Count: 5, Profile: profile})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}
