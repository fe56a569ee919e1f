package placement

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/models"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func realPosts(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{
			ID:        fmt.Sprintf("real-%d", i+1),
			Account:   models.Account{ID: "acct-1", Username: "alice"},
			CreatedAt: baseTime.Add(-time.Duration(i) * time.Minute),
		}
	}
	return posts
}

func candidates(n int) []models.Candidate {
	cands := make([]models.Candidate, n)
	for i := range cands {
		cands[i] = models.Candidate{
			Post: models.Post{
				ID:      fmt.Sprintf("cand-%d", i+1),
				Account: models.Account{ID: "acct-2", Username: "corgi"},
			},
			Score:  1 - float64(i)*0.1,
			Reason: "popular with new users",
			Source: models.SourceColdStart,
		}
	}
	return cands
}

func allStrategies() []Strategy {
	return []Strategy{Uniform{}, AfterN{N: 2}, FirstOnly{}, TagMatch{}}
}

func realIDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !it.Injected {
			ids = append(ids, it.Post.ID)
		}
	}
	return ids
}

func postIDs(posts []models.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestMergePreservesRealOrderAndCapsInjections(t *testing.T) {
	for _, strategy := range allStrategies() {
		for r := 0; r <= 9; r++ {
			for c := 0; c <= 6; c++ {
				for max := 0; max <= 7; max++ {
					real := realPosts(r)
					cands := candidates(c)
					items, err := Merge(real, cands, Config{Strategy: strategy, MaxInjections: max})
					require.NoError(t, err)

					name := fmt.Sprintf("%s r=%d c=%d max=%d", strategy.Kind(), r, c, max)
					assert.Equal(t, postIDs(real), realIDs(items), name)
					assert.LessOrEqual(t, InjectedCount(items), minInt(max, c), name)

					seen := map[string]bool{}
					for _, it := range items {
						assert.False(t, seen[it.Post.ID], "duplicate id in %s", name)
						seen[it.Post.ID] = true
						if it.Injected {
							require.NotNil(t, it.Candidate, name)
						} else {
							assert.Nil(t, it.Candidate, name)
						}
					}
				}
			}
		}
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	for _, strategy := range allStrategies() {
		cfg := Config{Strategy: strategy, MaxInjections: 3}

		items, err := Merge(nil, nil, cfg)
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = Merge(nil, candidates(5), cfg)
		require.NoError(t, err)
		require.Len(t, items, 3)
		for i, it := range items {
			assert.True(t, it.Injected)
			assert.Equal(t, fmt.Sprintf("cand-%d", i+1), it.Post.ID)
		}

		real := realPosts(4)
		items, err = Merge(real, nil, cfg)
		require.NoError(t, err)
		require.Len(t, items, 4)
		for i, it := range items {
			assert.False(t, it.Injected)
			assert.Equal(t, real[i], it.Post)
		}
	}
}

func TestUniformSpreadsEvenly(t *testing.T) {
	items, err := Merge(realPosts(6), candidates(2), Config{Strategy: Uniform{}, MaxInjections: 2})
	require.NoError(t, err)
	require.Len(t, items, 8)

	// g = ceil(7/3) = 3: one candidate after the 3rd and 6th real post
	var injectedAt []int
	for i, it := range items {
		if it.Injected {
			injectedAt = append(injectedAt, i)
		}
	}
	assert.Equal(t, []int{3, 7}, injectedAt)
	assert.Equal(t, "cand-1", items[3].Post.ID)
	assert.Equal(t, "cand-2", items[7].Post.ID)
}

func TestUniformStopsWhenRealPostsRunOut(t *testing.T) {
	// g = ceil(3/6) = 1, so at most one candidate per real post
	items, err := Merge(realPosts(2), candidates(5), Config{Strategy: Uniform{}, MaxInjections: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, InjectedCount(items))
	assert.Equal(t, []string{"real-1", "cand-1", "real-2", "cand-2"}, allIDs(items))
}

func TestAfterN(t *testing.T) {
	items, err := Merge(realPosts(7), candidates(5), Config{Strategy: AfterN{N: 3}, MaxInjections: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"real-1", "real-2", "real-3", "cand-1",
		"real-4", "real-5", "real-6", "cand-2",
		"real-7",
	}, allIDs(items))

	items, err = Merge(realPosts(6), candidates(5), Config{Strategy: AfterN{N: 1}, MaxInjections: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"real-1", "cand-1", "real-2", "cand-2", "real-3", "real-4", "real-5", "real-6"}, allIDs(items))
}

func TestFirstOnly(t *testing.T) {
	items, err := Merge(realPosts(3), candidates(5), Config{Strategy: FirstOnly{}, MaxInjections: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"real-1", "cand-1", "cand-2", "cand-3", "real-2", "real-3"}, allIDs(items))
}

func TestFirstOnlyWithoutRealPosts(t *testing.T) {
	// upstream down, five cold-start candidates, max three
	items, err := Merge(nil, candidates(5), Config{Strategy: FirstOnly{}, MaxInjections: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.True(t, it.Injected)
		assert.Equal(t, models.SourceColdStart, it.Candidate.Source)
	}
}

func TestTagMatch(t *testing.T) {
	real := realPosts(4)
	real[0].Tags = []string{"Go"}
	real[1].Tags = []string{"rust"}
	real[2].Tags = []string{"cats", "go"}
	real[3].Tags = nil

	cands := candidates(3)
	cands[0].Tags = []string{"python"}
	cands[1].Tags = []string{"#golang", "go"}
	cands[2].Tags = []string{"cats"}

	items, err := Merge(real, cands, Config{Strategy: TagMatch{}, MaxInjections: 5})
	require.NoError(t, err)
	// cand-1 never matches and is dropped rather than appended
	assert.Equal(t, []string{"real-1", "cand-2", "real-2", "real-3", "cand-3", "real-4"}, allIDs(items))
}

func TestTagMatchRespectsCap(t *testing.T) {
	real := realPosts(3)
	cands := candidates(3)
	for i := range real {
		real[i].Tags = []string{"fediverse"}
		cands[i].Tags = []string{"fediverse"}
	}
	items, err := Merge(real, cands, Config{Strategy: TagMatch{}, MaxInjections: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, InjectedCount(items))
}

func TestTagMatchMinGap(t *testing.T) {
	real := realPosts(3)
	real[0].CreatedAt = baseTime
	real[1].CreatedAt = baseTime.Add(-2 * time.Minute)
	real[2].CreatedAt = baseTime.Add(-90 * time.Minute)
	cands := candidates(3)
	for i := range real {
		real[i].Tags = []string{"art"}
		cands[i].Tags = []string{"art"}
	}

	items, err := Merge(real, cands, Config{Strategy: TagMatch{MinGap: 30 * time.Minute}, MaxInjections: 3})
	require.NoError(t, err)
	// only real-2 is followed by a gap larger than 30 minutes; the last post has no successor
	assert.Equal(t, []string{"real-1", "real-2", "cand-1", "real-3"}, allIDs(items))
}

func TestMergeIsIdempotentWithoutShuffle(t *testing.T) {
	real := realPosts(8)
	cands := candidates(4)
	for _, strategy := range allStrategies() {
		cfg := Config{Strategy: strategy, MaxInjections: 3}
		first, err := Merge(real, cands, cfg)
		require.NoError(t, err)
		second, err := Merge(real, cands, cfg)
		require.NoError(t, err)
		assert.Equal(t, first, second, string(strategy.Kind()))
	}
}

func TestShuffleIsPermutationOfTopCandidates(t *testing.T) {
	cfg := Config{
		Strategy:        AfterN{N: 1},
		MaxInjections:   4,
		ShuffleInjected: true,
		Rand:            rand.New(rand.NewPCG(7, 11)),
	}
	items, err := Merge(realPosts(10), candidates(6), cfg)
	require.NoError(t, err)

	var got []string
	for _, it := range items {
		if it.Injected {
			got = append(got, it.Post.ID)
		}
	}
	assert.ElementsMatch(t, []string{"cand-1", "cand-2", "cand-3", "cand-4"}, got)
	assert.Equal(t, postIDs(realPosts(10)), realIDs(items))
}

func TestMergeDropsCandidatesThatDuplicateRealPosts(t *testing.T) {
	real := realPosts(4)
	cands := candidates(3)
	cands[0].ID = "real-2"
	cands[2].ID = cands[1].ID

	items, err := Merge(real, cands, Config{Strategy: AfterN{N: 1}, MaxInjections: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, InjectedCount(items))
	assert.Equal(t, []string{"real-1", "cand-2", "real-2", "real-3", "real-4"}, allIDs(items))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("uniform", Params{})
	require.NoError(t, err)
	assert.Equal(t, Uniform{}, s)

	s, err = ParseStrategy("AFTER_N", Params{})
	require.NoError(t, err)
	assert.Equal(t, AfterN{N: DefaultAfterN}, s)

	s, err = ParseStrategy("tag_match", Params{MinGap: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, TagMatch{MinGap: 10 * time.Minute}, s)

	_, err = ParseStrategy("random", Params{})
	assert.True(t, errors.Is(err, ErrInvalidStrategy))

	_, err = ParseStrategy("after_n", Params{N: -1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = ParseStrategy("tag_match", Params{MinGap: -time.Second})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestConfigValidate(t *testing.T) {
	_, err := Merge(realPosts(1), candidates(1), Config{})
	assert.True(t, errors.Is(err, ErrInvalidStrategy))

	_, err = Merge(realPosts(1), candidates(1), Config{Strategy: Uniform{}, MaxInjections: -1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	_, err = Merge(realPosts(1), candidates(1), Config{Strategy: AfterN{}, MaxInjections: 1})
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func allIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Post.ID
	}
	return ids
}
