// Package seed generates synthetic posts and interactions for development databases
// and cold-start pool files.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/interactions"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
)

// IDPrefix marks every post and user alias created by the seeder
const IDPrefix = "seed-"

var (
	seedTags = []string{
		"photography", "art", "music", "gardening", "cats", "dogs", "books", "cooking",
		"coffee", "hiking", "linux", "golang", "rust", "opensource", "science", "space",
		"history", "birds", "knitting", "cycling", "climate", "poetry", "film", "boardgames",
	}
	seedCategories   = []string{"arts", "tech", "nature", "food", "science", "culture", "hobbies"}
	seedVibes        = []string{"cozy", "curious", "energetic", "calm", "playful", "thoughtful"}
	seedTones        = []string{"casual", "informative", "humorous", "earnest", "reflective"}
	seedAccountTypes = []string{"person", "organization", "artist", "bot"}
	seedPostTypes    = []string{"text", "image", "link", "poll", "video"}
)

// InteractionLogger is the subset of the interaction service used to simulate users
type InteractionLogger interface {
	Log(ctx context.Context, e interactions.Event) (*interactions.Result, error)
}

// ItemSyncer pushes posts to an external recommender
type ItemSyncer interface {
	SyncItems(ctx context.Context, posts []models.Post) error
}

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	posts *candidates.PostStore
	gorse ItemSyncer
	faker *gofakeit.Faker
	now   time.Time
}

// NewSeeder creates a seeder. The same seed produces the same data; db may be nil
// when only pool files are generated.
func NewSeeder(db *gorm.DB, seed uint64) *Seeder {
	s := &Seeder{
		db:    db,
		faker: gofakeit.New(seed),
		now:   time.Now().UTC(),
	}
	if db != nil {
		s.posts = candidates.NewPostStore(db)
	}
	return s
}

// SetGorseClient sets the Gorse client for syncing seeded posts
func (s *Seeder) SetGorseClient(gorse ItemSyncer) {
	s.gorse = gorse
}

// GeneratePosts creates count synthetic posts authored by a small set of fake accounts
func (s *Seeder) GeneratePosts(count int) []models.Post {
	authors := s.generateAccounts(max(count/5, 1))
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := authors[s.faker.IntRange(0, len(authors)-1)]
		id := fmt.Sprintf("%s%s", IDPrefix, s.faker.UUID())
		posts = append(posts, models.Post{
			ID:              id,
			Account:         author,
			CreatedAt:       s.faker.DateRange(s.now.AddDate(0, 0, -14), s.now).UTC(),
			Content:         "<p>" + s.faker.HipsterSentence() + "</p>",
			URL:             fmt.Sprintf("https://example.social/@%s/%s", author.Username, id),
			Language:        "en",
			Visibility:      models.VisibilityPublic,
			FavouritesCount: s.faker.IntRange(0, 400),
			ReblogsCount:    s.faker.IntRange(0, 120),
			RepliesCount:    s.faker.IntRange(0, 60),
			Tags:            s.pick(seedTags, s.faker.IntRange(1, 3)),
			Metadata: models.PostMetadata{
				Category:    s.faker.RandomString(seedCategories),
				Vibe:        s.faker.RandomString(seedVibes),
				Tone:        s.faker.RandomString(seedTones),
				AccountType: s.accountType(author),
				PostType:    s.faker.RandomString(seedPostTypes),
			},
		})
	}
	return posts
}

// GeneratePool creates a cold-start pool. Weights favour posts with more engagement.
func (s *Seeder) GeneratePool(count int) []candidates.PoolEntry {
	posts := s.GeneratePosts(count)
	entries := make([]candidates.PoolEntry, 0, len(posts))
	for _, p := range posts {
		engagement := float64(p.FavouritesCount + 2*p.ReblogsCount + p.RepliesCount)
		weight := 1 + engagement/200
		entries = append(entries, candidates.PoolEntry{Post: p, Weight: float64(int(weight*100)) / 100})
	}
	return entries
}

// WritePool writes entries as an indented JSON pool file, creating parent directories
func WritePool(path string, entries []candidates.PoolEntry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create pool directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pool: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write pool: %w", err)
	}
	return nil
}

// LoadPosts stores posts as personalized candidates and, if configured, syncs them to Gorse
func (s *Seeder) LoadPosts(ctx context.Context, posts []models.Post) error {
	if s.posts == nil {
		return fmt.Errorf("seeder has no database")
	}
	if err := s.posts.Save(ctx, posts); err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	logger.Log.Info("Seeded posts", zap.Int("count", len(posts)))

	if s.gorse == nil {
		return nil
	}
	if err := s.gorse.SyncItems(ctx, posts); err != nil {
		// Gorse is optional; the database copy is enough for local candidates
		logger.WarnWithFields("Failed to sync seeded posts to Gorse", err)
		return nil
	}
	logger.Log.Info("Synced seeded posts to Gorse", zap.Int("count", len(posts)))
	return nil
}

// SimulateUsers logs perUser interactions for each of users fake users. Each user
// sticks to a few favourite tags so some of them cross the promotion threshold.
// It returns the aliases that ended up promoted.
func (s *Seeder) SimulateUsers(ctx context.Context, log InteractionLogger, posts []models.Post, users, perUser int) ([]string, error) {
	if len(posts) == 0 {
		return nil, fmt.Errorf("no posts to interact with")
	}
	actions := []models.ActionType{
		models.ActionFavorite, models.ActionReblog, models.ActionReply, models.ActionBookmark,
	}

	var promoted []string
	for u := 0; u < users; u++ {
		alias := fmt.Sprintf("%suser-%03d", IDPrefix, u)
		liked := s.pick(seedTags, 4)
		pool := postsTagged(posts, liked)
		if len(pool) == 0 {
			pool = posts
		}

		var last *interactions.Result
		for i := 0; i < perUser; i++ {
			post := pool[s.faker.IntRange(0, len(pool)-1)]
			// cycle the first actions so every required one appears
			action := actions[i%len(actions)]
			if i >= len(actions) {
				action = actions[s.faker.IntRange(0, len(actions)-1)]
			}
			res, err := log.Log(ctx, interactions.Event{
				UserAlias: alias,
				PostID:    post.ID,
				Action:    action,
				Post:      &post,
				Context:   interactions.Context{Source: "seed"},
			})
			if err != nil {
				return promoted, fmt.Errorf("failed to log interaction for %s: %w", alias, err)
			}
			last = res
		}
		if last != nil && last.Promoted {
			promoted = append(promoted, alias)
		}
	}

	logger.Log.Info("Simulated users",
		zap.Int("users", users),
		zap.Int("interactions_per_user", perUser),
		zap.Int("promoted", len(promoted)))
	return promoted, nil
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("seeder has no database")
	}
	like := IDPrefix + "%"
	db := s.db.WithContext(ctx)

	if err := db.Where("user_alias LIKE ?", like).Delete(&models.Interaction{}).Error; err != nil {
		return fmt.Errorf("failed to clean interactions: %w", err)
	}
	if err := db.Where("user_alias LIKE ?", like).Delete(&models.SignalWeight{}).Error; err != nil {
		return fmt.Errorf("failed to clean signal weights: %w", err)
	}
	if err := db.Where("user_alias LIKE ?", like).Delete(&models.SeenPost{}).Error; err != nil {
		return fmt.Errorf("failed to clean seen posts: %w", err)
	}
	if err := db.Where("user_alias LIKE ?", like).Delete(&models.SignalProfile{}).Error; err != nil {
		return fmt.Errorf("failed to clean signal profiles: %w", err)
	}
	if err := db.Where("user_alias LIKE ?", like).Delete(&models.RecommendationImpression{}).Error; err != nil {
		return fmt.Errorf("failed to clean impressions: %w", err)
	}
	if err := db.Where("id LIKE ?", like).Delete(&models.PostRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean posts: %w", err)
	}
	return nil
}

func (s *Seeder) generateAccounts(n int) []models.Account {
	accounts := make([]models.Account, 0, n)
	for i := 0; i < n; i++ {
		username := strings.ToLower(s.faker.Username())
		accounts = append(accounts, models.Account{
			ID:          fmt.Sprintf("%sacct-%d", IDPrefix, i),
			Username:    username,
			Acct:        username + "@example.social",
			DisplayName: s.faker.Name(),
			URL:         "https://example.social/@" + username,
			Avatar:      fmt.Sprintf("https://api.dicebear.com/7.x/shapes/png?seed=%s", username),
			Bot:         s.faker.IntRange(0, 19) == 0,
		})
	}
	return accounts
}

func (s *Seeder) accountType(a models.Account) string {
	if a.Bot {
		return "bot"
	}
	return s.faker.RandomString(seedAccountTypes[:3])
}

// pick returns up to n distinct values from vocab
func (s *Seeder) pick(vocab []string, n int) []string {
	if n > len(vocab) {
		n = len(vocab)
	}
	idx := make([]int, len(vocab))
	for i := range idx {
		idx[i] = i
	}
	s.faker.ShuffleInts(idx)
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, vocab[i])
	}
	return out
}

func postsTagged(posts []models.Post, tags []string) []models.Post {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []models.Post
	for _, p := range posts {
		for _, t := range p.Tags {
			if want[t] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
