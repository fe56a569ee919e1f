package candidates

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corgi-recs/corgi/internal/models"
)

// ErrPostNotFound is returned when a post is not in the cache
var ErrPostNotFound = errors.New("post not found")

// PostStore caches post snapshots that personalized candidates are drawn from
type PostStore struct {
	db *gorm.DB
}

// NewPostStore creates a post store
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// Save upserts snapshots of posts. Invalid posts are skipped, and so are posts
// that are not public: a followers-only or direct status must never reach another user.
func (s *PostStore) Save(ctx context.Context, posts []models.Post) error {
	rows := make([]models.PostRecord, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		if p.Validate() != nil || !p.Shareable() || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		rows = append(rows, models.NewPostRecord(p))
	}
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content", "tags", "category", "vibe", "tone", "account_type", "post_type",
			"favourites_count", "reblogs_count", "replies_count", "updated_at",
		}),
	}).CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save posts: %w", err)
	}
	return nil
}

// Get returns a cached post
func (s *PostStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var row models.PostRecord
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	post := row.ToPost()
	return &post, nil
}

// Count returns the number of cached posts
func (s *PostStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PostRecord{}).Count(&n).Error
	return n, err
}
