package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corgi-recs/corgi/internal/models"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	db, err := Open(Options{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "corgi.db"), Tracing: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	require.NoError(t, Health(context.Background(), db))

	for _, table := range []string{"post_records", "interactions", "signal_profiles", "signal_weights", "seen_posts", "privacy_settings", "injection_events", "recommendation_impressions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// migrating twice is harmless
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&models.PrivacySetting{UserAlias: "a", Level: models.PrivacyFull}).Error)
}

func TestMigrateInMemoryStoresTags(t *testing.T) {
	db, err := Open(Options{Type: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasColumn(&models.PostRecord{}, "tags"))
	assert.True(t, db.Migrator().HasColumn(&models.PostRecord{}, "visibility"))

	row := models.PostRecord{ID: "p1", AuthorID: "a1", Tags: models.StringArray{"go", "jazz"}, Visibility: models.VisibilityPublic}
	require.NoError(t, db.Create(&row).Error)
	empty := models.PostRecord{ID: "p2", AuthorID: "a1", Tags: models.StringArray{}}
	require.NoError(t, db.Create(&empty).Error)

	var got models.PostRecord
	require.NoError(t, db.First(&got, "id = ?", "p1").Error)
	assert.Equal(t, models.StringArray{"go", "jazz"}, got.Tags)

	var bare models.PostRecord
	require.NoError(t, db.First(&bare, "id = ?", "p2").Error)
	assert.Empty(t, bare.Tags)
	assert.Equal(t, models.VisibilityPrivate, bare.Visibility, "unset visibility defaults to restricted")
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(Options{Type: "mysql"})
	assert.Error(t, err)
}

func TestNilDatabase(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.Error(t, Health(context.Background(), nil))
	assert.NoError(t, Close(nil))
}
