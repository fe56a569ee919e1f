// Package database opens the SQL store and migrates the schema.
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/telemetry"
)

// Options selects and tunes the backend
type Options struct {
	Type         string // sqlite or postgres
	SQLitePath   string
	PostgresDSN  string
	MaxOpenConns int
	MaxIdleConns int
	Debug        bool // log every statement
	Tracing      bool
}

// Open creates and configures the database connection
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Type {
	case "postgres":
		dialector = postgres.Open(opts.PostgresDSN)
	case "sqlite", "":
		// WAL lets readers proceed while the metrics worker writes
		dialector = sqlite.Open(opts.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL")
	default:
		return nil, fmt.Errorf("unsupported database type %q", opts.Type)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Debug {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(telemetry.GORMTracingPlugin(dbSystem(opts.Type))); err != nil {
			return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Type == "postgres" {
		sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 25))
		sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 5))
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// one writer at a time for sqlite
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Log.Info("Database connected", zap.String("type", dbSystem(opts.Type)))
	return db, nil
}

// Migrate runs auto-migration for all models and creates extra indexes
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	createIndexes(db)
	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds indexes gorm tags cannot express. Failures are logged, not fatal.
func createIndexes(db *gorm.DB) {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_signal_weights_user_dimension ON signal_weights (user_alias, dimension, weight DESC)",
		"CREATE INDEX IF NOT EXISTS idx_injection_events_created ON injection_events (created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_impressions_user_post ON recommendation_impressions (user_alias, post_id)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func dbSystem(kind string) string {
	if kind == "postgres" {
		return "postgresql"
	}
	return "sqlite"
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
