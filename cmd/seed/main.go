package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/corgi-recs/corgi/internal/candidates"
	"github.com/corgi-recs/corgi/internal/config"
	"github.com/corgi-recs/corgi/internal/database"
	"github.com/corgi-recs/corgi/internal/interactions"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/privacy"
	"github.com/corgi-recs/corgi/internal/recommendations"
	"github.com/corgi-recs/corgi/internal/seed"
	"github.com/corgi-recs/corgi/internal/signals"
)

var (
	configPath string
	seedValue  uint64
	postCount  int
	poolCount  int
	userCount  int
	perUser    int
	poolOut    string
)

var rootCmd = &cobra.Command{
	Use:   "corgi-seed",
	Short: "Generate cold-start pools and development data",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using system environment variables")
		}
		if seedValue == 0 {
			seedValue = uint64(time.Now().UnixNano())
		}
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Write a synthetic cold-start pool file",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := seed.NewSeeder(nil, seedValue).GeneratePool(poolCount)
		if err := seed.WritePool(poolOut, entries); err != nil {
			return err
		}
		log.Printf("✅ Wrote %d pool entries to %s", len(entries), poolOut)
		return nil
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Seed the development database with posts and simulated users",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := open()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(db) }()
		ctx := context.Background()

		seeder := seed.NewSeeder(db, seedValue)
		if cfg.Recommendations.Enabled {
			log.Println("🔮 Syncing seeded posts to Gorse")
			seeder.SetGorseClient(recommendations.NewGorseRESTClient(
				cfg.Recommendations.GorseURL, cfg.Recommendations.APIKey, cfg.Recommendations.Timeout))
		}

		posts := seeder.GeneratePosts(postCount)
		if err := seeder.LoadPosts(ctx, posts); err != nil {
			return err
		}

		signalsCfg, err := cfg.SignalsConfig()
		if err != nil {
			return err
		}
		// seeded users consent fully so their rows exercise every code path
		gate := privacy.NewGate(db, models.PrivacyFull)
		logged := interactions.NewService(db, gate, signals.NewService(db, signalsCfg), candidates.NewPostStore(db), nil)
		promoted, err := seeder.SimulateUsers(ctx, logged, posts, userCount, perUser)
		logged.Wait()
		if err != nil {
			return err
		}

		log.Printf("✅ Seeded %d posts and %d users (%d promoted)", len(posts), userCount, len(promoted))
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all seed data (use with caution)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := open()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(db) }()

		if err := seed.NewSeeder(db, seedValue).Clean(context.Background()); err != nil {
			return err
		}
		log.Println("✅ Seed data cleaned successfully!")
		return nil
	},
}

func open() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(cfg.LoggerOptions()); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(database.Options{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CORGI_CONFIG"), "Path to a config file")
	rootCmd.PersistentFlags().Uint64Var(&seedValue, "seed", 0, "Random seed (0 picks one from the clock)")

	poolCmd.Flags().IntVar(&poolCount, "posts", 200, "Number of pool entries")
	poolCmd.Flags().StringVar(&poolOut, "out", "config/cold_start_pool.json", "Output path")

	devCmd.Flags().IntVar(&postCount, "posts", 1000, "Number of posts to store")
	devCmd.Flags().IntVar(&userCount, "users", 50, "Number of simulated users")
	devCmd.Flags().IntVar(&perUser, "interactions", 12, "Interactions per simulated user")

	rootCmd.AddCommand(poolCmd, devCmd, cleanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
