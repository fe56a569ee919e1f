package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/corgi-recs/corgi/internal/config"
	"github.com/corgi-recs/corgi/internal/database"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/seed"
	"github.com/corgi-recs/corgi/internal/signals"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load(os.Getenv("CORGI_CONFIG"))
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	db, err := database.Open(database.Options{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	fmt.Println("🔍 Verifying seed data...")
	fmt.Println()

	like := seed.IDPrefix + "%"
	var postCount, profileCount, weightCount, interactionCount int64
	db.Model(&models.PostRecord{}).Where("id LIKE ?", like).Count(&postCount)
	db.Model(&models.SignalProfile{}).Where("user_alias LIKE ?", like).Count(&profileCount)
	db.Model(&models.SignalWeight{}).Where("user_alias LIKE ?", like).Count(&weightCount)
	db.Model(&models.Interaction{}).Where("user_alias LIKE ?", like).Count(&interactionCount)

	fmt.Println("📊 Record Counts:")
	fmt.Printf("  Posts:          %d\n", postCount)
	fmt.Printf("  Profiles:       %d\n", profileCount)
	fmt.Printf("  Signal weights: %d\n", weightCount)
	fmt.Printf("  Interactions:   %d\n", interactionCount)
	fmt.Println()

	// Sample posts
	var posts []models.PostRecord
	db.Where("id LIKE ?", like).Limit(3).Find(&posts)
	fmt.Println("  Sample Posts:")
	for _, p := range posts {
		fmt.Printf("    - @%s [%s] #%s\n", p.AuthorUsername, p.Category, strings.Join(p.Tags, " #"))
	}
	fmt.Println()

	// Promotion breakdown, computed the same way the timeline does
	signalsCfg, err := cfg.SignalsConfig()
	if err != nil {
		log.Fatalf("❌ Invalid signals configuration: %v", err)
	}
	svc := signals.NewService(db, signalsCfg)
	var aliases []string
	db.Model(&models.SignalProfile{}).Where("user_alias LIKE ?", like).Pluck("user_alias", &aliases)

	statuses := map[signals.Status]int{}
	var promoted string
	for _, alias := range aliases {
		status, _, err := svc.Status(context.Background(), alias)
		if err != nil {
			log.Printf("⚠️  %s: %v", alias, err)
			continue
		}
		statuses[status]++
		if status == signals.StatusPromoted && promoted == "" {
			promoted = alias
		}
	}
	fmt.Println("🔗 Sourcing Status:")
	for status, n := range statuses {
		fmt.Printf("  %-12s %d\n", status, n)
	}
	fmt.Println()

	// Export sample data as JSON for API testing
	if len(os.Args) > 1 && os.Args[1] == "--json" && len(posts) > 0 {
		sampleData := map[string]interface{}{
			"post_id":        posts[0].ID,
			"promoted_alias": promoted,
		}
		jsonData, _ := json.MarshalIndent(sampleData, "", "  ")
		fmt.Println("📋 Sample IDs for API testing:")
		fmt.Println(string(jsonData))
	}

	fmt.Println("✅ Seed data verification complete!")
}
