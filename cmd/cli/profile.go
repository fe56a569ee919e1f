package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or reset your recommendation profile",
}

var showProfileCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your signal profile and sourcing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showProfile()
	},
}

var assumeYes bool

var resetProfileCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete your signal profile and stored interactions",
	Long: `Delete your signal profile and stored interactions. This will:
- Return you to cold-start recommendations
- Remove every interaction row kept for you`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !assumeYes && !confirm("Reset your recommendation profile?") {
			printWarning("Aborted")
			return nil
		}
		var res struct {
			Removed int64 `json:"interactions_removed"`
		}
		raw, err := call("DELETE", "/api/v1/recommendations/profile", nil, &res)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Println(string(raw))
			return nil
		}
		printSuccess("Profile reset, %d interactions removed", res.Removed)
		return nil
	},
}

func init() {
	resetProfileCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	profileCmd.AddCommand(showProfileCmd)
	profileCmd.AddCommand(resetProfileCmd)
}

func showProfile() error {
	var profile struct {
		Status        string   `json:"status"`
		IsPromoted    bool     `json:"is_promoted"`
		NeedsReentry  bool     `json:"needs_reentry"`
		RandomRatio   float64  `json:"random_ratio"`
		WeightedRatio float64  `json:"weighted_ratio"`
		TopTags       []string `json:"top_tags"`
		Profile       *struct {
			InteractionCount int64            `json:"interaction_count"`
			ActionCounts     map[string]int64 `json:"action_counts"`
		} `json:"profile"`
	}
	raw, err := call("GET", "/api/v1/recommendations/profile", nil, &profile)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(raw))
		return nil
	}

	printHeader("📋 Recommendation Profile")
	fmt.Printf("Status: %s\n", profile.Status)
	if profile.NeedsReentry {
		printWarning("  (inactive for a while, back on cold-start picks)")
	}
	fmt.Printf("Blend: %.0f%% random / %.0f%% preference-weighted\n", profile.RandomRatio*100, profile.WeightedRatio*100)
	if profile.Profile != nil {
		fmt.Printf("Interactions: %d\n", profile.Profile.InteractionCount)
		for action, n := range profile.Profile.ActionCounts {
			fmt.Printf("  %-10s %d\n", action, n)
		}
	}
	if len(profile.TopTags) > 0 {
		fmt.Printf("Top tags: #%s\n", strings.Join(profile.TopTags, " #"))
	}
	fmt.Printf("\n")
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
