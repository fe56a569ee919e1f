package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corgi-recs/corgi/internal/models"
)

type privacyResult struct {
	Level                string `json:"level"`
	AllowPersonalization bool   `json:"allow_personalization"`
	AllowDetailedStorage bool   `json:"allow_detailed_storage"`
}

var privacyCmd = &cobra.Command{
	Use:   "privacy",
	Short: "Manage your tracking level",
	Long: `Commands for managing how much of your activity is tracked.

  full     - interactions are stored and used for personalized injections
  limited  - only aggregated signals are kept (default)
  none     - nothing is tracked and nothing is injected`,
}

var getPrivacyCmd = &cobra.Command{
	Use:   "get",
	Short: "Show your current privacy level",
	RunE: func(cmd *cobra.Command, args []string) error {
		var res privacyResult
		raw, err := call("GET", "/api/v1/privacy", nil, &res)
		if err != nil {
			return err
		}
		printPrivacy(raw, res)
		return nil
	},
}

var setPrivacyCmd = &cobra.Command{
	Use:       "set <full|limited|none>",
	Short:     "Change your privacy level",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"full", "limited", "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := models.ParsePrivacyLevel(args[0])
		if err != nil {
			return err
		}
		var res privacyResult
		raw, err := call("PUT", "/api/v1/privacy", map[string]string{"level": string(level)}, &res)
		if err != nil {
			return err
		}
		if output != "json" {
			printSuccess("Privacy level set to %s", res.Level)
		}
		printPrivacy(raw, res)
		return nil
	},
}

func init() {
	privacyCmd.AddCommand(getPrivacyCmd)
	privacyCmd.AddCommand(setPrivacyCmd)
}

func printPrivacy(raw []byte, res privacyResult) {
	if output == "json" {
		fmt.Println(string(raw))
		return
	}
	printHeader("🔒 Privacy")
	fmt.Printf("Level: %s\n", res.Level)
	fmt.Printf("  Personalized injections: %s\n", yesNo(res.AllowPersonalization))
	fmt.Printf("  Interaction history:     %s\n", yesNo(res.AllowDetailedStorage))
}
