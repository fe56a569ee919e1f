package main

import (
	"fmt"

	"github.com/fatih/color"
)

func printHeader(title string) {
	bold := color.New(color.Bold, color.FgCyan)
	fmt.Println()
	_, _ = bold.Println(title)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func printSuccess(msg string, args ...interface{}) {
	_, _ = color.New(color.FgGreen).Printf("✓ "+msg+"\n", args...)
}

func printWarning(msg string, args ...interface{}) {
	_, _ = color.New(color.FgYellow).Printf(msg+"\n", args...)
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}
