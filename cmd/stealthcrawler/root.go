// Package main provides the entry point for the stealthcrawler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for stealthcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stealthcrawler",
		Short: "Recursive web crawler with an anti-detection engine",
		Long: `stealthcrawler is a recursive web crawler with an anti-detection engine.
It crawls a site from a seed URL, extracting titles and links, while rotating
browser identities, randomizing headers, pacing requests, and routing traffic
through validated proxies.

By default the crawler respects robots.txt and stays on the seed's domain.
Use --stealth to enable the full anti-detection feature set.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
