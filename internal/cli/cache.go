package cli

import (
	"fmt"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/config"
	"github.com/spf13/cobra"
)

var purgeOlderThanDays int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the embedding cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove cached embeddings older than a number of days",
	Long: `Remove cached embeddings created more than --older-than-days ago.
Unreadable entries are removed as well. With --older-than-days 0 the whole
cache is cleared.

Examples:
  community-agent cache purge
  community-agent cache purge --older-than-days 7`,
	Args: cobra.NoArgs,
	RunE: runCachePurge,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding cache size and settings",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func init() {
	cachePurgeCmd.Flags().IntVar(&purgeOlderThanDays, "older-than-days", 30, "remove entries older than this many days")
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	if purgeOlderThanDays < 0 {
		return fmt.Errorf("--older-than-days must not be negative")
	}
	ctx := cmd.Context()

	cache, closeCache, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	cutoff := time.Now().Add(-time.Duration(purgeOlderThanDays) * 24 * time.Hour)
	removed, err := cache.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached embeddings older than %d days\n", removed, purgeOlderThanDays)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cache, closeCache, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	n, err := cache.Len(ctx)
	if err != nil {
		return fmt.Errorf("count cache entries: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:  %s\n", cfg.EmbedCacheBackend)
	if cfg.EmbedCacheBackend != config.CacheBackendNone {
		fmt.Fprintf(out, "Location: %s\n", cfg.EmbedCacheDir)
	}
	fmt.Fprintf(out, "TTL:      %s\n", cfg.EmbedCacheTTL)
	fmt.Fprintf(out, "Entries:  %d\n", n)
	return nil
}
