package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqforge/reqforge/pkg/cache"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the metadata cache",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier entry counts and hit rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			stats, err := st.cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %8s %8s %8s %8s\n", "tier", "entries", "hits", "misses", "rate")
			for _, tier := range cache.Tiers {
				ts := stats.Tiers[tier]
				fmt.Printf("%-12s %8d %8d %8d %7.0f%%\n",
					tier, ts.Entries, ts.Hits, ts.Misses, ts.HitRate*100)
			}
			fmt.Printf("%-12s %8d\n", "total", stats.Entries)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			var n int
			if tier != "" {
				n, err = st.cache.ClearTier(cmd.Context(), cache.Tier(tier))
			} else {
				n, err = st.cache.ClearAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "clear only one tier (package, search, index, resolution)")
	return cmd
}
