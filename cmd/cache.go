package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siafu-sim/siafu/sim/cache"
	"github.com/siafu-sim/siafu/sim/platform"
	"github.com/siafu-sim/siafu/sim/world"
)

var (
	cachePath string // Root of the gradient cache
	cacheName string // Map name, one per scenario
)

// cacheCmd groups the gradient cache maintenance commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the persistent gradient cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show entry count and disk usage",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openGradients()
		if err != nil {
			return err
		}
		st := m.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache:    %s\n", st.Dir)
		fmt.Fprintf(out, "Entries:  %s\n", humanize.Comma(int64(st.Entries)))
		fmt.Fprintf(out, "On disk:  %s\n", humanize.Bytes(uint64(st.DiskBytes)))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List cached keys",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openGradients()
		if err != nil {
			return err
		}
		for _, k := range m.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Delete every cached entry",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openGradients()
		if err != nil {
			return err
		}
		n := m.Size()
		if err := m.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s entries from %s\n", humanize.Comma(int64(n)), m.Stats().Dir)
		return nil
	},
}

func openGradients() (*cache.Map[*world.Gradient], error) {
	return cache.Open[*world.Gradient](cachePath, cacheName, cache.Options{Capacity: 1})
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cachePath, "path", platform.DefaultGradientPath(), "Gradient cache root")
	cacheCmd.PersistentFlags().StringVar(&cacheName, "name", "testland", "Cache map name (the scenario name)")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
