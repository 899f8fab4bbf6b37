package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cacheFormat            string
	cacheInvalidateMethods []string
	cacheInvalidatePattern string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Cache usage for this repository and the backend",
	Run:   runCacheStats,
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List this repository's cached entries",
	Run:   runCacheKeys,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Clear this repository's cached entries",
	Long: `Clear cached entries for this repository. Without flags every owned
entry is removed; --method keeps it to named methods, --pattern to keys
matching a glob. The two are mutually exclusive. Entries owned by other
repositories sharing the backend are never touched.

Examples:
  gittab cache invalidate
  gittab cache invalidate --method commit_history --method blame
  gittab cache invalidate --pattern 'blame*'`,
	Run: runCacheInvalidate,
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheFormat, "format", "table", "Output format (table, json, yaml)")
	cacheInvalidateCmd.Flags().StringSliceVar(&cacheInvalidateMethods, "method", nil, "Only clear entries for these methods")
	cacheInvalidateCmd.Flags().StringVar(&cacheInvalidatePattern, "pattern", "", "Only clear keys matching this glob")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheKeysCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	r := openRepo()
	stats, err := r.GetCacheStats()
	if err != nil {
		fail("getting cache stats", err)
	}
	emit(stats, cacheFormat)
}

func runCacheKeys(cmd *cobra.Command, args []string) {
	r := openRepo()
	keys, err := r.ListCachedKeys()
	if err != nil {
		fail("listing cached keys", err)
	}
	emit(keys, cacheFormat)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) {
	r := openRepo()
	removed, err := r.InvalidateCache(cacheInvalidateMethods, cacheInvalidatePattern)
	if err != nil {
		fail("invalidating cache", err)
	}
	fmt.Printf("Removed %d cache entries for %s\n", removed, r.Name())
}
