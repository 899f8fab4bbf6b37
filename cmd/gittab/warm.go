package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/project"
	"gittab/internal/repo"
)

var (
	warmFormat     string
	warmMethods    []string
	warmLimit      int
	warmExtensions []string
	warmIgnoreDirs []string
	warmParallel   bool
	warmWorkers    int
	warmFetch      bool
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-populate the analysis cache",
	Long: `Run extraction methods purely to populate the cache, so later calls
hit it. By default the standard set runs: commit_history, branches, tags,
blame, bus_factor.

With --project, every repository under --dir is fetched and warmed; with
--parallel the fan-out is bounded by --workers.

Examples:
  gittab warm
  gittab warm --method commit_history --method blame --limit 500
  gittab warm --project --parallel --workers 8`,
	Run: runWarm,
}

func init() {
	warmCmd.Flags().StringVar(&warmFormat, "format", "table", "Output format (table, json, yaml)")
	warmCmd.Flags().StringSliceVar(&warmMethods, "method", nil, "Methods to warm (default: standard set)")
	warmCmd.Flags().IntVar(&warmLimit, "limit", 0, "Commit limit passed to history methods (0 = all)")
	warmCmd.Flags().StringSliceVar(&warmExtensions, "ext", nil, "Only count files with these extensions")
	warmCmd.Flags().StringSliceVar(&warmIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	warmCmd.Flags().BoolVar(&warmParallel, "parallel", false, "Warm repositories concurrently (with --project)")
	warmCmd.Flags().IntVar(&warmWorkers, "workers", 4, "Concurrent repositories (with --parallel)")
	warmCmd.Flags().BoolVar(&warmFetch, "fetch", false, "Fetch remotes before warming (with --project)")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) {
	filter := repo.Filter{Extensions: warmExtensions, IgnoreDirs: warmIgnoreDirs}

	if projectFlag {
		p := openProject()
		result, err := p.BulkFetchAndWarm(project.BulkOptions{
			Parallel: warmParallel,
			Workers:  warmWorkers,
			DryRun:   !warmFetch,
			Methods:  warmMethods,
			Limit:    warmLimit,
			Filter:   filter,
		})
		if err != nil {
			fail("bulk fetch and warm", err)
		}
		emit(result, warmFormat)
		return
	}

	r := openRepo()
	result, err := r.WarmCache(warmMethods, warmLimit, filter)
	if err != nil {
		fail("warming cache", err)
	}
	emit(result, warmFormat)
}
