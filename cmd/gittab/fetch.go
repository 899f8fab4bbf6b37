package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	fetchFormat string
	fetchDryRun bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Non-destructive fetch from the configured remote",
	Long: `Fetch from the repository's first configured remote. Never merges or
rebases; with --dry-run nothing is written at all. A repository with no
remote succeeds as a no-op.`,
	Run: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFormat, "format", "table", "Output format (table, json, yaml)")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Report what a fetch would do without doing it")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	r := openRepo()
	status, err := r.SafeFetchRemote(fetchDryRun)
	if err != nil {
		fail("fetching remote", err)
	}
	emit([]*repo.FetchStatus{status}, fetchFormat)
}
