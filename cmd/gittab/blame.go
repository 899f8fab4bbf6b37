package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	blameFormat     string
	blameRev        string
	blameExtensions []string
	blameIgnoreDirs []string
	blameCumulative bool
	blameLimit      int
	blameSkip       int
)

var blameCmd = &cobra.Command{
	Use:   "blame",
	Short: "Current line ownership by committer",
	Long: `Line ownership at a revision, grouped by committer and sorted by
line count descending.

Examples:
  gittab blame
  gittab blame --rev v1.2.0 --ext go
  gittab blame --cumulative --limit 20 --skip 5
  gittab blame --project --dir ~/src`,
	Run: runBlame,
}

func init() {
	blameCmd.Flags().StringVar(&blameFormat, "format", "table", "Output format (table, json, yaml)")
	blameCmd.Flags().StringVar(&blameRev, "rev", "", "Revision to blame (default: repository default branch)")
	blameCmd.Flags().StringSliceVar(&blameExtensions, "ext", nil, "Only blame files with these extensions")
	blameCmd.Flags().StringSliceVar(&blameIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	blameCmd.Flags().BoolVar(&blameCumulative, "cumulative", false, "Blame distribution at each sampled revision")
	blameCmd.Flags().IntVar(&blameLimit, "limit", 0, "Revisions to sample with --cumulative (0 = all)")
	blameCmd.Flags().IntVar(&blameSkip, "skip", 0, "Sample every Nth revision with --cumulative")
	rootCmd.AddCommand(blameCmd)
}

func runBlame(cmd *cobra.Command, args []string) {
	filter := repo.Filter{Extensions: blameExtensions, IgnoreDirs: blameIgnoreDirs}

	if projectFlag {
		p := openProject()
		rows, err := p.Blame(blameRev, filter)
		if err != nil {
			fail("getting blame", err)
		}
		emit(rows, blameFormat)
		return
	}

	r := openRepo()
	if blameCumulative {
		rows, err := r.CumulativeBlame(blameRev, blameLimit, blameSkip, filter)
		if err != nil {
			fail("getting cumulative blame", err)
		}
		emit(rows, blameFormat)
		return
	}
	rows, err := r.Blame(blameRev, filter)
	if err != nil {
		fail("getting blame", err)
	}
	emit(rows, blameFormat)
}
