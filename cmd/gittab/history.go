package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	historyFormat     string
	historyBranch     string
	historyLimit      int
	historyExtensions []string
	historyIgnoreDirs []string
	historyByFile     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Commit history as a table",
	Long: `Commit history on a branch, newest first, with per-commit line stats.

Examples:
  gittab history
  gittab history --branch develop --limit 100
  gittab history --ext go --ext py --ignore-dir vendor
  gittab history --by-file --format json
  gittab history --project --dir ~/src`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "Output format (table, json, yaml)")
	historyCmd.Flags().StringVar(&historyBranch, "branch", "", "Branch to walk (default: repository default)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum commits (0 = all)")
	historyCmd.Flags().StringSliceVar(&historyExtensions, "ext", nil, "Only count files with these extensions")
	historyCmd.Flags().StringSliceVar(&historyIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	historyCmd.Flags().BoolVar(&historyByFile, "by-file", false, "One row per file edit instead of per commit")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	filter := repo.Filter{Extensions: historyExtensions, IgnoreDirs: historyIgnoreDirs}

	if projectFlag {
		p := openProject()
		rows, err := p.CommitHistory(historyBranch, historyLimit, filter)
		if err != nil {
			fail("getting commit history", err)
		}
		emit(rows, historyFormat)
		return
	}

	r := openRepo()
	if historyByFile {
		rows, err := r.FileChangeHistory(historyBranch, historyLimit, filter)
		if err != nil {
			fail("getting file change history", err)
		}
		emit(rows, historyFormat)
		return
	}
	rows, err := r.CommitHistory(historyBranch, historyLimit, filter)
	if err != nil {
		fail("getting commit history", err)
	}
	emit(rows, historyFormat)
}
