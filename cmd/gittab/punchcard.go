package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	punchcardFormat     string
	punchcardBranch     string
	punchcardLimit      int
	punchcardExtensions []string
	punchcardIgnoreDirs []string
)

var punchcardCmd = &cobra.Command{
	Use:   "punchcard",
	Short: "Commit activity by weekday and hour",
	Run:   runPunchcard,
}

func init() {
	punchcardCmd.Flags().StringVar(&punchcardFormat, "format", "table", "Output format (table, json, yaml)")
	punchcardCmd.Flags().StringVar(&punchcardBranch, "branch", "", "Branch to walk (default: repository default)")
	punchcardCmd.Flags().IntVar(&punchcardLimit, "limit", 0, "Maximum commits (0 = all)")
	punchcardCmd.Flags().StringSliceVar(&punchcardExtensions, "ext", nil, "Only count files with these extensions")
	punchcardCmd.Flags().StringSliceVar(&punchcardIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	rootCmd.AddCommand(punchcardCmd)
}

func runPunchcard(cmd *cobra.Command, args []string) {
	r := openRepo()
	filter := repo.Filter{Extensions: punchcardExtensions, IgnoreDirs: punchcardIgnoreDirs}

	rows, err := r.Punchcard(punchcardBranch, punchcardLimit, filter)
	if err != nil {
		fail("computing punchcard", err)
	}
	emit(rows, punchcardFormat)
}
