package main

import (
	"github.com/spf13/cobra"
)

var branchesFormat string

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List local branches",
	Run:   runBranches,
}

func init() {
	branchesCmd.Flags().StringVar(&branchesFormat, "format", "table", "Output format (table, json, yaml)")
	rootCmd.AddCommand(branchesCmd)
}

func runBranches(cmd *cobra.Command, args []string) {
	if projectFlag {
		p := openProject()
		rows, err := p.Branches()
		if err != nil {
			fail("listing branches", err)
		}
		emit(rows, branchesFormat)
		return
	}

	r := openRepo()
	rows, err := r.Branches()
	if err != nil {
		fail("listing branches", err)
	}
	emit(rows, branchesFormat)
}
