package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	busFactorFormat     string
	busFactorBranch     string
	busFactorExtensions []string
	busFactorIgnoreDirs []string
)

var busFactorCmd = &cobra.Command{
	Use:   "bus-factor",
	Short: "Fewest committers owning half the lines",
	Long: `The smallest number of committers that together own at least 50%
of the blamed lines. Low numbers flag knowledge concentration risk.

Examples:
  gittab bus-factor
  gittab bus-factor --ext go --ignore-dir vendor
  gittab bus-factor --project --dir ~/src`,
	Run: runBusFactor,
}

func init() {
	busFactorCmd.Flags().StringVar(&busFactorFormat, "format", "table", "Output format (table, json, yaml)")
	busFactorCmd.Flags().StringVar(&busFactorBranch, "branch", "", "Branch to measure (default: repository default)")
	busFactorCmd.Flags().StringSliceVar(&busFactorExtensions, "ext", nil, "Only count files with these extensions")
	busFactorCmd.Flags().StringSliceVar(&busFactorIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	rootCmd.AddCommand(busFactorCmd)
}

func runBusFactor(cmd *cobra.Command, args []string) {
	filter := repo.Filter{Extensions: busFactorExtensions, IgnoreDirs: busFactorIgnoreDirs}

	if projectFlag {
		p := openProject()
		rows, err := p.BusFactor(busFactorBranch, filter)
		if err != nil {
			fail("computing bus factor", err)
		}
		emit(rows, busFactorFormat)
		return
	}

	r := openRepo()
	row, err := r.BusFactor(busFactorBranch, filter)
	if err != nil {
		fail("computing bus factor", err)
	}
	emit([]repo.BusFactorRow{row}, busFactorFormat)
}
