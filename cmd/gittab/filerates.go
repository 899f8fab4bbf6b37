package main

import (
	"github.com/spf13/cobra"

	"gittab/internal/repo"
)

var (
	fileRatesFormat     string
	fileRatesBranch     string
	fileRatesLimit      int
	fileRatesExtensions []string
	fileRatesIgnoreDirs []string
)

var fileRatesCmd = &cobra.Command{
	Use:   "file-rates",
	Short: "Per-file change velocity",
	Long: `Per-file change totals and daily rates over the observed history
window, sorted by absolute rate descending. High edit rates (churn that
cancels itself out) often mark unstable code.`,
	Run: runFileRates,
}

func init() {
	fileRatesCmd.Flags().StringVar(&fileRatesFormat, "format", "table", "Output format (table, json, yaml)")
	fileRatesCmd.Flags().StringVar(&fileRatesBranch, "branch", "", "Branch to walk (default: repository default)")
	fileRatesCmd.Flags().IntVar(&fileRatesLimit, "limit", 0, "Maximum commits (0 = all)")
	fileRatesCmd.Flags().StringSliceVar(&fileRatesExtensions, "ext", nil, "Only count files with these extensions")
	fileRatesCmd.Flags().StringSliceVar(&fileRatesIgnoreDirs, "ignore-dir", nil, "Skip files under these directory names")
	rootCmd.AddCommand(fileRatesCmd)
}

func runFileRates(cmd *cobra.Command, args []string) {
	r := openRepo()
	filter := repo.Filter{Extensions: fileRatesExtensions, IgnoreDirs: fileRatesIgnoreDirs}

	rows, err := r.FileChangeRates(fileRatesBranch, fileRatesLimit, filter)
	if err != nil {
		fail("computing file change rates", err)
	}
	emit(rows, fileRatesFormat)
}
