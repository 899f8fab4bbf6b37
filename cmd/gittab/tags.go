package main

import (
	"github.com/spf13/cobra"
)

var tagsFormat string

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	Run:   runTags,
}

func init() {
	tagsCmd.Flags().StringVar(&tagsFormat, "format", "table", "Output format (table, json, yaml)")
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) {
	if projectFlag {
		p := openProject()
		rows, err := p.Tags()
		if err != nil {
			fail("listing tags", err)
		}
		emit(rows, tagsFormat)
		return
	}

	r := openRepo()
	rows, err := r.Tags()
	if err != nil {
		fail("listing tags", err)
	}
	emit(rows, tagsFormat)
}
