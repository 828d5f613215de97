package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brightline/composer/internal/keywords"
	"github.com/brightline/composer/internal/model"
)

var (
	cleanFile        string
	cleanClient      string
	cleanCompetitors []string
	cleanColors      bool
	cleanSizes       bool
	cleanBrand       bool
	cleanCompetitor  bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the cleaning engine over a local keyword file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanFile == "" {
			return eris.New("--file is required")
		}

		kws, err := parseKeywordFile(cleanFile)
		if err != nil {
			return eris.Wrapf(err, "parse %s", cleanFile)
		}

		result := keywords.Clean(kws,
			model.CleanSettings{
				RemoveColors:          cleanColors,
				RemoveSizes:           cleanSizes,
				RemoveBrandTerms:      cleanBrand,
				RemoveCompetitorTerms: cleanCompetitor,
			},
			model.ProjectContext{
				ClientName:   cleanClient,
				WhatNotToSay: cleanCompetitors,
			},
			nil,
		)

		fmt.Fprintf(os.Stdout, "kept %d of %d keywords\n\n", len(result.Cleaned), len(kws))
		for _, kw := range result.Cleaned {
			fmt.Fprintln(os.Stdout, kw)
		}
		if len(result.Removed) > 0 {
			fmt.Fprintf(os.Stdout, "\nremoved %d:\n", len(result.Removed))
			for _, r := range result.Removed {
				fmt.Fprintf(os.Stdout, "  %-12s %s\n", r.Reason, r.Term)
			}
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanFile, "file", "", "CSV or XLSX keyword file (required)")
	cleanCmd.Flags().StringVar(&cleanClient, "client", "", "client name for brand-term filtering")
	cleanCmd.Flags().StringSliceVar(&cleanCompetitors, "competitor", nil, "competitor terms to filter (repeatable)")
	cleanCmd.Flags().BoolVar(&cleanColors, "colors", false, "remove color terms")
	cleanCmd.Flags().BoolVar(&cleanSizes, "sizes", false, "remove size terms")
	cleanCmd.Flags().BoolVar(&cleanBrand, "brand", false, "remove brand terms")
	cleanCmd.Flags().BoolVar(&cleanCompetitor, "competitors", false, "remove competitor terms")
	rootCmd.AddCommand(cleanCmd)
}
