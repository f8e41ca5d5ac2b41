// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-assistant/internal/pmc"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search PubMed Central and print APA citations",
	Long: `Search queries PubMed Central through the NCBI E-utilities, fetches each
hit and prints its APA citation. Use --json for the full records, --csl for
a CSL-YAML bibliography, and --out to save the results as a YAML file.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query required: pass --query or a search term")
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cslOutput, _ := cmd.Flags().GetBool("csl")
	outPath, _ := cmd.Flags().GetString("out")
	if jsonOutput && cslOutput {
		return fmt.Errorf("--json and --csl are mutually exclusive")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if maxResults < 1 {
		maxResults = a.cfg.Agent.DefaultMaxResults
	}

	articles, err := a.fetcher.FetchRecords(a.withLogger(context.Background()), query, maxResults)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := pmc.WriteResultFile(outPath, query, maxResults, articles); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d result(s) to %s\n", len(articles), outPath)
	}

	switch {
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	case cslOutput:
		return pmc.FormatCSL(articles, os.Stdout)
	default:
		printArticles(os.Stdout, articles)
		return nil
	}
}

// printArticles writes a numbered list of citations with their PMC links.
func printArticles(w io.Writer, articles []types.Article) {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-12s  %-4s  %s\n", "Rank", "PMCID", "Year", "Citation")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, a := range articles {
		fmt.Fprintf(w, "%-4d  %-12s  %-4s  %s\n", i+1, "PMC"+a.PMCID, a.Year, a.Citation)
		fmt.Fprintf(w, "%-4s  %-12s  %-4s  %s\n", "", "", "", a.URL())
	}
}

func init() {
	searchCmd.Flags().String("query", "", "PubMed Central search term")
	searchCmd.Flags().Int("max-results", 0, "maximum number of articles (default agent.default_max_results)")
	searchCmd.Flags().Bool("json", false, "output articles as JSON")
	searchCmd.Flags().Bool("csl", false, "output a CSL-YAML bibliography")
	searchCmd.Flags().String("out", "", "also write the results to this YAML file")

	rootCmd.AddCommand(searchCmd)
}
