// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var articlesCmd = &cobra.Command{
	Use:   "articles [query]",
	Short: "Search the local article cache",
	Long: `Articles searches the articles fetched so far, which are cached in SQLite.
Matching uses FTS5 over titles and abstracts when the SQLite build supports
it. Without a query the most recently fetched articles are listed.

Use --export to write the matching articles as YAML.`,
	RunE: runArticles,
}

func runArticles(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	exportPath, _ := cmd.Flags().GetString("export")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.withLogger(context.Background())

	if exportPath != "" {
		return exportArticles(ctx, a, exportPath, query)
	}

	articles, err := a.store.SearchArticles(ctx, query, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}
	printArticles(os.Stdout, articles)
	return nil
}

// exportArticles writes the YAML export to path, or stdout for "-".
func exportArticles(ctx context.Context, a *app, path, query string) error {
	if path == "-" {
		return a.store.ExportYAML(ctx, os.Stdout, query)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := a.store.ExportYAML(ctx, f, query); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Exported articles to %s\n", path)
	return nil
}

func init() {
	articlesCmd.Flags().Int("limit", 20, "maximum number of articles")
	articlesCmd.Flags().Bool("json", false, "output articles as JSON")
	articlesCmd.Flags().String("export", "", "write matching articles as YAML to this file (- for stdout)")

	rootCmd.AddCommand(articlesCmd)
}
