// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

func TestPrintArticles(t *testing.T) {
	var buf bytes.Buffer
	printArticles(&buf, []types.Article{
		{PMCID: "123", Year: "2024", Citation: "Smith, J. (2024). Title. Journal."},
	})
	out := buf.String()
	assert.Contains(t, out, "PMC123")
	assert.Contains(t, out, "Smith, J. (2024). Title. Journal.")
	assert.Contains(t, out, "https://pmc.ncbi.nlm.nih.gov/articles/PMC123")
}

func TestPrintArticlesEmpty(t *testing.T) {
	var buf bytes.Buffer
	printArticles(&buf, nil)
	assert.Equal(t, "No articles found.\n", buf.String())
}

func TestPrintSourcesSkipsUnresolved(t *testing.T) {
	var buf bytes.Buffer
	printSources(&buf, []agent.Source{
		{Ref: "PMC1", Index: 0, Citation: "First.", URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC1"},
		{Ref: "PMC9", Index: -1},
	})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Sources:\n"))
	assert.Contains(t, out, "[PMC1] First.")
	assert.NotContains(t, out, "PMC9")

	buf.Reset()
	printSources(&buf, []agent.Source{{Ref: "Article 4", Index: -1}})
	assert.Empty(t, buf.String())
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "search", "ask", "articles", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
