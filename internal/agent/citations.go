// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

var (
	// pmcRefRe matches PMC ids like PMC12345678.
	pmcRefRe = regexp.MustCompile(`\bPMC(\d+)\b`)

	// articleRefRe matches numbered references like "Article 2".
	articleRefRe = regexp.MustCompile(`\bArticle\s+(\d+)\b`)
)

// Source is an article reference found in an answer.
type Source struct {
	// Ref is the reference as written ("PMC12345678", "Article 2").
	Ref string `json:"ref"`

	// Index is the position of the referenced document, or -1 when the
	// reference matches none of them.
	Index int `json:"index"`

	PMCID    string `json:"pmcid,omitempty"`
	URL      string `json:"url,omitempty"`
	Citation string `json:"citation,omitempty"`

	// Context is the text around the first occurrence.
	Context string `json:"context"`
}

// Citations finds PMC id and "Article N" references in text and links them
// to docs. Each distinct reference is reported once, PMC ids first, in
// order of appearance.
func Citations(text string, docs []types.Document) []Source {
	byID := make(map[string]int, len(docs))
	for i, d := range docs {
		byID[normalizePMCID(d.PMCID)] = i
	}

	seen := make(map[string]bool)
	var sources []Source

	for _, m := range pmcRefRe.FindAllStringSubmatchIndex(text, -1) {
		ref := text[m[0]:m[1]]
		if seen[ref] {
			continue
		}
		seen[ref] = true

		idx, ok := byID[text[m[2]:m[3]]]
		if !ok {
			idx = -1
		}
		sources = append(sources, newSource(ref, idx, docs, extractContext(text, m[0], m[1])))
	}

	for _, m := range articleRefRe.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		ref := "Article " + strconv.Itoa(n)
		if seen[ref] {
			continue
		}
		seen[ref] = true

		idx := n - 1
		if idx < 0 || idx >= len(docs) {
			idx = -1
		}
		sources = append(sources, newSource(ref, idx, docs, extractContext(text, m[0], m[1])))
	}

	return sources
}

func newSource(ref string, idx int, docs []types.Document, context string) Source {
	s := Source{Ref: ref, Index: idx, Context: context}
	if idx >= 0 {
		d := docs[idx]
		s.PMCID = d.PMCID
		s.URL = types.ArticleURL(d.PMCID)
		s.Citation = d.Citation
	}
	return s
}

func normalizePMCID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), "PMC")
}

// extractContext returns up to 40 bytes either side of a match, trimmed to
// word boundaries.
func extractContext(text string, start, end int) string {
	const window = 40
	ctxStart := max(start-window, 0)
	ctxEnd := min(end+window, len(text))
	snippet := text[ctxStart:ctxEnd]
	if ctxStart > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < window {
			snippet = snippet[i+1:]
		}
	}
	if ctxEnd < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-window {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(strings.ToValidUTF8(snippet, ""))
}
