// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for pubmed-assistant.
// Article and Document carry PubMed Central records between the E-utilities
// client, the search tool, the agent and the store; Message carries chat
// turns; Config groups the settings of every component.
package types

import (
	"strings"
	"time"
)

// pmcArticleBase is the public landing page prefix for PMC articles.
const pmcArticleBase = "https://pmc.ncbi.nlm.nih.gov/articles/"

// Article holds the bibliographic record parsed from a PMC JATS document.
type Article struct {
	// PMCID is the PMC UID as returned by esearch (e.g. "12345678").
	PMCID string `json:"pmcid" yaml:"pmcid"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Authors lists authors in APA form ("Smith, J.") in document order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the epub or ppub publication year.
	Year string `json:"year" yaml:"year"`

	// Journal is the journal title.
	Journal string `json:"journal" yaml:"journal"`

	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue  string `json:"issue,omitempty" yaml:"issue,omitempty"`

	// Pages is "fpage–lpage" (en dash) when both bounds are present.
	Pages string `json:"pages,omitempty" yaml:"pages,omitempty"`

	// DOI is the bare DOI without the https://doi.org/ prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Abstract is the cleaned abstract text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Citation is the APA citation string.
	Citation string `json:"citation" yaml:"citation"`

	// FetchedAt records when the article was retrieved from NCBI.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// URL returns the PMC landing page for the article.
func (a Article) URL() string {
	return ArticleURL(a.PMCID)
}

// Document converts the article into the record returned by the search tool.
func (a Article) Document() Document {
	return Document{
		PMCID:    a.PMCID,
		Citation: a.Citation,
		Abstract: a.Abstract,
	}
}

// ArticleURL returns the PMC landing page for a PMC id with or without the
// "PMC" prefix.
func ArticleURL(pmcid string) string {
	id := strings.TrimPrefix(strings.TrimSpace(pmcid), "PMC")
	return pmcArticleBase + "PMC" + id
}

// Document is the condensed article the agent reasons over: the PMC id,
// the APA citation and the abstract.
type Document struct {
	PMCID    string `json:"pmcid" yaml:"pmcid"`
	Citation string `json:"citation" yaml:"citation"`
	Abstract string `json:"abstract" yaml:"abstract"`
}
