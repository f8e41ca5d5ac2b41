// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML form, consumable by Pandoc
// and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	PMCID          string    `yaml:"PMCID,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a CSL date using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes articles as a CSL-YAML list to w.
func FormatCSL(articles []types.Article, w io.Writer) error {
	items := make([]CSLItem, len(articles))
	for i, a := range articles {
		items[i] = toCSLItem(a)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(a types.Article) CSLItem {
	item := CSLItem{
		ID:             "PMC" + a.PMCID,
		Type:           "article-journal",
		Title:          a.Title,
		ContainerTitle: a.Journal,
		Volume:         a.Volume,
		Issue:          a.Issue,
		Page:           strings.ReplaceAll(a.Pages, "–", "-"),
		Abstract:       a.Abstract,
		DOI:            a.DOI,
		URL:            a.URL(),
		PMCID:          "PMC" + a.PMCID,
	}

	for _, name := range a.Authors {
		item.Author = append(item.Author, parseAuthorName(name))
	}

	if year, err := strconv.Atoi(a.Year); err == nil {
		item.Issued = &CSLDate{DateParts: [][]int{{year}}}
	}
	return item
}

// parseAuthorName splits a "Surname, G." author into CSL family/given.
// Names without a comma use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	family, given, ok := strings.Cut(name, ",")
	if !ok {
		return CSLName{Literal: name}
	}
	return CSLName{
		Family: strings.TrimSpace(family),
		Given:  strings.TrimSpace(given),
	}
}
