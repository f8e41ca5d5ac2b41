// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pmc retrieves PubMed Central articles and turns their JATS XML
// into citation-ready records: an APA citation plus a cleaned abstract.
package pmc

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// ErrNoArticle is returned when an efetch payload holds no <article>.
var ErrNoArticle = errors.New("no article in PMC record")

// journalSeparatorRe matches the "|" some journals use in their title.
var journalSeparatorRe = regexp.MustCompile(`\s*\|\s*`)

// ParseArticle extracts the fields needed for an APA citation from a JATS
// document (a bare <article> or an efetch <pmc-articleset>). Missing
// optional elements yield empty fields; malformed XML is an error.
func ParseArticle(data []byte, pmcid string) (types.Article, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return types.Article{}, fmt.Errorf("parsing PMC%s XML: %w", pmcid, err)
	}

	root := xmlquery.FindOne(doc, "//article")
	if root == nil {
		if e := xmlquery.FindOne(doc, "//error"); e != nil {
			return types.Article{}, fmt.Errorf("PMC%s: %s: %w", pmcid, strings.TrimSpace(e.InnerText()), ErrNoArticle)
		}
		return types.Article{}, fmt.Errorf("PMC%s: %w", pmcid, ErrNoArticle)
	}

	a := types.Article{
		PMCID:   pmcid,
		Title:   collapse(findText(root, "//article-title")),
		Authors: parseAuthors(root),
		Year:    parseYear(root),
		Journal: journalSeparatorRe.ReplaceAllString(findText(root, "//journal-title"), " "),
		Volume:  findText(root, "//volume"),
		Issue:   findText(root, "//issue"),
		DOI:     parseDOI(root),
	}

	fpage := findText(root, "//fpage")
	lpage := findText(root, "//lpage")
	if fpage != "" && lpage != "" {
		a.Pages = fpage + "–" + lpage
	}

	a.Abstract = CleanAbstract(rawAbstract(root))
	a.Citation = FormatAPA(a.Authors, a.Year, a.Title, a.Journal, a.Volume, a.Issue, a.Pages, a.DOI)
	return a, nil
}

// findText returns the trimmed text of the first node matching expr.
func findText(top *xmlquery.Node, expr string) string {
	n := xmlquery.FindOne(top, expr)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// parseAuthors renders every author contributor with both a surname and
// given names as "Surname, G.".
func parseAuthors(root *xmlquery.Node) []string {
	var authors []string
	for _, contrib := range xmlquery.Find(root, "//contrib[@contrib-type='author']") {
		surname := findText(contrib, ".//surname")
		given := findText(contrib, ".//given-names")
		if surname == "" || given == "" {
			continue
		}
		initial, _ := utf8.DecodeRuneInString(given)
		authors = append(authors, fmt.Sprintf("%s, %c.", surname, initial))
	}
	return authors
}

// parseYear returns the year of the first epub or ppub pub-date that has one.
func parseYear(root *xmlquery.Node) string {
	for _, pd := range xmlquery.Find(root, "//pub-date") {
		switch pd.SelectAttr("pub-type") {
		case "epub", "ppub":
		default:
			continue
		}
		if y := pd.SelectElement("year"); y != nil {
			if year := strings.TrimSpace(y.InnerText()); year != "" {
				return year
			}
		}
	}
	return ""
}

// parseDOI returns the first DOI article-id without its resolver prefix.
func parseDOI(root *xmlquery.Node) string {
	for _, aid := range xmlquery.Find(root, "//article-id[@pub-id-type='doi']") {
		text := aid.InnerText()
		if strings.TrimSpace(text) == "" {
			continue
		}
		return strings.TrimSpace(strings.ReplaceAll(text, "https://doi.org/", ""))
	}
	return ""
}

// rawAbstract joins the paragraphs of the first <abstract>. Each paragraph
// is its text fragments joined by single spaces; paragraphs are separated
// by a blank line. An abstract without <p> uses all of its text.
func rawAbstract(root *xmlquery.Node) string {
	abstract := xmlquery.FindOne(root, "//abstract")
	if abstract == nil {
		return ""
	}

	var paragraphs []string
	for _, p := range xmlquery.Find(abstract, ".//p") {
		if text := strings.Join(textFragments(p), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}
	return strings.Join(textFragments(abstract), " ")
}

// textFragments returns the non-empty, trimmed text nodes under n in
// document order.
func textFragments(n *xmlquery.Node) []string {
	var out []string
	var walk func(*xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				if s := strings.TrimSpace(c.Data); s != "" {
					out = append(out, s)
				}
			case xmlquery.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
