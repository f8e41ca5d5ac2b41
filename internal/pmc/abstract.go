// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"regexp"
	"strings"
)

var (
	blankLinesRe = regexp.MustCompile(`\n\s*\n+`)
	spacesRe     = regexp.MustCompile(`[ \t]+`)
	sulfurRe     = regexp.MustCompile(`SO\s*2`)
)

// abstractHeaders are the structured-abstract section labels that get
// their own paragraph.
var abstractHeaders = []string{
	"Objective",
	"Impact Statement",
	"Introduction",
	"Methods",
	"Results",
	"Conclusion",
}

var headerRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(abstractHeaders))
	for i, h := range abstractHeaders {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(h) + `:\s*`)
	}
	return res
}()

// CleanAbstract normalizes whitespace, repairs SO₂ notation split by the
// XML markup, and starts each structured-abstract header on a new
// paragraph.
func CleanAbstract(raw string) string {
	text := blankLinesRe.ReplaceAllString(raw, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	text = sulfurRe.ReplaceAllString(text, "SO₂")

	for i, re := range headerRes {
		text = re.ReplaceAllLiteralString(text, "\n\n"+abstractHeaders[i]+": ")
	}
	// A header that opened a paragraph now follows two blank lines.
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
