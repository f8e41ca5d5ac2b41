// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"fmt"
	"strings"
)

// FormatAPA renders an APA-style reference:
//
//	Smith, J., & Doe, A. (2024). Title. Journal, 10(3), 100–110. https://doi.org/10.1234/x
//
// Empty fields leave their slot empty rather than dropping punctuation, so
// the layout stays predictable for the model reading it.
func FormatAPA(authors []string, year, title, journal, volume, issue, pages, doi string) string {
	var authorStr string
	switch len(authors) {
	case 0:
	case 1:
		authorStr = authors[0]
	default:
		authorStr = strings.Join(authors[:len(authors)-1], ", ") + ", & " + authors[len(authors)-1]
	}

	volIssue := volume
	if issue != "" {
		volIssue = fmt.Sprintf("%s(%s)", volume, issue)
	}

	var doiURL string
	if doi != "" {
		doiURL = "https://doi.org/" + doi
	}

	return fmt.Sprintf("%s (%s). %s. %s, %s, %s. %s",
		authorStr, year, title, journal, volIssue, pages, doiURL)
}
