// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAPA(t *testing.T) {
	tests := []struct {
		name    string
		authors []string
		issue   string
		pages   string
		doi     string
		want    string
	}{
		{
			name:    "complete",
			authors: []string{"Smith, J.", "Doe, A."},
			issue:   "3", pages: "100–110", doi: "10.1234/test.2024",
			want: "Smith, J., & Doe, A. (2024). Test Article. Test Journal, 10(3), 100–110. https://doi.org/10.1234/test.2024",
		},
		{
			name:    "single author",
			authors: []string{"Jones, B."},
			issue:   "1", pages: "1–10", doi: "10.1234/solo",
			want: "Jones, B. (2024). Test Article. Test Journal, 10(1), 1–10. https://doi.org/10.1234/solo",
		},
		{
			name:  "no authors",
			issue: "1", pages: "1–5", doi: "10.1234/anon",
			want: " (2024). Test Article. Test Journal, 10(1), 1–5. https://doi.org/10.1234/anon",
		},
		{
			name:    "no issue",
			authors: []string{"Author, A."},
			pages:   "1–10", doi: "10.1234/test",
			want: "Author, A. (2024). Test Article. Test Journal, 10, 1–10. https://doi.org/10.1234/test",
		},
		{
			name:    "no doi",
			authors: []string{"Author, A."},
			issue:   "1", pages: "1–10",
			want: "Author, A. (2024). Test Article. Test Journal, 10(1), 1–10. ",
		},
		{
			name:    "three authors",
			authors: []string{"Adams, A.", "Baker, B.", "Carter, C."},
			want:    "Adams, A., Baker, B., & Carter, C. (2024). Test Article. Test Journal, 10, . ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAPA(tt.authors, "2024", "Test Article", "Test Journal", "10", tt.issue, tt.pages, tt.doi)
			assert.Equal(t, tt.want, got)
			if len(tt.authors) < 2 {
				assert.False(t, strings.Contains(got, "&"))
			}
		})
	}
}
