// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// minimalArticle builds a bare <article> with one author and the given
// extra article-meta children.
func minimalArticle(extra string) []byte {
	return []byte(`<?xml version="1.0"?>
<article>
  <front>
    <article-meta>
      <title-group><article-title>Minimal Article</article-title></title-group>
      <contrib-group>
        <contrib contrib-type="author">
          <name><surname>Test</surname><given-names>T.</given-names></name>
        </contrib>
      </contrib-group>
      <pub-date pub-type="epub"><year>2024</year></pub-date>
      <journal-meta>
        <journal-title-group><journal-title>Test Journal</journal-title></journal-title-group>
      </journal-meta>
      <volume>5</volume>
      ` + extra + `
    </article-meta>
  </front>
</article>`)
}

func TestParseArticleComplete(t *testing.T) {
	a, err := ParseArticle(loadFixture(t, "article.xml"), "12345678")
	require.NoError(t, err)

	assert.Equal(t, "12345678", a.PMCID)
	assert.Equal(t, "Hyperspectral Imaging for Blood Oxygen Monitoring", a.Title)
	assert.Equal(t, []string{"Smith, J.", "Johnson, B."}, a.Authors)
	assert.Equal(t, "2024", a.Year, "first epub/ppub date wins over collection")
	assert.Equal(t, "Journal of Medical Imaging", a.Journal)
	assert.Equal(t, "15", a.Volume)
	assert.Equal(t, "3", a.Issue)
	assert.Equal(t, "100–115", a.Pages)
	assert.Equal(t, "10.1234/example.2024.001", a.DOI)

	assert.Equal(t,
		"Smith, J., & Johnson, B. (2024). Hyperspectral Imaging for Blood Oxygen Monitoring. "+
			"Journal of Medical Imaging, 15(3), 100–115. https://doi.org/10.1234/example.2024.001",
		a.Citation)

	assert.Equal(t,
		"Objective: This study investigates hyperspectral imaging of SO₂ .\n\n"+
			"Results: We found significant improvements in blood oxygen monitoring.",
		a.Abstract)
}

func TestParseArticleSingleAuthor(t *testing.T) {
	a, err := ParseArticle(minimalArticle(`<abstract><p>Test.</p></abstract>`), "777")
	require.NoError(t, err)

	assert.Equal(t, "Test, T. (2024). Minimal Article. Test Journal, 5, . ", a.Citation)
	assert.NotContains(t, a.Citation, "&")
	assert.Empty(t, a.Pages)
	assert.Empty(t, a.DOI)
	assert.Equal(t, "Test.", a.Abstract)
}

func TestParseArticleMultipleAuthors(t *testing.T) {
	data := []byte(`<article><front><article-meta>
<contrib-group>
  <contrib contrib-type="author"><name><surname>Adams</surname><given-names>A.</given-names></name></contrib>
  <contrib contrib-type="author"><name><surname>Baker</surname><given-names>B.</given-names></name></contrib>
  <contrib contrib-type="author"><name><surname>Carter</surname><given-names>C.</given-names></name></contrib>
</contrib-group>
</article-meta></front></article>`)

	a, err := ParseArticle(data, "888")
	require.NoError(t, err)
	assert.Contains(t, a.Citation, "Adams, A., Baker, B., & Carter, C.")
}

func TestParseArticleAbstractVariants(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{"no abstract", "", ""},
		{"abstract without paragraphs", "<abstract>  Plain   abstract text. </abstract>", "Plain abstract text."},
		{"empty paragraphs skipped", "<abstract><p> </p><p>Only one.</p></abstract>", "Only one."},
		{"first abstract only", "<abstract><p>First.</p></abstract><abstract abstract-type=\"teaser\"><p>Second.</p></abstract>", "First."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseArticle(minimalArticle(tt.extra), "1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Abstract)
		})
	}
}

func TestParseArticlePagesNeedBothBounds(t *testing.T) {
	a, err := ParseArticle(minimalArticle("<fpage>e1234</fpage>"), "1")
	require.NoError(t, err)
	assert.Empty(t, a.Pages)
}

func TestParseArticleYearFromPpub(t *testing.T) {
	data := []byte(`<article><front><article-meta>
<pub-date pub-type="epub"><month>1</month></pub-date>
<pub-date pub-type="ppub"><year>2019</year></pub-date>
</article-meta></front></article>`)

	a, err := ParseArticle(data, "1")
	require.NoError(t, err)
	assert.Equal(t, "2019", a.Year)
}

func TestParseArticleErrors(t *testing.T) {
	t.Run("malformed xml", func(t *testing.T) {
		_, err := ParseArticle([]byte("<article><front>"), "1")
		assert.Error(t, err)
	})
	t.Run("no article", func(t *testing.T) {
		_, err := ParseArticle([]byte("<pmc-articleset></pmc-articleset>"), "1")
		assert.ErrorIs(t, err, ErrNoArticle)
	})
	t.Run("efetch error element", func(t *testing.T) {
		_, err := ParseArticle([]byte("<pmc-articleset><error>UID=1: cannot get document summary</error></pmc-articleset>"), "1")
		assert.ErrorIs(t, err, ErrNoArticle)
		assert.Contains(t, err.Error(), "cannot get document summary")
	})
}
