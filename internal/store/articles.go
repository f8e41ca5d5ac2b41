// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// DefaultSearchLimit bounds SearchArticles when no limit is given.
const DefaultSearchLimit = 20

const articleColumns = `a.pmcid, a.title, a.authors, a.year, a.journal, a.volume, a.issue,
	a.pages, a.doi, a.abstract, a.citation, a.fetched_at`

// PutArticles inserts or refreshes cached articles, keyed by PMC id.
func (s *Store) PutArticles(ctx context.Context, articles []types.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (pmcid, title, authors, year, journal, volume, issue, pages, doi, abstract, citation, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pmcid) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, year=excluded.year,
			journal=excluded.journal, volume=excluded.volume, issue=excluded.issue,
			pages=excluded.pages, doi=excluded.doi, abstract=excluded.abstract,
			citation=excluded.citation, fetched_at=excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		authors := a.Authors
		if authors == nil {
			authors = []string{}
		}
		authorsJSON, _ := json.Marshal(authors)
		fetched := a.FetchedAt
		if fetched.IsZero() {
			fetched = s.now()
		}
		_, err := stmt.ExecContext(ctx,
			normalizeID(a.PMCID), a.Title, string(authorsJSON), a.Year, a.Journal,
			a.Volume, a.Issue, a.Pages, a.DOI, a.Abstract, a.Citation, formatTime(fetched),
		)
		if err != nil {
			return fmt.Errorf("upserting article %s: %w", a.PMCID, err)
		}
	}
	return tx.Commit()
}

// GetArticle returns a cached article by PMC id, with or without the "PMC"
// prefix.
func (s *Store) GetArticle(ctx context.Context, pmcid string) (types.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles a WHERE a.pmcid = ?`, normalizeID(pmcid))
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Article{}, fmt.Errorf("article PMC%s: %w", normalizeID(pmcid), ErrNotFound)
	}
	if err != nil {
		return types.Article{}, fmt.Errorf("looking up article: %w", err)
	}
	return a, nil
}

// SearchArticles searches cached titles and abstracts. Every term must
// match. With the FTS5 index results are ranked by bm25 with titles
// weighted above abstracts; otherwise, and for an empty query, the most
// recently fetched articles come first.
func (s *Store) SearchArticles(ctx context.Context, query string, limit int) ([]types.Article, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	terms := strings.Fields(query)

	var (
		q    string
		args []any
	)
	switch {
	case len(terms) == 0:
		q = `SELECT ` + articleColumns + ` FROM articles a ORDER BY a.fetched_at DESC, a.pmcid LIMIT ?`
	case s.fts:
		q = `SELECT ` + articleColumns + `
			FROM articles_fts
			JOIN articles a ON a.rowid = articles_fts.rowid
			WHERE articles_fts MATCH ?
			ORDER BY bm25(articles_fts, 10.0, 1.0)
			LIMIT ?`
		args = append(args, ftsQuery(terms))
	default:
		var qb strings.Builder
		qb.WriteString(`SELECT ` + articleColumns + ` FROM articles a WHERE 1=1`)
		for _, t := range terms {
			qb.WriteString(` AND (a.title LIKE ? ESCAPE '\' OR a.abstract LIKE ? ESCAPE '\')`)
			pattern := "%" + escapeLike(t) + "%"
			args = append(args, pattern, pattern)
		}
		qb.WriteString(` ORDER BY a.fetched_at DESC, a.pmcid LIMIT ?`)
		q = qb.String()
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching articles: %w", err)
	}
	defer rows.Close()

	articles := []types.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CountArticles returns the number of cached articles.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (types.Article, error) {
	var (
		a                                        types.Article
		authorsJSON, fetched                     string
		year, journal, volume, issue, pages, doi sql.NullString
	)
	err := row.Scan(&a.PMCID, &a.Title, &authorsJSON, &year, &journal, &volume, &issue,
		&pages, &doi, &a.Abstract, &a.Citation, &fetched)
	if err != nil {
		return types.Article{}, err
	}
	if err := json.Unmarshal([]byte(authorsJSON), &a.Authors); err != nil {
		return types.Article{}, fmt.Errorf("decoding authors of %s: %w", a.PMCID, err)
	}
	a.Year, a.Journal, a.Volume = year.String, journal.String, volume.String
	a.Issue, a.Pages, a.DOI = issue.String, pages.String, doi.String
	a.FetchedAt = parseTime(fetched)
	return a, nil
}

// ftsQuery quotes each term so punctuation such as "covid-19" is matched
// literally instead of parsed as FTS5 syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func normalizeID(pmcid string) string {
	return strings.TrimPrefix(strings.TrimSpace(pmcid), "PMC")
}
