// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pubmed-assistant/internal/entrez"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// Database is the Entrez database name for PubMed Central.
const Database = "pmc"

// DefaultConcurrency bounds parallel efetch calls when none is configured.
const DefaultConcurrency = 3

// EUtils is the subset of the Entrez client the fetcher needs.
type EUtils interface {
	Search(ctx context.Context, db, term string, retmax int) (entrez.SearchResult, error)
	Fetch(ctx context.Context, db, id string) ([]byte, error)
}

// ArticleCache receives every article the fetcher parses.
type ArticleCache interface {
	PutArticles(ctx context.Context, articles []types.Article) error
}

// Fetcher runs a PMC search and turns the hits into citation records.
type Fetcher struct {
	eutils      EUtils
	concurrency int
	cache       ArticleCache
	now         func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithConcurrency bounds the number of efetch calls in flight.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithCache writes fetched articles through to c.
func WithCache(c ArticleCache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// NewFetcher returns a Fetcher backed by the given E-utilities client.
func NewFetcher(eutils EUtils, opts ...Option) *Fetcher {
	f := &Fetcher{
		eutils:      eutils,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchRecords searches PMC for query and returns up to retmax articles in
// search rank order. An empty hit list is not an error. Any fetch or parse
// failure fails the whole call.
func (f *Fetcher) FetchRecords(ctx context.Context, query string, retmax int) ([]types.Article, error) {
	res, err := f.eutils.Search(ctx, Database, query, retmax)
	if err != nil {
		return nil, err
	}
	if len(res.IDs) == 0 {
		return []types.Article{}, nil
	}

	articles := make([]types.Article, len(res.IDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range res.IDs {
		g.Go(func() error {
			data, err := f.eutils.Fetch(gctx, Database, id)
			if err != nil {
				return err
			}
			a, err := ParseArticle(data, id)
			if err != nil {
				return err
			}
			a.FetchedAt = f.now().UTC()
			articles[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching PMC records: %w", err)
	}

	logger.FromContext(ctx).Debug("fetched PMC records",
		zap.String("query", query),
		zap.Int("count", len(articles)),
		zap.Int("total_hits", res.Count),
	)

	if f.cache != nil {
		if err := f.cache.PutArticles(ctx, articles); err != nil {
			logger.FromContext(ctx).Warn("caching articles failed", zap.Error(err))
		}
	}
	return articles, nil
}
