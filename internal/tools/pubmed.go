// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/metrics"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// SearchPubMedCentralName is the tool name the model calls.
const SearchPubMedCentralName = "search_pubmed_central"

// DefaultMaxResults is used when the model omits max_results.
const DefaultMaxResults = 3

// ErrInvalidArguments is returned when the model's arguments cannot be used.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// RecordFetcher runs a PMC search and returns parsed articles in rank order.
type RecordFetcher interface {
	FetchRecords(ctx context.Context, query string, retmax int) ([]types.Article, error)
}

// SearchArgs are the arguments of search_pubmed_central.
type SearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

const searchDescription = "Search PubMed Central for peer-reviewed biomedical research articles " +
	"and return each article's PMC ID, APA citation and abstract. " +
	"Use this for any question about health, medicine or biology research."

var searchParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "PubMed Central search terms, e.g. \"intermittent fasting insulin sensitivity\""
    },
    "max_results": {
      "type": "integer",
      "description": "Maximum number of articles to return",
      "default": 3,
      "minimum": 1
    }
  },
  "required": ["query"]
}`)

// SearchPubMedCentral searches PMC and returns the hits as documents.
type SearchPubMedCentral struct {
	fetcher    RecordFetcher
	defaultMax int
	maxLimit   int
}

// NewSearchPubMedCentral returns the tool. defaultMax applies when the model
// omits max_results; a positive maxLimit caps what the model may request.
func NewSearchPubMedCentral(fetcher RecordFetcher, defaultMax, maxLimit int) *SearchPubMedCentral {
	if defaultMax <= 0 {
		defaultMax = DefaultMaxResults
	}
	return &SearchPubMedCentral{fetcher: fetcher, defaultMax: defaultMax, maxLimit: maxLimit}
}

func (s *SearchPubMedCentral) Name() string                { return SearchPubMedCentralName }
func (s *SearchPubMedCentral) Description() string         { return searchDescription }
func (s *SearchPubMedCentral) Parameters() json.RawMessage { return searchParameters }

// ParseArgs decodes and normalizes the model's arguments.
func (s *SearchPubMedCentral) ParseArgs(raw json.RawMessage) (SearchArgs, error) {
	var args SearchArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return args, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return args, fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}
	if args.MaxResults <= 0 {
		args.MaxResults = s.defaultMax
	}
	if s.maxLimit > 0 && args.MaxResults > s.maxLimit {
		args.MaxResults = s.maxLimit
	}
	return args, nil
}

// Invoke runs the search. Results keep the fetcher's rank order; an empty
// result is a non-nil empty slice.
func (s *SearchPubMedCentral) Invoke(ctx context.Context, raw json.RawMessage) (docs []types.Document, err error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallsTotal.WithLabelValues(SearchPubMedCentralName, metrics.Outcome(err)).Inc()
	}()

	args, err := s.ParseArgs(raw)
	if err != nil {
		return nil, err
	}

	articles, err := s.fetcher.FetchRecords(ctx, args.Query, args.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching PubMed Central: %w", err)
	}

	docs = make([]types.Document, len(articles))
	for i, a := range articles {
		docs[i] = a.Document()
	}

	logger.FromContext(ctx).Info("tool call",
		zap.String("tool", SearchPubMedCentralName),
		zap.String("query", args.Query),
		zap.Int("max_results", args.MaxResults),
		zap.Int("results", len(docs)),
		zap.Duration("duration", time.Since(start)),
	)
	return docs, nil
}
