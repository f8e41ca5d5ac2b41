// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmc

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// ResultFile is a saved search: the query and the articles it returned.
// It can be reloaded later without querying NCBI again.
type ResultFile struct {
	Query    ResultQuery     `yaml:"query"`
	Articles []types.Article `yaml:"articles"`
	Summary  ResultSummary   `yaml:"summary"`
}

// ResultQuery stores the search parameters.
type ResultQuery struct {
	Term       string `yaml:"term"`
	Database   string `yaml:"database"`
	MaxResults int    `yaml:"max_results"`
}

// ResultSummary stores result statistics and a timestamp.
type ResultSummary struct {
	Total     int       `yaml:"total"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteResultFile saves a search and its articles to a YAML file.
func WriteResultFile(path, term string, maxResults int, articles []types.Article) error {
	rf := ResultFile{
		Query: ResultQuery{
			Term:       term,
			Database:   Database,
			MaxResults: maxResults,
		},
		Articles: articles,
		Summary: ResultSummary{
			Total:     len(articles),
			Timestamp: time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling result file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadResultFile loads a previously saved result file.
func ReadResultFile(path string) (*ResultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	var rf ResultFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}
	return &rf, nil
}
