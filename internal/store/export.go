// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

const exportLimit = 100000

// Export is the YAML document written by ExportYAML.
type Export struct {
	ExportedAt time.Time       `yaml:"exported_at"`
	Total      int             `yaml:"total"`
	Articles   []types.Article `yaml:"articles"`
}

// ExportYAML writes the cached articles matching query (all of them for an
// empty query) to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, query string) error {
	articles, err := s.SearchArticles(ctx, query, exportLimit)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(Export{
		ExportedAt: s.now().UTC(),
		Total:      len(articles),
		Articles:   articles,
	}); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return nil
}
