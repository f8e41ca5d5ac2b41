// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
	"github.com/pdiddy/pubmed-assistant/internal/chat"
	"github.com/pdiddy/pubmed-assistant/internal/entrez"
	"github.com/pdiddy/pubmed-assistant/internal/llm"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/pmc"
	"github.com/pdiddy/pubmed-assistant/internal/store"
	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      types.Config
	log      *zap.Logger
	store    *store.Store
	fetcher  *pmc.Fetcher
	model    *llm.OpenAIModel
	registry *tools.Registry
}

// newApp loads the configuration and wires every component.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Entrez.Email == "" {
		log.Warn("EMAIL is not set; NCBI asks every E-utilities caller to identify itself")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if !st.FullText() {
		log.Info("SQLite built without FTS5; article search falls back to substring matching")
	}

	opts := []pmc.Option{pmc.WithConcurrency(cfg.Entrez.FetchConcurrency)}
	if cfg.Store.CacheArticles {
		opts = append(opts, pmc.WithCache(st))
	}
	fetcher := pmc.NewFetcher(entrez.New(cfg.Entrez, nil), opts...)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		fetcher:  fetcher,
		model:    llm.NewOpenAIModel(cfg.LLM, nil),
		registry: tools.Default(fetcher, cfg.Agent.DefaultMaxResults, cfg.Agent.MaxResultsLimit),
	}, nil
}

// withLogger returns ctx carrying the application logger.
func (a *app) withLogger(ctx context.Context) context.Context {
	return logger.WithLogger(ctx, a.log)
}

// newAgent builds an agent seeded with docs.
func (a *app) newAgent(docs []types.Document) *agent.Agent {
	return agent.New(a.model, a.registry,
		agent.WithDefaultMaxResults(a.cfg.Agent.DefaultMaxResults),
		agent.WithDocuments(docs),
	)
}

// chatService builds the session service over the store.
func (a *app) chatService() *chat.Service {
	return chat.NewService(a.store, a.newAgent, a.cfg.Server.MaxLiveSessions)
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.store.Close()
}
