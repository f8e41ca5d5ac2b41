// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent runs one conversational turn of the research assistant: it
// lets the model decide whether to search PubMed Central, streams a
// plain-language synthesis of the articles it finds, and answers follow-up
// questions from the articles kept for the session.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/llm"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// EmitFunc receives each chunk of the answer as it is produced.
type EmitFunc func(chunk string) error

// Agent is a tool-using research assistant bound to one chat session.
type Agent struct {
	model      llm.ChatModel
	tools      *tools.Registry
	defaultMax int

	mu        sync.RWMutex
	documents []types.Document
}

// Option configures an Agent.
type Option func(*Agent)

// WithDefaultMaxResults sets max_results for tool calls that omit it.
func WithDefaultMaxResults(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.defaultMax = n
		}
	}
}

// WithDocuments seeds the session documents, e.g. when restoring a session.
func WithDocuments(docs []types.Document) Option {
	return func(a *Agent) { a.documents = append([]types.Document(nil), docs...) }
}

// New returns an agent using model and the tools in registry. A nil
// registry means the model is offered no tools.
func New(model llm.ChatModel, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		model:      model,
		tools:      registry,
		defaultMax: tools.DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Documents returns a copy of the articles kept from the last search.
func (a *Agent) Documents() []types.Document {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]types.Document(nil), a.documents...)
}

// SetDocuments replaces the session documents.
func (a *Agent) SetDocuments(docs []types.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.documents = append([]types.Document(nil), docs...)
}

// Invoke runs a turn and returns the whole answer.
func (a *Agent) Invoke(ctx context.Context, input string, history []types.Message) (string, error) {
	var sb strings.Builder
	err := a.Stream(ctx, input, history, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	return sb.String(), err
}

// Stream runs a turn and hands the answer to emit chunk by chunk.
//
// The model first sees the question with the tools offered. If it calls a
// known tool, the search runs, its results become the session documents and
// a synthesis of them is streamed; failures in that branch are reported in
// the stream rather than returned. Without a tool call, a session that
// already holds documents gets an answer grounded in them; otherwise the
// model's reply is emitted as is.
//
// Errors from emit, a cancelled context, and failures of the first model
// call are returned.
func (a *Agent) Stream(ctx context.Context, input string, history []types.Message, emit EmitFunc) error {
	log := logger.FromContext(ctx)
	available := a.tools.List()

	system, err := systemPrompt(available)
	if err != nil {
		return err
	}
	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.SystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, types.UserMessage(input))

	resp, err := a.model.Complete(ctx, messages, toolSpecs(available))
	if err != nil {
		return fmt.Errorf("model turn: %w", err)
	}

	// emitErr remembers a failed write so that it is returned instead of
	// being reported in the stream.
	var emitErr error
	out := func(chunk string) error {
		if err := emit(chunk); err != nil {
			emitErr = err
			return err
		}
		return nil
	}

	handled := false
	for _, call := range resp.ToolCalls {
		tool, ok := a.tools.Get(call.Name)
		if !ok {
			log.Warn("model called unknown tool", zap.String("tool", call.Name))
			continue
		}
		handled = true

		if err := a.runSearch(ctx, tool, call, input, out); err != nil {
			if emitErr != nil {
				return emitErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("tool turn failed", zap.String("tool", call.Name), zap.Error(err))
			if err := out(fmt.Sprintf(errorFormat, err)); err != nil {
				return err
			}
		}
	}
	if handled {
		return nil
	}

	if docs := a.Documents(); len(docs) > 0 {
		qa, err := qaMessages(input, history, docs)
		if err != nil {
			return err
		}
		return a.model.Stream(ctx, qa, out)
	}

	if resp.Content == "" {
		return nil
	}
	return out(resp.Content)
}

// runSearch executes one tool call and streams the synthesis of its results.
func (a *Agent) runSearch(ctx context.Context, tool tools.Tool, call llm.ToolCall, input string, out EmitFunc) error {
	query, maxResults := a.searchArgs(ctx, call.Arguments)

	if err := out(fmt.Sprintf(searchingFormat, query)); err != nil {
		return err
	}

	args, err := json.Marshal(tools.SearchArgs{Query: query, MaxResults: maxResults})
	if err != nil {
		return err
	}
	docs, err := tool.Invoke(ctx, args)
	if err != nil {
		return err
	}

	a.SetDocuments(docs)
	if len(docs) == 0 {
		return out(noArticles)
	}

	msgs, err := synthesisMessages(input, docs)
	if err != nil {
		return err
	}
	if err := out(fmt.Sprintf(foundFormat, len(docs))); err != nil {
		return err
	}
	if err := a.model.Stream(ctx, msgs, out); err != nil {
		return err
	}
	return out(followUpFooter)
}

// searchArgs reads query and max_results from the model's arguments.
// Models sometimes send max_results as a string; unusable values fall back
// to the default.
func (a *Agent) searchArgs(ctx context.Context, raw json.RawMessage) (string, int) {
	var args struct {
		Query      string          `json:"query"`
		MaxResults json.RawMessage `json:"max_results"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			logger.FromContext(ctx).Warn("unparseable tool arguments", zap.ByteString("arguments", raw), zap.Error(err))
		}
	}

	maxResults := a.defaultMax
	if v := strings.Trim(string(args.MaxResults), `" `); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxResults = n
		}
	}
	return args.Query, maxResults
}

func toolSpecs(available []tools.Tool) []llm.ToolSpec {
	if len(available) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, len(available))
	for i, t := range available {
		specs[i] = llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return specs
}
