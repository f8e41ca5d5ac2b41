// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to the chat model. The default implementation targets
// the OpenAI-compatible API that Ollama serves under /v1.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// ErrModel wraps every failure returned by the model server.
var ErrModel = errors.New("model request failed")

// ErrEmptyResponse is returned when a completion carries no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is one function call requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response is the result of a non-streamed turn.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is a conversational model that can request tool calls.
type ChatModel interface {
	// Complete runs one non-streamed turn. Tools may be ignored by models
	// that cannot call them.
	Complete(ctx context.Context, messages []types.Message, tools []ToolSpec) (Response, error)

	// Stream runs one turn without tools and hands each content delta to
	// onChunk as it arrives. An onChunk error stops the stream and is
	// returned.
	Stream(ctx context.Context, messages []types.Message, onChunk func(string) error) error
}
