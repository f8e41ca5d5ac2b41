// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/metrics"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// Defaults for a local Ollama runtime.
const (
	DefaultBaseURL     = "http://localhost:11434/v1"
	DefaultModel       = "gpt-oss:20b"
	DefaultTemperature = 0.3

	// ollamaAPIKey is a placeholder; Ollama ignores the bearer token but the
	// client always sends one.
	ollamaAPIKey = "ollama"
)

// OpenAIModel is a ChatModel backed by an OpenAI-compatible chat API.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration

	// noTools is set once the server rejects a request carrying tools.
	noTools atomic.Bool
}

// NewOpenAIModel builds a model client from cfg, filling defaults for the
// local runtime. httpClient may be nil.
func NewOpenAIModel(cfg types.LLMConfig, httpClient *http.Client) *OpenAIModel {
	key := cfg.APIKey
	if key == "" {
		key = ollamaAPIKey
	}
	clientCfg := openai.DefaultConfig(key)
	clientCfg.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	m := &OpenAIModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: requestTemperature(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
	if m.model == "" {
		m.model = DefaultModel
	}
	return m
}

// Model returns the model tag requests are sent with.
func (m *OpenAIModel) Model() string { return m.model }

// ToolsSupported reports whether tools are still being sent.
func (m *OpenAIModel) ToolsSupported() bool { return !m.noTools.Load() }

// Complete implements ChatModel. If the server rejects the tools, the
// request is repeated without them. Tools are not sent again once a
// repeat succeeds after an error that names tools.
func (m *OpenAIModel) Complete(ctx context.Context, messages []types.Message, tools []ToolSpec) (Response, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	req := m.request(messages)
	withTools := len(tools) > 0 && m.ToolsSupported()
	if withTools {
		req.Tools = toOpenAITools(tools)
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil && withTools && rejectsTools(err) {
		rejected := err
		req.Tools = nil
		resp, err = m.client.CreateChatCompletion(ctx, req)
		// Tools are only dropped for good when the request succeeds without
		// them and the server named tools as the problem.
		if err == nil && mentionsTools(rejected) {
			m.noTools.Store(true)
			logger.FromContext(ctx).Warn("model rejected tools; continuing without them",
				zap.String("model", m.model), zap.Error(rejected))
		}
	}
	m.observe("complete", start, err)
	if err != nil {
		return Response{}, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	out := Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// Stream implements ChatModel.
func (m *OpenAIModel) Stream(ctx context.Context, messages []types.Message, onChunk func(string) error) (err error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	defer func() { m.observe("stream", start, err) }()

	req := m.request(messages)
	req.Stream = true

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return wrapAPIError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrapAPIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
}

// Ping checks that the model server answers by listing its models.
func (m *OpenAIModel) Ping(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", wrapAPIError(err))
	}
	return nil
}

func (m *OpenAIModel) request(messages []types.Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		Temperature: m.temperature,
	}
}

// requestTemperature maps t to the value sent on the wire. The client omits
// a zero temperature, which would leave the server default in place, so zero
// is sent as the smallest positive float32.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func (m *OpenAIModel) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *OpenAIModel) observe(kind string, start time.Time, err error) {
	metrics.LLMRequestsTotal.WithLabelValues(m.model, kind, metrics.Outcome(err)).Inc()
	metrics.LLMRequestDuration.WithLabelValues(m.model, kind).Observe(time.Since(start).Seconds())
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(specs))
	for i, s := range specs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return out
}

// rejectsTools reports whether err is the server refusing a tools request.
func rejectsTools(err error) bool {
	switch statusCode(err) {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusNotImplemented:
		return true
	}
	return false
}

// mentionsTools reports whether the server's error text is about tools.
func mentionsTools(err error) bool {
	msg := err.Error()
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg = string(reqErr.Body)
	}
	return strings.Contains(strings.ToLower(msg), "tool")
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// wrapAPIError attaches ErrModel and a readable message to a client error.
// Context errors are returned unchanged.
func wrapAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("model API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrModel)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("model API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), ErrModel)
	}
	return fmt.Errorf("%w: %w", ErrModel, err)
}
