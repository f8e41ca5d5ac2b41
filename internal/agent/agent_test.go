// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmed-assistant/internal/llm"
	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// fakeModel returns a canned first response and streams canned chunks.
type fakeModel struct {
	response    llm.Response
	completeErr error
	chunks      []string
	streamErr   error

	mu        sync.Mutex
	completes [][]types.Message
	tools     [][]llm.ToolSpec
	streams   [][]types.Message
}

func (m *fakeModel) Complete(_ context.Context, messages []types.Message, tools []llm.ToolSpec) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completes = append(m.completes, messages)
	m.tools = append(m.tools, tools)
	return m.response, m.completeErr
}

func (m *fakeModel) Stream(_ context.Context, messages []types.Message, onChunk func(string) error) error {
	m.mu.Lock()
	m.streams = append(m.streams, messages)
	m.mu.Unlock()
	for _, c := range m.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return m.streamErr
}

// fakeTool is a search tool with canned results.
type fakeTool struct {
	docs []types.Document
	err  error

	calls []tools.SearchArgs
}

func (t *fakeTool) Name() string                { return tools.SearchPubMedCentralName }
func (t *fakeTool) Description() string         { return "Search PubMed Central for articles" }
func (t *fakeTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *fakeTool) Invoke(_ context.Context, raw json.RawMessage) ([]types.Document, error) {
	var args tools.SearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	t.calls = append(t.calls, args)
	return t.docs, t.err
}

func registry(t *testing.T, tool tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(tool)
	require.NoError(t, err)
	return r
}

func searchCall(args string) llm.Response {
	return llm.Response{ToolCalls: []llm.ToolCall{{
		ID:        "call_1",
		Name:      tools.SearchPubMedCentralName,
		Arguments: json.RawMessage(args),
	}}}
}

var sampleDocs = []types.Document{
	{PMCID: "123456", Citation: "Test citation", Abstract: "Test abstract about diabetes"},
	{PMCID: "654321", Citation: "Second citation", Abstract: "Second abstract"},
}

func collect(t *testing.T, a *Agent, input string, history []types.Message) (string, []string) {
	t.Helper()
	var chunks []string
	err := a.Stream(context.Background(), input, history, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	return strings.Join(chunks, ""), chunks
}

func TestNewAgentDefaults(t *testing.T) {
	a := New(&fakeModel{}, nil)
	assert.Empty(t, a.Documents())
	assert.Equal(t, tools.DefaultMaxResults, a.defaultMax)

	a = New(&fakeModel{}, nil, WithDefaultMaxResults(7), WithDocuments(sampleDocs))
	assert.Equal(t, 7, a.defaultMax)
	assert.Equal(t, sampleDocs, a.Documents())
}

func TestStreamWithoutToolCalls(t *testing.T) {
	model := &fakeModel{response: llm.Response{Content: "Test response"}}
	a := New(model, nil)

	out, _ := collect(t, a, "test query", nil)
	assert.Equal(t, "Test response", out)
	assert.Empty(t, model.streams)

	require.Len(t, model.completes, 1)
	msgs := model.completes[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.NotContains(t, msgs[0].Content, "Available tools")
	assert.Equal(t, types.UserMessage("test query"), msgs[1])
	assert.Nil(t, model.tools[0])
}

func TestStreamIncludesHistory(t *testing.T) {
	model := &fakeModel{response: llm.Response{Content: "New response"}}
	a := New(model, registry(t, &fakeTool{}))
	history := []types.Message{
		types.UserMessage("Previous question"),
		types.AssistantMessage("Previous answer"),
	}

	collect(t, a, "new question", history)

	msgs := model.completes[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, history[0], msgs[1])
	assert.Equal(t, history[1], msgs[2])
	assert.Equal(t, "new question", msgs[3].Content)

	assert.Contains(t, msgs[0].Content, "Available tools:\n- search_pubmed_central: Search PubMed Central for articles")
	require.Len(t, model.tools[0], 1)
	assert.Equal(t, tools.SearchPubMedCentralName, model.tools[0][0].Name)
}

func TestStreamWithToolCall(t *testing.T) {
	model := &fakeModel{
		response: searchCall(`{"query":"diabetes","max_results":2}`),
		chunks:   []string{"Synthesis ", "content"},
	}
	tool := &fakeTool{docs: sampleDocs}
	a := New(model, registry(t, tool))

	out, chunks := collect(t, a, "search for diabetes", nil)

	assert.Equal(t, "🔎 Searching PubMed Central for research on **diabetes**...\n\n", chunks[0])
	assert.Equal(t, "📚 Found 2 articles. Let me filter and explain what the research shows...\n\n", chunks[1])
	assert.Equal(t, "\n\n---\n\n💡 *Any other follow-up questions? Just ask!*", chunks[len(chunks)-1])
	assert.Contains(t, out, "Synthesis content")

	require.Len(t, tool.calls, 1)
	assert.Equal(t, tools.SearchArgs{Query: "diabetes", MaxResults: 2}, tool.calls[0])
	assert.Equal(t, sampleDocs, a.Documents())

	require.Len(t, model.streams, 1)
	synth := model.streams[0]
	require.Len(t, synth, 2)
	assert.Contains(t, synth[0].Content, "**What the research found:**")
	assert.Contains(t, synth[0].Content, "https://pmc.ncbi.nlm.nih.gov/articles/PMC12345678")
	assert.Contains(t, synth[1].Content, "please explain what we know about: search for diabetes")
	assert.Contains(t, synth[1].Content, "Article 1 (PMC ID: 123456):\nTest citation\n\nAbstract: Test abstract about diabetes")
}

func TestStreamToolCallDefaultMaxResults(t *testing.T) {
	tests := []struct {
		name string
		args string
		want int
	}{
		{"omitted", `{"query":"sleep"}`, 3},
		{"string", `{"query":"sleep","max_results":"5"}`, 5},
		{"null", `{"query":"sleep","max_results":null}`, 3},
		{"zero", `{"query":"sleep","max_results":0}`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &fakeTool{docs: sampleDocs}
			a := New(&fakeModel{response: searchCall(tt.args)}, registry(t, tool))
			collect(t, a, "q", nil)
			require.Len(t, tool.calls, 1)
			assert.Equal(t, tt.want, tool.calls[0].MaxResults)
		})
	}
}

func TestStreamToolCallNoResults(t *testing.T) {
	tool := &fakeTool{docs: []types.Document{}}
	model := &fakeModel{response: searchCall(`{"query":"nothing"}`)}
	a := New(model, registry(t, tool), WithDocuments(sampleDocs))

	out, _ := collect(t, a, "q", nil)
	assert.True(t, strings.HasSuffix(out, "No articles found for that query."))
	assert.Empty(t, a.Documents(), "an empty search replaces the session documents")
	assert.Empty(t, model.streams)
}

func TestStreamToolErrorIsReported(t *testing.T) {
	tool := &fakeTool{err: errors.New("searching PubMed Central: network error")}
	a := New(&fakeModel{response: searchCall(`{"query":"q"}`)}, registry(t, tool), WithDocuments(sampleDocs))

	out, _ := collect(t, a, "q", nil)
	assert.Contains(t, out, "❌ Error: searching PubMed Central: network error")
	assert.Equal(t, sampleDocs, a.Documents(), "documents survive a failed search")
}

func TestStreamSynthesisErrorIsReported(t *testing.T) {
	model := &fakeModel{
		response:  searchCall(`{"query":"q"}`),
		chunks:    []string{"partial"},
		streamErr: errors.New("model crashed"),
	}
	a := New(model, registry(t, &fakeTool{docs: sampleDocs}))

	out, _ := collect(t, a, "q", nil)
	assert.Contains(t, out, "partial❌ Error: model crashed")
	assert.NotContains(t, out, "follow-up questions")
}

func TestStreamUnknownToolFallsThrough(t *testing.T) {
	model := &fakeModel{response: llm.Response{
		Content:   "I can answer directly.",
		ToolCalls: []llm.ToolCall{{Name: "web_search", Arguments: json.RawMessage(`{}`)}},
	}}
	tool := &fakeTool{}
	a := New(model, registry(t, tool))

	out, _ := collect(t, a, "q", nil)
	assert.Equal(t, "I can answer directly.", out)
	assert.Empty(t, tool.calls)
}

func TestStreamFollowUpUsesDocuments(t *testing.T) {
	model := &fakeModel{
		response: llm.Response{Content: ""},
		chunks:   []string{"Answer based on articles"},
	}
	a := New(model, registry(t, &fakeTool{}), WithDocuments(sampleDocs))
	history := []types.Message{types.UserMessage("earlier"), types.AssistantMessage("reply")}

	out, _ := collect(t, a, "What did the research find?", history)
	assert.Equal(t, "Answer based on articles", out)

	require.Len(t, model.streams, 1)
	qa := model.streams[0]
	require.Len(t, qa, 4)
	assert.Contains(t, qa[0].Content, "Research Articles:\nArticle 1 (PMC ID: 123456)")
	assert.Contains(t, qa[0].Content, "Article 2 (PMC ID: 654321)")
	assert.Contains(t, qa[0].Content, "If the articles don't answer the question, say so clearly")
	assert.Equal(t, history[0], qa[1])
	assert.Equal(t, types.UserMessage("What did the research find?"), qa[3])
}

func TestStreamFirstCallErrorIsReturned(t *testing.T) {
	a := New(&fakeModel{completeErr: llm.ErrModel}, nil)

	err := a.Stream(context.Background(), "q", nil, func(string) error { return nil })
	assert.ErrorIs(t, err, llm.ErrModel)
}

func TestStreamEmitErrorAborts(t *testing.T) {
	tool := &fakeTool{docs: sampleDocs}
	a := New(&fakeModel{response: searchCall(`{"query":"q"}`)}, registry(t, tool))
	gone := errors.New("client disconnected")

	var calls int
	err := a.Stream(context.Background(), "q", nil, func(string) error {
		calls++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, calls)
	assert.Empty(t, tool.calls)
}

func TestInvoke(t *testing.T) {
	a := New(&fakeModel{response: llm.Response{Content: "Complete response"}}, nil)

	out, err := a.Invoke(context.Background(), "test query", nil)
	require.NoError(t, err)
	assert.Equal(t, "Complete response", out)
}

func TestDocumentsAreCopies(t *testing.T) {
	a := New(&fakeModel{}, nil)
	docs := []types.Document{{PMCID: "1"}, {PMCID: "2"}}
	a.SetDocuments(docs)
	docs[0].PMCID = "changed"

	got := a.Documents()
	assert.Equal(t, "1", got[0].PMCID)
	got[1].PMCID = "changed"
	assert.Equal(t, "2", a.Documents()[1].PMCID)
}

func TestArticleContext(t *testing.T) {
	assert.Equal(t,
		"Article 1 (PMC ID: 123456):\nTest citation\n\nAbstract: Test abstract about diabetes\n\n"+
			"Article 2 (PMC ID: 654321):\nSecond citation\n\nAbstract: Second abstract",
		ArticleContext(sampleDocs))
	assert.Empty(t, ArticleContext(nil))
}
