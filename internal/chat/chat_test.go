// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
	"github.com/pdiddy/pubmed-assistant/internal/llm"
	"github.com/pdiddy/pubmed-assistant/internal/store"
	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// scriptedModel calls the search tool when the question starts with
// "search", otherwise answers plainly. Streams echo a fixed synthesis.
type scriptedModel struct {
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	history [][]types.Message
}

func (m *scriptedModel) Complete(ctx context.Context, messages []types.Message, _ []llm.ToolSpec) (llm.Response, error) {
	m.mu.Lock()
	m.history = append(m.history, messages)
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
		select {
		case <-m.release:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}

	question := messages[len(messages)-1].Content
	if len(question) >= 6 && question[:6] == "search" {
		return llm.Response{ToolCalls: []llm.ToolCall{{
			Name:      tools.SearchPubMedCentralName,
			Arguments: json.RawMessage(`{"query":"caffeine"}`),
		}}}, nil
	}
	return llm.Response{Content: "Plain answer."}, nil
}

func (m *scriptedModel) Stream(_ context.Context, _ []types.Message, onChunk func(string) error) error {
	for _, c := range []string{"Per Article 1, PMC111 ", "shows an effect."} {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

type stubFetcher struct {
	articles []types.Article
	err      error
}

func (f *stubFetcher) FetchRecords(context.Context, string, int) ([]types.Article, error) {
	return f.articles, f.err
}

func testService(t *testing.T, model llm.ChatModel, fetcher tools.RecordFetcher, maxLive int) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := tools.Default(fetcher, 3, 20)
	factory := func(docs []types.Document) *agent.Agent {
		return agent.New(model, registry, agent.WithDocuments(docs))
	}
	return NewService(st, factory, maxLive), st
}

var cachedArticles = []types.Article{
	{PMCID: "111", Citation: "First (2024).", Abstract: "Caffeine delays sleep."},
	{PMCID: "222", Citation: "Second (2023).", Abstract: "Coffee and alertness."},
}

func TestSendPlainAnswer(t *testing.T) {
	svc, st := testService(t, &scriptedModel{}, &stubFetcher{}, 0)
	ctx := context.Background()

	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	var chunks []string
	res, err := svc.Send(ctx, sess.ID, "hello", func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Plain answer.", res.Response)
	assert.Equal(t, []string{"Plain answer."}, chunks)
	assert.Empty(t, res.Sources)

	history, err := st.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
	assert.Equal(t, "Plain answer.", history[1].Content)
}

func TestSendSearchPersistsDocuments(t *testing.T) {
	model := &scriptedModel{}
	svc, _ := testService(t, model, &stubFetcher{articles: cachedArticles}, 0)
	ctx := context.Background()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	res, err := svc.Send(ctx, sess.ID, "search caffeine", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "🔎 Searching PubMed Central for research on **caffeine**")
	assert.Contains(t, res.Response, "Just ask!")

	docs, err := svc.Documents(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "111", docs[0].PMCID)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "PMC111", res.Sources[0].Ref)
	assert.Equal(t, 0, res.Sources[0].Index)
	assert.Equal(t, "Article 1", res.Sources[1].Ref)

	// The second turn sees the first in its history.
	_, err = svc.Send(ctx, sess.ID, "and what else?", nil)
	require.NoError(t, err)
	model.mu.Lock()
	second := model.history[1]
	model.mu.Unlock()
	require.Len(t, second, 4)
	assert.Equal(t, "search caffeine", second[1].Content)
}

func TestSendRebuildsEvictedSession(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{articles: cachedArticles}, 1)
	ctx := context.Background()

	first, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Send(ctx, first.ID, "search caffeine", nil)
	require.NoError(t, err)

	second, err := svc.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.LiveCount(), "the first session was evicted")

	// Rebuilt with its documents: a follow-up is answered from them.
	res, err := svc.Send(ctx, first.ID, "what did it find?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Per Article 1, PMC111 shows an effect.", res.Response)
	assert.Equal(t, 1, svc.LiveCount())

	_, err = svc.Send(ctx, second.ID, "hello", nil)
	require.NoError(t, err)
}

func TestSendUnknownSession(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{}, 0)

	_, err := svc.Send(context.Background(), "missing", "hello", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendEmptyMessage(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{}, 0)
	sess, err := svc.Start(context.Background())
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), sess.ID, "  \n", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendBusy(t *testing.T) {
	model := &scriptedModel{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := testService(t, model, &stubFetcher{}, 0)
	ctx := context.Background()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, sess.ID, "first", nil)
		done <- err
	}()
	<-model.started

	_, err = svc.Send(ctx, sess.ID, "second", nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, svc.Delete(ctx, sess.ID), ErrBusy)

	close(model.release)
	require.NoError(t, <-done)
}

func TestAcquireHoldsSessionAgainstEviction(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{}, 1)
	ctx := context.Background()
	first, err := svc.Start(ctx)
	require.NoError(t, err)

	ls, err := svc.acquire(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.Start(ctx)
	require.NoError(t, err)

	svc.mu.Lock()
	held := svc.live[first.ID]
	svc.mu.Unlock()
	assert.Same(t, ls, held, "a claimed session stays live")

	_, err = svc.acquire(ctx, first.ID)
	assert.ErrorIs(t, err, ErrBusy)

	ls.busy.Store(false)
	_, err = svc.acquire(ctx, first.ID)
	assert.NoError(t, err)
}

// overlapModel records how many turns run at once.
type overlapModel struct {
	scriptedModel
	running atomic.Int32
	peak    atomic.Int32
}

func (m *overlapModel) Complete(ctx context.Context, messages []types.Message, specs []llm.ToolSpec) (llm.Response, error) {
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	runtime.Gosched()
	return m.scriptedModel.Complete(ctx, messages, specs)
}

func TestSendOneTurnPerSessionUnderEviction(t *testing.T) {
	model := &overlapModel{}
	svc, _ := testService(t, model, &stubFetcher{}, 1)
	ctx := context.Background()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, err := svc.Send(ctx, sess.ID, "hello", nil)
				if err != nil && !errors.Is(err, ErrBusy) {
					t.Errorf("send: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			if _, err := svc.Start(ctx); err != nil {
				t.Errorf("start: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, int32(1), model.peak.Load())
}

func TestSendEmitErrorSkipsHistory(t *testing.T) {
	svc, st := testService(t, &scriptedModel{}, &stubFetcher{}, 0)
	ctx := context.Background()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	gone := errors.New("client went away")
	_, err = svc.Send(ctx, sess.ID, "hello", func(string) error { return gone })
	assert.ErrorIs(t, err, gone)

	history, err := st.History(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDelete(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{}, 0)
	ctx := context.Background()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sess.ID))
	assert.Zero(t, svc.LiveCount())
	_, err = svc.Session(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, sess.ID), store.ErrNotFound)
}

func TestSessions(t *testing.T) {
	svc, _ := testService(t, &scriptedModel{}, &stubFetcher{}, 0)
	ctx := context.Background()
	_, err := svc.Start(ctx)
	require.NoError(t, err)
	_, err = svc.Start(ctx)
	require.NoError(t, err)

	list, err := svc.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
