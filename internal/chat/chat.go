// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat runs conversations: it keeps an agent per session, streams
// each turn, and records history and documents in the store so a session
// can be resumed after a restart or eviction.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/metrics"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

var (
	// ErrBusy is returned when a session is already answering a message.
	ErrBusy = errors.New("session is busy")

	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("message is empty")
)

// DefaultMaxLive bounds the sessions kept in memory when none is configured.
const DefaultMaxLive = 256

// Store is the persistence the service needs.
type Store interface {
	CreateSession(ctx context.Context) (types.Session, error)
	GetSession(ctx context.Context, id string) (types.Session, error)
	ListSessions(ctx context.Context) ([]types.Session, error)
	DeleteSession(ctx context.Context, id string) error
	AppendMessages(ctx context.Context, id string, msgs ...types.Message) error
	History(ctx context.Context, id string) ([]types.Message, error)
	SaveDocuments(ctx context.Context, id string, docs []types.Document) error
	Documents(ctx context.Context, id string) ([]types.Document, error)
}

// AgentFactory builds the agent for a session, seeded with its documents.
type AgentFactory func(docs []types.Document) *agent.Agent

// Result is the outcome of a completed turn.
type Result struct {
	Response string         `json:"response"`
	Sources  []agent.Source `json:"sources"`
}

type liveSession struct {
	agent    *agent.Agent
	busy     atomic.Bool
	lastUsed atomic.Int64
}

// Service manages live sessions on top of a Store.
type Service struct {
	store    Store
	newAgent AgentFactory
	maxLive  int

	mu   sync.Mutex
	live map[string]*liveSession
}

// NewService returns a service keeping at most maxLive sessions in memory.
func NewService(store Store, newAgent AgentFactory, maxLive int) *Service {
	if maxLive <= 0 {
		maxLive = DefaultMaxLive
	}
	return &Service{
		store:    store,
		newAgent: newAgent,
		maxLive:  maxLive,
		live:     make(map[string]*liveSession),
	}
}

// Start creates a session with a fresh agent and empty history.
func (s *Service) Start(ctx context.Context) (types.Session, error) {
	sess, err := s.store.CreateSession(ctx)
	if err != nil {
		return types.Session{}, err
	}
	s.mu.Lock()
	s.addLocked(sess.ID, s.newAgent(nil))
	s.mu.Unlock()

	logger.FromContext(ctx).Info("session started", zap.String("session_id", sess.ID))
	return sess, nil
}

// Sessions lists stored sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context) ([]types.Session, error) {
	return s.store.ListSessions(ctx)
}

// Session returns a stored session.
func (s *Service) Session(ctx context.Context, id string) (types.Session, error) {
	return s.store.GetSession(ctx, id)
}

// History returns the stored messages of a session.
func (s *Service) History(ctx context.Context, id string) ([]types.Message, error) {
	return s.store.History(ctx, id)
}

// Documents returns the articles a session is answering from.
func (s *Service) Documents(ctx context.Context, id string) ([]types.Document, error) {
	return s.store.Documents(ctx, id)
}

// Delete removes a session from memory and the store. A session in the
// middle of a turn cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if ls, ok := s.live[id]; ok {
		if ls.busy.Load() {
			s.mu.Unlock()
			return fmt.Errorf("session %s: %w", id, ErrBusy)
		}
		s.removeLocked(id)
	}
	s.mu.Unlock()
	return s.store.DeleteSession(ctx, id)
}

// Send runs one turn of session id. Non-empty chunks are passed to emit as
// they are produced. When the turn completes, the user message and the full
// response are appended to the history. The session documents are saved
// even when the turn fails part way, so the store matches the agent.
func (s *Service) Send(ctx context.Context, id, content string, emit agent.EmitFunc) (Result, error) {
	if strings.TrimSpace(content) == "" {
		return Result{}, ErrEmptyMessage
	}

	ls, err := s.acquire(ctx, id)
	if err != nil {
		return Result{}, err
	}
	defer ls.busy.Store(false)

	log := logger.FromContext(ctx).With(zap.String("session_id", id))
	ctx = logger.WithLogger(ctx, log)

	history, err := s.store.History(ctx, id)
	if err != nil {
		return Result{}, err
	}

	before := ls.agent.Documents()
	var full strings.Builder
	turnErr := ls.agent.Stream(ctx, content, history, func(chunk string) error {
		if chunk == "" {
			return nil
		}
		full.WriteString(chunk)
		if emit == nil {
			return nil
		}
		return emit(chunk)
	})

	docs := ls.agent.Documents()
	if !sameDocuments(before, docs) {
		// Detached so a cancelled request still records the search it ran.
		if err := s.store.SaveDocuments(context.WithoutCancel(ctx), id, docs); err != nil {
			log.Error("saving session documents", zap.Error(err))
		}
	}

	if turnErr != nil {
		log.Warn("turn failed", zap.Error(turnErr))
		return Result{}, turnErr
	}

	response := full.String()
	if err := s.store.AppendMessages(ctx, id,
		types.UserMessage(content),
		types.AssistantMessage(response),
	); err != nil {
		return Result{}, fmt.Errorf("recording history: %w", err)
	}

	return Result{
		Response: response,
		Sources:  agent.Citations(response, docs),
	}, nil
}

// acquire returns the live session for id marked busy, rebuilding it from
// the store when it is not in memory. The session is claimed under s.mu so
// it cannot be evicted or replaced between lookup and claim.
func (s *Service) acquire(ctx context.Context, id string) (*liveSession, error) {
	s.mu.Lock()
	if ls, ok := s.live[id]; ok {
		defer s.mu.Unlock()
		return ls, claimLocked(id, ls)
	}
	s.mu.Unlock()

	docs, err := s.store.Documents(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[id]
	if !ok {
		logger.FromContext(ctx).Debug("session restored",
			zap.String("session_id", id), zap.Int("documents", len(docs)))
		ls = s.addLocked(id, s.newAgent(docs))
	}
	return ls, claimLocked(id, ls)
}

// claimLocked marks ls busy. The caller holds s.mu.
func claimLocked(id string, ls *liveSession) error {
	if !ls.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s: %w", id, ErrBusy)
	}
	ls.lastUsed.Store(time.Now().UnixNano())
	return nil
}

// LiveCount returns the number of sessions held in memory.
func (s *Service) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Service) addLocked(id string, a *agent.Agent) *liveSession {
	ls := &liveSession{agent: a}
	ls.lastUsed.Store(time.Now().UnixNano())
	s.live[id] = ls
	for len(s.live) > s.maxLive {
		if !s.evictLocked(id) {
			break
		}
	}
	metrics.LiveSessions.Set(float64(len(s.live)))
	return ls
}

// evictLocked drops the least recently used idle session other than keep.
func (s *Service) evictLocked(keep string) bool {
	var (
		victim string
		oldest int64
	)
	for id, ls := range s.live {
		if id == keep || ls.busy.Load() {
			continue
		}
		if used := ls.lastUsed.Load(); victim == "" || used < oldest {
			victim, oldest = id, used
		}
	}
	if victim == "" {
		return false
	}
	s.removeLocked(victim)
	return true
}

func (s *Service) removeLocked(id string) {
	delete(s.live, id)
	metrics.LiveSessions.Set(float64(len(s.live)))
}

func sameDocuments(a, b []types.Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
