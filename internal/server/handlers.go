// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/agent"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/tools"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// healthTimeout bounds each dependency check of /health.
const healthTimeout = 5 * time.Second

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

// SessionResponse is a session as returned by the API.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendRequest is the body of POST /api/v1/sessions/{id}/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// ChunkEvent is the payload of a chunk event.
type ChunkEvent struct {
	Content string `json:"content"`
}

// DoneEvent is the payload of the final event of a successful turn.
type DoneEvent struct {
	Sources []agent.Source `json:"sources"`
}

// ArticleResponse is an article with its PMC landing page.
type ArticleResponse struct {
	types.Article
	URL string `json:"url"`
}

// ArticleListResponse wraps a list of articles.
type ArticleListResponse struct {
	Query    string            `json:"query"`
	Count    int               `json:"count"`
	Articles []ArticleResponse `json:"articles"`
}

// HealthResponse reports the status of each dependency.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chat.Start(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.chat.Sessions(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		items[i] = toSessionResponse(sess)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chat.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.chat.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.chat.Documents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleSendMessage streams one turn as server-sent events. Errors raised
// before the first chunk get a JSON response with the mapped status; later
// errors end the stream with an error event.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.chat.Send(r.Context(), id, req.Content, func(chunk string) error {
		return stream.Send(eventChunk, ChunkEvent{Content: chunk})
	})
	if err != nil {
		if !stream.Started() {
			s.handleDomainError(w, r, err)
			return
		}
		_, body, _ := classify(err)
		logger.FromContext(r.Context()).Warn("turn aborted",
			zap.String("session_id", id), zap.Error(err))
		_ = stream.Send(eventError, body)
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []agent.Source{}
	}
	_ = stream.Send(eventDone, DoneEvent{Sources: sources})
}

// handleSearch runs a direct PMC search, bypassing the agent.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query parameter q is required")
		return
	}
	maxResults, err := s.maxResults(r.URL.Query().Get("max_results"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	articles, err := s.search.FetchRecords(r.Context(), query, maxResults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleList(query, articles))
}

func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	articles, err := s.articles.SearchArticles(r.Context(), query, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleList(query, articles))
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.articles.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": check(r.Context(), s.articles)}
	if s.model != nil {
		checks["llm"] = check(r.Context(), s.model)
	}

	resp := HealthResponse{Status: "ok", Checks: checks}
	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func check(ctx context.Context, p Pinger) string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("health check failed", zap.Error(err))
		return "error"
	}
	return "ok"
}

// maxResults parses max_results, falling back to the configured default
// and capping at the configured limit.
func (s *Server) maxResults(raw string) (int, error) {
	def := s.limits.DefaultMaxResults
	if def < 1 {
		def = tools.DefaultMaxResults
	}
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errBadMaxResults
	}
	if s.limits.MaxResultsLimit > 0 && n > s.limits.MaxResultsLimit {
		n = s.limits.MaxResultsLimit
	}
	return n, nil
}

func toSessionResponse(sess types.Session) SessionResponse {
	return SessionResponse{ID: sess.ID, CreatedAt: sess.CreatedAt, UpdatedAt: sess.UpdatedAt}
}

func toArticleResponse(a types.Article) ArticleResponse {
	return ArticleResponse{Article: a, URL: a.URL()}
}

func toArticleList(query string, articles []types.Article) ArticleListResponse {
	items := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		items[i] = toArticleResponse(a)
	}
	return ArticleListResponse{Query: query, Count: len(items), Articles: items}
}
