// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/chat"
	"github.com/pdiddy/pubmed-assistant/internal/entrez"
	"github.com/pdiddy/pubmed-assistant/internal/llm"
	"github.com/pdiddy/pubmed-assistant/internal/logger"
	"github.com/pdiddy/pubmed-assistant/internal/store"
)

// Error codes returned in the code field of error responses.
const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeBusy       = "busy"
	codeUpstream   = "upstream"
	codeCanceled   = "canceled"
	codeInternal   = "internal_error"
)

var errBadMaxResults = errors.New("max_results must be a positive integer")

// statusClientClosed is the de facto status for a client that went away.
const statusClientClosed = 499

// ErrorResponse is the body of every non-2xx JSON response and of the
// error event of a streamed turn.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping maps a sentinel to a response. detail keeps the wrapped
// message; otherwise only the sentinel text is returned, since upstream
// errors may carry URLs and keys.
type errorMapping struct {
	sentinel error
	status   int
	code     string
	detail   bool
}

var errorMappings = []errorMapping{
	{store.ErrNotFound, http.StatusNotFound, codeNotFound, true},
	{chat.ErrBusy, http.StatusConflict, codeBusy, true},
	{chat.ErrEmptyMessage, http.StatusBadRequest, codeBadRequest, true},
	{entrez.ErrRequest, http.StatusBadGateway, codeUpstream, false},
	{entrez.ErrUnavailable, http.StatusBadGateway, codeUpstream, false},
	{llm.ErrModel, http.StatusBadGateway, codeUpstream, false},
	{llm.ErrEmptyResponse, http.StatusBadGateway, codeUpstream, false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codeUpstream, false},
	{context.Canceled, statusClientClosed, codeCanceled, false},
}

// classify returns the status and body for err. Unknown errors become an
// opaque 500.
func classify(err error) (int, ErrorResponse, bool) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.sentinel.Error()
		if m.detail {
			msg = err.Error()
		}
		return m.status, ErrorResponse{Code: m.code, Message: msg}, true
	}
	return http.StatusInternalServerError, ErrorResponse{Code: codeInternal, Message: "internal error"}, false
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body, known := classify(err)
	log := logger.FromContext(r.Context())
	if known {
		log.Warn("request failed", zap.Error(err))
	} else {
		log.Error("internal error", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
