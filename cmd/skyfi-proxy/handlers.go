package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"github.com/Sternrassler/skyfi-gateway/pkg/logging"
	"github.com/Sternrassler/skyfi-gateway/pkg/metrics"
	"github.com/Sternrassler/skyfi-gateway/pkg/pagination"
)

// ConversationHeader carries the conversation that owns order-history sessions.
const ConversationHeader = "X-Conversation-Id"

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

type prefetchRequest struct {
	SessionID string `json:"sessionId"`
	Pages     int    `json:"pages"`
}

func newRouter(skyfi *client.Client, history *pagination.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /health/upstream", upstreamHealthHandler(skyfi))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /orders/history", orderHistoryHandler(history))
	mux.HandleFunc("POST /orders/history/prefetch", prefetchHandler(history))
	mux.HandleFunc("GET /orders/history/sessions", sessionsHandler(history))
	mux.HandleFunc("GET /orders/history/sessions/{id}/orders", sessionOrdersHandler(history))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func upstreamHealthHandler(skyfi *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := skyfi.Health(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"rateLimit": skyfi.RateLimitState(),
		})
	}
}

func orderHistoryHandler(history *pagination.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := r.Header.Get(ConversationHeader)
		if conversationID == "" {
			writeError(w, client.NewValidationError(ConversationHeader+" header is required", nil))
			return
		}

		var req pagination.Request
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		result, err := history.ListOrders(r.Context(), conversationID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func prefetchHandler(history *pagination.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := r.Header.Get(ConversationHeader)
		if conversationID == "" {
			writeError(w, client.NewValidationError(ConversationHeader+" header is required", nil))
			return
		}

		var req prefetchRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		stored, err := history.Prefetch(r.Context(), conversationID, req.SessionID, req.Pages)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "storedPages": stored})
	}
}

func sessionsHandler(history *pagination.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := r.URL.Query().Get("conversation_id")
		if conversationID == "" {
			writeError(w, client.NewValidationError("conversation_id query parameter is required", nil))
			return
		}

		sessions, err := history.GetConversationSessions(r.Context(), conversationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": sessions})
	}
}

func sessionOrdersHandler(history *pagination.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := history.GetAllSessionOrders(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": orders, "count": len(orders)})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return client.NewValidationError("invalid JSON body", err)
	}
	return nil
}

// statusForClass maps error classes to HTTP statuses.
func statusForClass(class client.ErrorClass) int {
	switch class {
	case client.ClassAuth:
		return http.StatusUnauthorized
	case client.ClassNotFound:
		return http.StatusNotFound
	case client.ClassValidation:
		return http.StatusBadRequest
	case client.ClassRateLimited:
		return http.StatusTooManyRequests
	case client.ClassTimeout:
		return http.StatusGatewayTimeout
	case client.ClassServerError, client.ClassConnectionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	class := client.ClassOf(err)
	status := statusForClass(class)

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && class == client.ClassRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfterSeconds))
	}

	if status >= http.StatusInternalServerError {
		logger := logging.NewLogger(logging.ComponentProxy)
		logger.Error().
			Err(err).
			Str("error_class", string(class)).
			Msg("Request failed")
	}

	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]any{
			"class":   class,
			"message": err.Error(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger(logging.ComponentProxy)
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}
