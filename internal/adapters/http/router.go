package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/config"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/observability/metrics"
)

const defaultBodyLimit = 1 << 20

type Router struct {
	cfg       config.Config
	retrieval ports.RetrievalService
	chat      ports.ChatService
	metrics   *metrics.HTTPServerMetrics
	breakers  func() map[string]string
}

// NewRouter wires the HTTP surface. chat and httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	retrieval ports.RetrievalService,
	chat ports.ChatService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		retrieval: retrieval,
		chat:      chat,
		metrics:   httpMetrics,
	}
}

// WithBreakerStates adds source circuit states to the health response.
func (rt *Router) WithBreakerStates(fn func() map[string]string) *Router {
	rt.breakers = fn
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/retrieve", rt.retrieve)
	api.HandleFunc("POST /v1/retrievals/{id}/reweight", rt.reweight)
	if rt.chat != nil {
		api.HandleFunc("POST /v1/sessions/{id}/messages", rt.askInSession)
		api.HandleFunc("GET /v1/sessions/{id}/messages", rt.listSessionMessages)
		api.HandleFunc("GET /v1/messages/{id}", rt.getMessage)
		api.HandleFunc("POST /v1/messages/{id}/search", rt.searchMessage)
	}

	var guarded http.Handler = api
	guarded = authMiddleware(guarded, rt.cfg.APIKey)
	guarded = backpressureMiddlewareWithReject(guarded, rt.cfg.APIBackpressureMax, rt.cfg.APIBackpressureWait, rt.onReject("backpressure"))
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject("rate_limit"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = tracingMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() { rt.metrics.RecordRejected(rt.cfg.ServiceName, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.breakers != nil {
		body["breakers"] = rt.breakers()
	}
	writeJSON(w, http.StatusOK, body)
}

type retrieveRequest struct {
	RetrievalID    string   `json:"retrieval_id"`
	Question       string   `json:"question"`
	SemanticWeight *float64 `json:"semantic_weight"`
	KeywordWeight  *float64 `json:"keyword_weight"`
	MaxResults     int      `json:"max_results"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := rt.retrieval.Retrieve(r.Context(), domain.RetrievalRequest{
		RetrievalID:    strings.TrimSpace(req.RetrievalID),
		Question:       req.Question,
		SemanticWeight: req.SemanticWeight,
		KeywordWeight:  req.KeywordWeight,
		MaxResults:     req.MaxResults,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type reweightRequest struct {
	KeywordWeight  *float64 `json:"keyword_weight"`
	SemanticWeight *float64 `json:"semantic_weight"`
}

func (rt *Router) reweight(w http.ResponseWriter, r *http.Request) {
	var req reweightRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.KeywordWeight == nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "reweight", errors.New("keyword_weight is required")))
		return
	}

	resp, err := rt.retrieval.Reweight(r.Context(), domain.ReweightRequest{
		RetrievalID:    r.PathValue("id"),
		KeywordWeight:  *req.KeywordWeight,
		SemanticWeight: req.SemanticWeight,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	Question      string   `json:"question"`
	KeywordWeight *float64 `json:"keyword_weight"`
	MaxResults    int      `json:"max_results"`
}

func (rt *Router) askInSession(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := rt.chat.Ask(r.Context(), domain.AskRequest{
		SessionID:     r.PathValue("id"),
		Question:      req.Question,
		KeywordWeight: req.KeywordWeight,
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (rt *Router) listSessionMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "list session messages", fmt.Errorf("limit %q is not a number", raw)))
			return
		}
		limit = n
	}

	msgs, err := rt.chat.ListSessionMessages(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (rt *Router) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := rt.chat.GetMessage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type searchMessageRequest struct {
	KeywordWeight *float64 `json:"keyword_weight"`
}

func (rt *Router) searchMessage(w http.ResponseWriter, r *http.Request) {
	var req searchMessageRequest
	if err := rt.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.KeywordWeight == nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "search message", errors.New("keyword_weight is required")))
		return
	}

	msg, err := rt.chat.SearchMessage(r.Context(), r.PathValue("id"), *req.KeywordWeight)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (rt *Router) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	limit := rt.cfg.APIRequestBodyMaxSize
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("request body is required"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
