package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

const (
	operationRetrieve = "retrieve"
	operationReweight = "reweight"

	tracerName = "github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/usecase"
)

// RetrievalConfig carries engine tuning. Zero values fall back to defaults.
// PersistTimeout bounds the pool store and audit publish, which run detached
// from the caller's deadline.
type RetrievalConfig struct {
	SemanticWeight  float64
	KeywordWeight   float64
	MaxResults      int
	MaxResultsLimit int
	CandidateLimit  int
	SemanticTimeout time.Duration
	KeywordTimeout  time.Duration
	TotalTimeout    time.Duration
	PersistTimeout  time.Duration
	MaxOverlapRunes int
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.SemanticWeight == 0 && c.KeywordWeight == 0 {
		c.SemanticWeight = 0.7
		c.KeywordWeight = 0.3
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.MaxResultsLimit <= 0 {
		c.MaxResultsLimit = 50
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 30
	}
	if c.SemanticTimeout <= 0 {
		c.SemanticTimeout = 3 * time.Second
	}
	if c.KeywordTimeout <= 0 {
		c.KeywordTimeout = 2 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 5 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 2 * time.Second
	}
	if c.MaxOverlapRunes <= 0 {
		c.MaxOverlapRunes = 512
	}
	return c
}

type RetrievalUseCase struct {
	dispatcher *dispatcher
	cache      ports.PoolCache
	observer   ports.RetrievalObserver
	audit      ports.AuditPublisher
	cfg        RetrievalConfig
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

// NewRetrievalUseCase wires the engine. observer and audit may be nil.
func NewRetrievalUseCase(
	semantic ports.CandidateSource,
	keyword ports.CandidateSource,
	cache ports.PoolCache,
	observer ports.RetrievalObserver,
	audit ports.AuditPublisher,
	cfg RetrievalConfig,
) *RetrievalUseCase {
	cfg = cfg.withDefaults()
	if observer == nil {
		observer = noopObserver{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	tracer := otel.Tracer(tracerName)

	return &RetrievalUseCase{
		dispatcher: &dispatcher{semantic: semantic, keyword: keyword, cfg: cfg, tracer: tracer},
		cache:      cache,
		observer:   observer,
		audit:      audit,
		cfg:        cfg,
		tracer:     tracer,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func (uc *RetrievalUseCase) Retrieve(ctx context.Context, req domain.RetrievalRequest) (resp *domain.RetrievalResponse, err error) {
	started := time.Now()
	ctx, span := uc.tracer.Start(ctx, "retrieval.retrieve")
	defer func() {
		uc.finish(span, operationRetrieve, started, resp, err)
	}()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is required"))
	}
	weights := req.Weights(domain.Weights{Semantic: uc.cfg.SemanticWeight, Keyword: uc.cfg.KeywordWeight})
	if err := validateWeights(weights); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", err)
	}
	maxResults, err := uc.resolveMaxResults(req.MaxResults)
	if err != nil {
		return nil, err
	}
	retrievalID := strings.TrimSpace(req.RetrievalID)
	if retrievalID == "" {
		retrievalID = uc.newID()
	}
	span.SetAttributes(attribute.String("retrieval.id", retrievalID))

	result := uc.dispatcher.dispatch(ctx, question)
	for _, src := range []sourceResult{result.semantic, result.keyword} {
		if src.err != nil {
			uc.observer.ObserveSourceFailure(src.name)
			continue
		}
		uc.observer.ObserveCandidates(src.name, len(src.candidates))
	}
	if result.allFailed() {
		return nil, domain.WrapError(
			domain.ErrAllSourcesUnavailable,
			"retrieve",
			errors.Join(result.semantic.err, result.keyword.err),
		)
	}
	if result.semantic.err != nil {
		uc.observer.ObserveDegraded(domain.SourceSemantic)
	}
	if result.keyword.err != nil {
		uc.observer.ObserveDegraded(domain.SourceKeyword)
	}

	pool := &domain.RetrievalPool{
		RetrievalID:   retrievalID,
		Question:      question,
		RawCandidates: mergeCandidates(result.semantic.candidates, result.keyword.candidates),
		MaxResults:    maxResults,
		Semantic:      result.semantic.report(),
		Keyword:       result.keyword.report(),
		CreatedAt:     uc.now(),
	}
	if err := uc.store(ctx, pool); err != nil {
		if domain.IsKind(err, domain.ErrCacheConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("store retrieval pool: %w", err)
	}

	resp, err = uc.rank(pool, weights, false)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, operationRetrieve, resp)
	return resp, nil
}

// Reweight re-ranks a stored pool under new weights without querying any
// source.
func (uc *RetrievalUseCase) Reweight(ctx context.Context, req domain.ReweightRequest) (resp *domain.RetrievalResponse, err error) {
	started := time.Now()
	ctx, span := uc.tracer.Start(ctx, "retrieval.reweight",
		trace.WithAttributes(attribute.String("retrieval.id", req.RetrievalID)),
	)
	defer func() {
		uc.finish(span, operationReweight, started, resp, err)
	}()

	retrievalID := strings.TrimSpace(req.RetrievalID)
	if retrievalID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reweight", errors.New("retrieval id is required"))
	}
	weights, err := reweightWeights(req)
	if err != nil {
		return nil, err
	}

	pool, err := uc.cache.Load(ctx, retrievalID)
	if err != nil {
		if domain.IsKind(err, domain.ErrPoolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load retrieval pool: %w", err)
	}

	resp, err = uc.rank(pool, weights, true)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, operationReweight, resp)
	return resp, nil
}

func reweightWeights(req domain.ReweightRequest) (domain.Weights, error) {
	w := domain.Weights{Keyword: req.KeywordWeight}
	if req.SemanticWeight != nil {
		w.Semantic = *req.SemanticWeight
	} else {
		if req.KeywordWeight < 0 || req.KeywordWeight > 1 {
			return w, domain.WrapError(
				domain.ErrInvalidInput,
				"reweight",
				fmt.Errorf("keyword weight %v outside [0,1]", req.KeywordWeight),
			)
		}
		w.Semantic = 1 - req.KeywordWeight
	}
	if err := validateWeights(w); err != nil {
		return w, domain.WrapError(domain.ErrInvalidInput, "reweight", err)
	}
	return w, nil
}

func (uc *RetrievalUseCase) rank(pool *domain.RetrievalPool, weights domain.Weights, reweighted bool) (*domain.RetrievalResponse, error) {
	fused, err := fuseCandidates(pool.RawCandidates, weights)
	if err != nil {
		return nil, err
	}
	docs := reassemble(fused, pool.MaxResults, uc.cfg.MaxOverlapRunes)

	return assembleResponse(assembleInput{
		RetrievalID:     pool.RetrievalID,
		Question:        pool.Question,
		Documents:       docs,
		Weights:         weights,
		TotalCandidates: len(pool.RawCandidates),
		Semantic:        pool.Semantic,
		Keyword:         pool.Keyword,
		Reweighted:      reweighted,
	}), nil
}

func (uc *RetrievalUseCase) resolveMaxResults(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("max results %d is negative", requested))
	case requested == 0:
		return uc.cfg.MaxResults, nil
	case requested > uc.cfg.MaxResultsLimit:
		return uc.cfg.MaxResultsLimit, nil
	default:
		return requested, nil
	}
}

// persistContext is detached from the caller's deadline and bounded by
// PersistTimeout.
func (uc *RetrievalUseCase) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.PersistTimeout)
}

func (uc *RetrievalUseCase) store(ctx context.Context, pool *domain.RetrievalPool) error {
	ctx, cancel := uc.persistContext(ctx)
	defer cancel()
	return uc.cache.Store(ctx, pool)
}

func (uc *RetrievalUseCase) publish(ctx context.Context, operation string, resp *domain.RetrievalResponse) {
	ctx, cancel := uc.persistContext(ctx)
	defer cancel()

	event := domain.RetrievalAuditEvent{
		RetrievalID: resp.RetrievalID,
		Operation:   operation,
		NumResults:  resp.NumResults,
		Metadata:    resp.SearchMetadata,
		At:          uc.now(),
	}
	if err := uc.audit.PublishRetrieval(ctx, event); err != nil {
		slog.WarnContext(ctx, "retrieval_audit_publish_failed",
			"retrieval_id", resp.RetrievalID,
			"operation", operation,
			"error", err.Error(),
		)
	}
}

func (uc *RetrievalUseCase) finish(span trace.Span, operation string, started time.Time, resp *domain.RetrievalResponse, err error) {
	defer span.End()
	elapsed := time.Since(started)

	status := "ok"
	numResults := 0
	if err != nil {
		status = errorStatus(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else if resp != nil {
		numResults = resp.NumResults
		span.SetAttributes(
			attribute.Int("retrieval.num_results", resp.NumResults),
			attribute.Int("retrieval.total_candidates", resp.SearchMetadata.TotalCandidates),
		)
	}
	uc.observer.ObserveRetrieval(operation, status, numResults, elapsed)

	attrs := []any{
		"operation", operation,
		"status", status,
		"num_results", numResults,
		"duration_ms", elapsed.Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs,
			"retrieval_id", resp.RetrievalID,
			"semantic_status", resp.SearchMetadata.SemanticStatus,
			"keyword_status", resp.SearchMetadata.KeywordStatus,
		)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
		slog.Warn("retrieval", attrs...)
		return
	}
	slog.Info("retrieval", attrs...)
}

func errorStatus(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	case domain.IsKind(err, domain.ErrAllSourcesUnavailable):
		return "unavailable"
	case domain.IsKind(err, domain.ErrPoolNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrCacheConflict):
		return "conflict"
	default:
		return "error"
	}
}

type noopObserver struct{}

func (noopObserver) ObserveRetrieval(string, string, int, time.Duration) {}
func (noopObserver) ObserveSourceFailure(domain.SourceName)              {}
func (noopObserver) ObserveDegraded(domain.SourceName)                   {}
func (noopObserver) ObserveCandidates(domain.SourceName, int)            {}

type noopAudit struct{}

func (noopAudit) PublishRetrieval(context.Context, domain.RetrievalAuditEvent) error { return nil }
