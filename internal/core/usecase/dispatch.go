package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

const (
	sourceStatusTimeout       = "timeout"
	sourceStatusCanceled      = "canceled"
	sourceStatusNotConfigured = "not_configured"
)

var errSourceNotConfigured = errors.New("source not configured")

type sourceResult struct {
	name       domain.SourceName
	query      string
	candidates []domain.Candidate
	dropped    int
	err        error
}

func (r sourceResult) report() domain.SourceReport {
	return domain.SourceReport{
		Query:      r.query,
		Status:     sourceStatus(r.err),
		Candidates: len(r.candidates),
	}
}

type dispatchResult struct {
	semantic sourceResult
	keyword  sourceResult
}

func (r dispatchResult) allFailed() bool {
	return r.semantic.err != nil && r.keyword.err != nil
}

type dispatcher struct {
	semantic ports.CandidateSource
	keyword  ports.CandidateSource
	cfg      RetrievalConfig
	tracer   trace.Tracer
}

// dispatch queries both sources concurrently. A failing source never cancels
// the other one; each result is either complete or carries an error.
func (d *dispatcher) dispatch(ctx context.Context, question string) dispatchResult {
	if d.cfg.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.TotalTimeout)
		defer cancel()
	}

	var out dispatchResult
	var g errgroup.Group

	g.Go(func() error {
		out.semantic = d.callSource(ctx, domain.SourceSemantic, d.semantic, semanticQuery(question), d.cfg.SemanticTimeout)
		return nil
	})
	g.Go(func() error {
		out.keyword = d.callSource(ctx, domain.SourceKeyword, d.keyword, keywordQuery(question), d.cfg.KeywordTimeout)
		return nil
	})
	_ = g.Wait()

	return out
}

func (d *dispatcher) callSource(
	ctx context.Context,
	name domain.SourceName,
	source ports.CandidateSource,
	query string,
	timeout time.Duration,
) sourceResult {
	res := sourceResult{name: name, query: query}
	if source == nil {
		res.err = domain.WrapError(domain.ErrSourceUnavailable, string(name), errSourceNotConfigured)
		return res
	}

	ctx, span := d.tracer.Start(ctx, "retrieval.source."+string(name),
		trace.WithAttributes(
			attribute.String("retrieval.source", string(name)),
			attribute.String("retrieval.query", query),
		),
	)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		candidates []domain.Candidate
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		candidates, err := source.Query(ctx, query, d.cfg.CandidateLimit)
		done <- outcome{candidates: candidates, err: err}
	}()

	var raw []domain.Candidate
	select {
	case o := <-done:
		raw, res.err = o.candidates, o.err
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		res.err = domain.WrapError(domain.ErrSourceUnavailable, string(name), res.err)
		span.RecordError(res.err)
		span.SetStatus(codes.Error, "source failed")
		slog.WarnContext(ctx, "retrieval_source_failed",
			"source", string(name),
			"query", query,
			"error", res.err.Error(),
		)
		return res
	}

	res.candidates, res.dropped = sanitizeCandidates(name, raw)
	span.SetAttributes(
		attribute.Int("retrieval.candidates", len(res.candidates)),
		attribute.Int("retrieval.dropped", res.dropped),
	)
	return res
}

// sanitizeCandidates keeps only the score owned by the source and drops
// candidates that fail validation.
func sanitizeCandidates(name domain.SourceName, raw []domain.Candidate) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, 0, len(raw))
	dropped := 0
	for _, c := range raw {
		c = c.Clone()
		switch name {
		case domain.SourceSemantic:
			c.KeywordScore = nil
		case domain.SourceKeyword:
			c.SemanticScore = nil
		}
		if err := c.Validate(); err != nil {
			dropped++
			slog.Warn("retrieval_candidate_dropped",
				"source", string(name),
				"candidate_id", c.ID,
				"error", err.Error(),
			)
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}

func sourceStatus(err error) string {
	switch {
	case err == nil:
		return domain.SourceStatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return sourceStatusTimeout
	case errors.Is(err, context.Canceled):
		return sourceStatusCanceled
	case errors.Is(err, errSourceNotConfigured):
		return sourceStatusNotConfigured
	default:
		return "failed: " + err.Error()
	}
}

func semanticQuery(question string) string {
	return strings.TrimSpace(question)
}

// keywordQuery lower-cases the question and removes stop words so the
// lexical index matches on content terms only.
func keywordQuery(question string) string {
	tokens := splitWordsLower(question)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, stop := stopWords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(question))
	}
	return strings.Join(kept, " ")
}
