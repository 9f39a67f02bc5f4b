package resilience

import (
	"context"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

// Source retries and circuit-breaks a candidate source. Retries stay inside
// the deadline the dispatcher gives the call.
type Source struct {
	next       ports.CandidateSource
	exec       *Executor
	operation  string
	classifier ErrorClassifier
}

func NewSource(next ports.CandidateSource, exec *Executor, operation string, classifier ErrorClassifier) *Source {
	if classifier == nil {
		classifier = ClassifyHTTPError
	}
	return &Source{
		next:       next,
		exec:       exec,
		operation:  operation,
		classifier: classifier,
	}
}

func (s *Source) Query(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	out, err := ExecuteValue(ctx, s.exec, s.operation, func(ctx context.Context) ([]domain.Candidate, error) {
		return s.next.Query(ctx, query, limit)
	}, s.classifier)
	if err != nil {
		return nil, WrapTemporaryIfNeeded(s.operation, err, s.classifier)
	}
	return out, nil
}
