package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/resilience"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	failures []error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func testEvent() domain.RetrievalAuditEvent {
	return domain.RetrievalAuditEvent{
		RetrievalID: "m-1",
		Operation:   "reweight",
		NumResults:  2,
		Metadata:    domain.SearchMetadata{OriginalQuery: "reset password", KeywordWeight: 1, Reweighted: true},
		At:          time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestPublishRetrievalEncodesEventAsJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := &AuditPublisher{pub: pub, subject: "audit"}

	if err := p.PublishRetrieval(context.Background(), testEvent()); err != nil {
		t.Fatalf("PublishRetrieval() error = %v", err)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "audit" {
		t.Fatalf("unexpected subjects %v", pub.subjects)
	}
	var got domain.RetrievalAuditEvent
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.RetrievalID != "m-1" || got.Operation != "reweight" || !got.Metadata.Reweighted {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestPublishRetrievalRetriesDisconnects(t *testing.T) {
	pub := &fakePublisher{failures: []error{nats.ErrDisconnected}}
	p := &AuditPublisher{
		pub:     pub,
		subject: "audit",
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
			RetryMultiplier:     2,
		}),
	}

	if err := p.PublishRetrieval(context.Background(), testEvent()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(pub.payloads) != 1 {
		t.Fatalf("expected one delivered event, got %d", len(pub.payloads))
	}
}

func TestPublishRetrievalMarksTransientFailuresTemporary(t *testing.T) {
	pub := &fakePublisher{failures: []error{nats.ErrNoServers}}
	p := &AuditPublisher{pub: pub, subject: "audit"}

	err := p.PublishRetrieval(context.Background(), testEvent())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
		record    bool
	}{
		{err: context.Canceled},
		{err: fmt.Errorf("publish: %w", nats.ErrTimeout), retryable: true, record: true},
		{err: nats.ErrConnectionClosed, retryable: true, record: true},
		{err: errors.New("nats: invalid subject"), record: true},
	}
	for _, tt := range tests {
		got := classifyNATSError(tt.err)
		if got.Retryable != tt.retryable || got.RecordFailure != tt.record {
			t.Fatalf("classifyNATSError(%v) = %+v", tt.err, got)
		}
	}
}
