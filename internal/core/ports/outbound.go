package ports

import (
	"context"
	"time"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

// CandidateSource is a client of one external index (vector or lexical).
// Implementations set only their own score field on returned candidates.
type CandidateSource interface {
	Query(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}

// PoolCache persists raw candidate pools for later reweighting.
// Store is write-once per retrieval id.
type PoolCache interface {
	Store(ctx context.Context, pool *domain.RetrievalPool) error
	Load(ctx context.Context, retrievalID string) (*domain.RetrievalPool, error)
}

// Embedder builds query vectors for the semantic source.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MessageStore persists chat messages and their serialized retrieval.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error)
	SaveRetrieval(ctx context.Context, id string, grounded bool, resp *domain.RetrievalResponse) error
	ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}

// AuditPublisher emits retrieval audit events.
type AuditPublisher interface {
	PublishRetrieval(ctx context.Context, event domain.RetrievalAuditEvent) error
}

// RetrievalObserver records retrieval telemetry.
type RetrievalObserver interface {
	ObserveRetrieval(operation, status string, numResults int, duration time.Duration)
	ObserveSourceFailure(source domain.SourceName)
	ObserveDegraded(source domain.SourceName)
	ObserveCandidates(source domain.SourceName, count int)
}

// Chunker splits document text into ordered chunks.
type Chunker interface {
	Split(text string) []string
}

// BatchEmbedder builds document vectors, one per input text.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndexer writes chunks with their dense vectors.
type VectorIndexer interface {
	IndexCandidates(ctx context.Context, candidates []domain.Candidate, vectors [][]float32) error
}

// KeywordIndexer writes chunks to the lexical index.
type KeywordIndexer interface {
	IndexCandidates(ctx context.Context, candidates []domain.Candidate) error
}
