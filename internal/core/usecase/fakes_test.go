package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

type fakeSource struct {
	candidates []domain.Candidate
	err        error
	calls      atomic.Int32
	lastQuery  atomic.Value
}

func (f *fakeSource) Query(_ context.Context, query string, _ int) ([]domain.Candidate, error) {
	f.calls.Add(1)
	f.lastQuery.Store(query)
	if f.err != nil {
		return nil, f.err
	}
	return domain.CloneCandidates(f.candidates), nil
}

// blockingSource ignores its context and only returns once released.
type blockingSource struct {
	release chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{})}
}

func (b *blockingSource) Query(context.Context, string, int) ([]domain.Candidate, error) {
	<-b.release
	return nil, errors.New("released")
}

type failOnCallSource struct {
	calls atomic.Int32
}

func (f *failOnCallSource) Query(context.Context, string, int) ([]domain.Candidate, error) {
	f.calls.Add(1)
	return nil, errors.New("source must not be queried")
}

type fakePoolCache struct {
	mu    sync.Mutex
	pools map[string]*domain.RetrievalPool
}

func newFakePoolCache() *fakePoolCache {
	return &fakePoolCache{pools: make(map[string]*domain.RetrievalPool)}
}

func (f *fakePoolCache) Store(_ context.Context, pool *domain.RetrievalPool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pools[pool.RetrievalID]; ok {
		return domain.WrapError(domain.ErrCacheConflict, "store pool", errors.New(pool.RetrievalID))
	}
	f.pools[pool.RetrievalID] = pool.Clone()
	return nil
}

func (f *fakePoolCache) Load(_ context.Context, id string) (*domain.RetrievalPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, ok := f.pools[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPoolNotFound, "load pool", errors.New(id))
	}
	return pool.Clone(), nil
}

type fakeObserver struct {
	mu         sync.Mutex
	operations []string
	failures   []domain.SourceName
	degraded   []domain.SourceName
}

func (f *fakeObserver) ObserveRetrieval(operation, status string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations = append(f.operations, operation+":"+status)
}

func (f *fakeObserver) ObserveSourceFailure(source domain.SourceName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, source)
}

func (f *fakeObserver) ObserveDegraded(source domain.SourceName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, source)
}

func (f *fakeObserver) ObserveCandidates(domain.SourceName, int) {}

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.RetrievalAuditEvent
	err    error
}

func (f *fakeAudit) PublishRetrieval(_ context.Context, event domain.RetrievalAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeMessageStore struct {
	messages map[string]domain.ChatMessage
	saves    int
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]domain.ChatMessage)}
}

func (f *fakeMessageStore) CreateMessage(_ context.Context, msg *domain.ChatMessage) error {
	f.messages[msg.ID] = *msg
	return nil
}

func (f *fakeMessageStore) GetMessage(_ context.Context, id string) (*domain.ChatMessage, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrMessageNotFound, "get message", errors.New(id))
	}
	return &msg, nil
}

func (f *fakeMessageStore) SaveRetrieval(_ context.Context, id string, grounded bool, resp *domain.RetrievalResponse) error {
	f.saves++
	msg, ok := f.messages[id]
	if !ok {
		return domain.WrapError(domain.ErrMessageNotFound, "save retrieval", errors.New(id))
	}
	msg.Grounded = grounded
	msg.Retrieval = resp
	f.messages[id] = msg
	return nil
}

func (f *fakeMessageStore) ListSessionMessages(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0)
	for _, msg := range f.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func semanticCandidate(id, parent string, score float64) domain.Candidate {
	return domain.Candidate{ID: id, ParentID: parent, Text: "text " + id, SemanticScore: domain.FloatPtr(score)}
}

func keywordCandidate(id, parent string, score float64) domain.Candidate {
	return domain.Candidate{ID: id, ParentID: parent, Text: "text " + id, KeywordScore: domain.FloatPtr(score)}
}

func withChunk(c domain.Candidate, index, total int) domain.Candidate {
	c.ChunkIndex = domain.IntPtr(index)
	c.TotalChunks = domain.IntPtr(total)
	return c
}

func ids(docs []domain.FusedCandidate) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

// deadlineSource blocks until its context is done.
type deadlineSource struct{}

func (deadlineSource) Query(ctx context.Context, _ string, _ int) ([]domain.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// contextPoolCache fails once the context is done, as network-backed caches do.
type contextPoolCache struct {
	*fakePoolCache
}

func (c contextPoolCache) Store(ctx context.Context, pool *domain.RetrievalPool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakePoolCache.Store(ctx, pool)
}

type contextAudit struct {
	mu     sync.Mutex
	ctxErr []error
}

func (a *contextAudit) PublishRetrieval(ctx context.Context, _ domain.RetrievalAuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctxErr = append(a.ctxErr, ctx.Err())
	return ctx.Err()
}
