package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

func scenarioSources() (*fakeSource, *fakeSource) {
	semantic := &fakeSource{candidates: []domain.Candidate{
		withChunk(semanticCandidate("a", "d1", 0.9), 1, 3),
	}}
	keyword := &fakeSource{candidates: []domain.Candidate{
		{ID: "a", KeywordScore: domain.FloatPtr(0.4)},
		keywordCandidate("b", "d2", 0.8),
	}}
	return semantic, keyword
}

func TestRetrievePrefersCandidateConfirmedByBothSources(t *testing.T) {
	semantic, keyword := scenarioSources()
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), nil, nil, RetrievalConfig{})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{
		RetrievalID:    "m1",
		Question:       "fox",
		SemanticWeight: domain.FloatPtr(0.7),
		KeywordWeight:  domain.FloatPtr(0.3),
		MaxResults:     5,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got, want := ids(resp.RelatedDocuments), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	a := resp.RelatedDocuments[0]
	if a.SemanticScore == nil || a.KeywordScore == nil {
		t.Fatalf("expected merged candidate to carry both scores, got %+v", a.Candidate)
	}
	if a.FusedScore != 1 {
		t.Fatalf("expected top fused score 1, got %v", a.FusedScore)
	}
	if resp.NumResults != 2 || resp.SearchMetadata.TotalCandidates != 2 {
		t.Fatalf("unexpected counts: results=%d total=%d", resp.NumResults, resp.SearchMetadata.TotalCandidates)
	}
	meta := resp.SearchMetadata
	if meta.SemanticWeight != 0.7 || meta.KeywordWeight != 0.3 || meta.OriginalQuery != "fox" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.UsedSemanticQuery != "fox" || meta.UsedKeywordQuery != "fox" {
		t.Fatalf("expected both used queries, got %+v", meta)
	}
}

func TestRetrieveDegradesToSurvivingSource(t *testing.T) {
	semantic := &fakeSource{err: errors.New("qdrant down")}
	keyword := &fakeSource{candidates: []domain.Candidate{keywordCandidate("k1", "d1", 3), keywordCandidate("k2", "d2", 1)}}
	observer := &fakeObserver{}
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), observer, nil, RetrievalConfig{})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Question: "plugin update", SemanticWeight: domain.FloatPtr(0.5), KeywordWeight: domain.FloatPtr(0.5)})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if resp.RetrievalID == "" {
		t.Fatalf("expected generated retrieval id")
	}
	meta := resp.SearchMetadata
	if meta.UsedSemanticQuery != "" || meta.SemanticStatus == domain.SourceStatusOK {
		t.Fatalf("expected failed semantic source in metadata, got %+v", meta)
	}
	if meta.UsedKeywordQuery != "plugin update" || meta.KeywordStatus != domain.SourceStatusOK {
		t.Fatalf("expected keyword source in metadata, got %+v", meta)
	}
	if meta.TotalCandidates != 2 || meta.KeywordCandidates != 2 || meta.SemanticCandidates != 0 {
		t.Fatalf("unexpected degraded counts: %+v", meta)
	}
	if len(observer.degraded) != 1 || observer.degraded[0] != domain.SourceSemantic {
		t.Fatalf("expected degraded semantic observation, got %v", observer.degraded)
	}
}

func TestRetrieveEmptyCorpusIsNotAnError(t *testing.T) {
	uc := NewRetrievalUseCase(&fakeSource{}, &fakeSource{}, newFakePoolCache(), nil, nil, RetrievalConfig{})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m-empty", Question: "anything", SemanticWeight: domain.FloatPtr(1)})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if resp.NumResults != 0 || resp.RelatedDocuments == nil {
		t.Fatalf("expected empty non-nil documents, got %+v", resp.RelatedDocuments)
	}
	if resp.SearchMetadata.SemanticStatus != domain.SourceStatusOK || resp.SearchMetadata.KeywordStatus != domain.SourceStatusOK {
		t.Fatalf("expected healthy sources, got %+v", resp.SearchMetadata)
	}
}

func TestRetrieveAllSourcesUnavailable(t *testing.T) {
	cache := newFakePoolCache()
	observer := &fakeObserver{}
	uc := NewRetrievalUseCase(
		&fakeSource{err: errors.New("vector timeout")},
		&fakeSource{err: errors.New("lexical timeout")},
		cache, observer, nil, RetrievalConfig{},
	)

	_, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox", SemanticWeight: domain.FloatPtr(1)})
	if !domain.IsKind(err, domain.ErrAllSourcesUnavailable) {
		t.Fatalf("expected all sources unavailable, got %v", err)
	}
	if _, loadErr := cache.Load(context.Background(), "m1"); !domain.IsKind(loadErr, domain.ErrPoolNotFound) {
		t.Fatalf("expected no pool to be stored, got %v", loadErr)
	}
	if len(observer.operations) != 1 || observer.operations[0] != "retrieve:unavailable" {
		t.Fatalf("unexpected observations: %v", observer.operations)
	}
}

func TestRetrieveRejectsDuplicateRetrievalID(t *testing.T) {
	semantic, keyword := scenarioSources()
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), nil, nil, RetrievalConfig{})
	req := domain.RetrievalRequest{RetrievalID: "m1", Question: "fox", SemanticWeight: domain.FloatPtr(1)}

	if _, err := uc.Retrieve(context.Background(), req); err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	if _, err := uc.Retrieve(context.Background(), req); !domain.IsKind(err, domain.ErrCacheConflict) {
		t.Fatalf("expected cache conflict, got %v", err)
	}
}

func TestRetrieveValidatesInput(t *testing.T) {
	uc := NewRetrievalUseCase(&fakeSource{}, &fakeSource{}, newFakePoolCache(), nil, nil, RetrievalConfig{})

	cases := []domain.RetrievalRequest{
		{Question: "   ", SemanticWeight: domain.FloatPtr(1)},
		{Question: "fox", SemanticWeight: domain.FloatPtr(-1)},
		{Question: "fox", SemanticWeight: domain.FloatPtr(1), MaxResults: -2},
	}
	for _, req := range cases {
		if _, err := uc.Retrieve(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("request %+v: expected invalid input, got %v", req, err)
		}
	}
}

func TestRetrieveCapsMaxResults(t *testing.T) {
	candidates := make([]domain.Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		candidates = append(candidates, semanticCandidate(id, "parent-"+id, float64(i)))
	}
	uc := NewRetrievalUseCase(&fakeSource{candidates: candidates}, &fakeSource{}, newFakePoolCache(), nil, nil,
		RetrievalConfig{MaxResults: 3, MaxResultsLimit: 4})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{Question: "fox", SemanticWeight: domain.FloatPtr(1)})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if resp.NumResults != 3 {
		t.Fatalf("expected default max results 3, got %d", resp.NumResults)
	}

	resp, err = uc.Retrieve(context.Background(), domain.RetrievalRequest{Question: "fox", SemanticWeight: domain.FloatPtr(1), MaxResults: 100})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if resp.NumResults != 4 {
		t.Fatalf("expected capped max results 4, got %d", resp.NumResults)
	}
}

func TestReweightNeverQueriesSources(t *testing.T) {
	semantic, keyword := scenarioSources()
	cache := newFakePoolCache()
	first := NewRetrievalUseCase(semantic, keyword, cache, nil, nil, RetrievalConfig{})
	if _, err := first.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox", SemanticWeight: domain.FloatPtr(0.7), KeywordWeight: domain.FloatPtr(0.3)}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	failSemantic := &failOnCallSource{}
	failKeyword := &failOnCallSource{}
	audit := &fakeAudit{}
	uc := NewRetrievalUseCase(failSemantic, failKeyword, cache, nil, audit, RetrievalConfig{})

	resp, err := uc.Reweight(context.Background(), domain.ReweightRequest{RetrievalID: "m1", KeywordWeight: 1})
	if err != nil {
		t.Fatalf("reweight: %v", err)
	}
	if failSemantic.calls.Load() != 0 || failKeyword.calls.Load() != 0 {
		t.Fatalf("reweight queried sources: semantic=%d keyword=%d", failSemantic.calls.Load(), failKeyword.calls.Load())
	}
	if got, want := ids(resp.RelatedDocuments), []string{"b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected keyword-only ranking %v, got %v", want, got)
	}
	meta := resp.SearchMetadata
	if !meta.Reweighted || meta.SemanticWeight != 0 || meta.KeywordWeight != 1 {
		t.Fatalf("unexpected reweight metadata: %+v", meta)
	}
	if meta.UsedKeywordQuery != "fox" || meta.TotalCandidates != 2 {
		t.Fatalf("expected original audit facts to be kept, got %+v", meta)
	}
	if len(audit.events) != 1 || audit.events[0].Operation != operationReweight {
		t.Fatalf("expected one reweight audit event, got %+v", audit.events)
	}
}

func TestReweightUsesSuppliedSemanticWeight(t *testing.T) {
	semantic, keyword := scenarioSources()
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), nil, nil, RetrievalConfig{})
	if _, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox", SemanticWeight: domain.FloatPtr(1)}); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	resp, err := uc.Reweight(context.Background(), domain.ReweightRequest{
		RetrievalID:    "m1",
		KeywordWeight:  2,
		SemanticWeight: domain.FloatPtr(0.5),
	})
	if err != nil {
		t.Fatalf("reweight: %v", err)
	}
	if resp.SearchMetadata.SemanticWeight != 0.5 || resp.SearchMetadata.KeywordWeight != 2 {
		t.Fatalf("unexpected weights: %+v", resp.SearchMetadata)
	}
}

func TestReweightRejectsOutOfRangeKeywordWeight(t *testing.T) {
	uc := NewRetrievalUseCase(&fakeSource{}, &fakeSource{}, newFakePoolCache(), nil, nil, RetrievalConfig{})

	_, err := uc.Reweight(context.Background(), domain.ReweightRequest{RetrievalID: "m1", KeywordWeight: 1.5})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReweightUnknownRetrievalID(t *testing.T) {
	uc := NewRetrievalUseCase(&failOnCallSource{}, &failOnCallSource{}, newFakePoolCache(), nil, nil, RetrievalConfig{})

	_, err := uc.Reweight(context.Background(), domain.ReweightRequest{RetrievalID: "never-written", KeywordWeight: 0.5})
	if !domain.IsKind(err, domain.ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestRetrieveAuditFailureDoesNotFailRequest(t *testing.T) {
	semantic, keyword := scenarioSources()
	audit := &fakeAudit{err: errors.New("nats down")}
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), nil, audit, RetrievalConfig{})
	uc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox", SemanticWeight: domain.FloatPtr(1)})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("expected one audit event, got %d", len(audit.events))
	}
	event := audit.events[0]
	if event.RetrievalID != resp.RetrievalID || event.Operation != operationRetrieve || !event.At.Equal(uc.now()) {
		t.Fatalf("unexpected audit event: %+v", event)
	}
}

func TestRetrieveStoresDegradedPoolAfterCallerDeadline(t *testing.T) {
	semantic := &fakeSource{candidates: []domain.Candidate{semanticCandidate("a", "d1", 0.9)}}
	cache := contextPoolCache{fakePoolCache: newFakePoolCache()}
	audit := &contextAudit{}
	uc := NewRetrievalUseCase(semantic, deadlineSource{}, cache, nil, audit, RetrievalConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := uc.Retrieve(ctx, domain.RetrievalRequest{RetrievalID: "m1", Question: "fox"})
	if err != nil {
		t.Fatalf("expected degraded success after deadline, got %v", err)
	}
	if got := ids(resp.RelatedDocuments); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected semantic result only, got %v", got)
	}
	if resp.SearchMetadata.KeywordStatus == domain.SourceStatusOK {
		t.Fatalf("expected keyword source to be reported as failed, got %+v", resp.SearchMetadata)
	}
	if _, err := cache.Load(context.Background(), "m1"); err != nil {
		t.Fatalf("expected degraded pool to be stored, got %v", err)
	}
	if len(audit.ctxErr) != 1 || audit.ctxErr[0] != nil {
		t.Fatalf("expected audit publish on a live context, got %v", audit.ctxErr)
	}
}

func TestRetrieveDropsNonFiniteScores(t *testing.T) {
	semantic := &fakeSource{candidates: []domain.Candidate{
		semanticCandidate("a", "d1", math.Inf(1)),
		semanticCandidate("b", "d2", 0.5),
		semanticCandidate("c", "d3", 0.9),
	}}
	uc := NewRetrievalUseCase(semantic, &fakeSource{}, newFakePoolCache(), nil, nil, RetrievalConfig{})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got, want := ids(resp.RelatedDocuments), []string{"c", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, doc := range resp.RelatedDocuments {
		if math.IsNaN(doc.FusedScore) || doc.FusedScore < 0 || doc.FusedScore > 1 {
			t.Fatalf("fused score of %s outside [0,1]: %v", doc.ID, doc.FusedScore)
		}
	}
	if _, err := json.Marshal(resp); err != nil {
		t.Fatalf("marshal response: %v", err)
	}
}

func TestRetrieveAppliesConfiguredDefaultWeights(t *testing.T) {
	semantic, keyword := scenarioSources()
	uc := NewRetrievalUseCase(semantic, keyword, newFakePoolCache(), nil, nil,
		RetrievalConfig{SemanticWeight: 0.6, KeywordWeight: 0.4})

	resp, err := uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m1", Question: "fox"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if meta := resp.SearchMetadata; meta.SemanticWeight != 0.6 || meta.KeywordWeight != 0.4 {
		t.Fatalf("expected configured weights 0.6/0.4, got %v/%v", meta.SemanticWeight, meta.KeywordWeight)
	}

	resp, err = uc.Retrieve(context.Background(), domain.RetrievalRequest{RetrievalID: "m2", Question: "fox", KeywordWeight: domain.FloatPtr(0.25)})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if meta := resp.SearchMetadata; meta.SemanticWeight != 0.75 || meta.KeywordWeight != 0.25 {
		t.Fatalf("expected complement weights 0.75/0.25, got %v/%v", meta.SemanticWeight, meta.KeywordWeight)
	}

	resp, err = uc.Retrieve(context.Background(), domain.RetrievalRequest{
		RetrievalID:    "m3",
		Question:       "fox",
		SemanticWeight: domain.FloatPtr(0),
		KeywordWeight:  domain.FloatPtr(0),
	})
	if err != nil {
		t.Fatalf("retrieve with zero weights: %v", err)
	}
	if meta := resp.SearchMetadata; meta.SemanticWeight != 0 || meta.KeywordWeight != 0 {
		t.Fatalf("expected explicit zero weights to be kept, got %v/%v", meta.SemanticWeight, meta.KeywordWeight)
	}
}
