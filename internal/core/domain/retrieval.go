package domain

import "time"

type SourceName string

const (
	SourceSemantic SourceName = "semantic"
	SourceKeyword  SourceName = "keyword"
)

const SourceStatusOK = "ok"

type Weights struct {
	Semantic float64 `json:"semantic_weight"`
	Keyword  float64 `json:"keyword_weight"`
}

// RetrievalRequest asks for a first-time retrieval. A nil weight is the
// complement of the other one; when both are nil the engine's configured
// defaults apply.
type RetrievalRequest struct {
	RetrievalID    string   `json:"retrieval_id,omitempty"`
	Question       string   `json:"question"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
	MaxResults     int      `json:"max_results"`
}

// Weights resolves the request weights against defaults.
func (r RetrievalRequest) Weights(defaults Weights) Weights {
	switch {
	case r.SemanticWeight != nil && r.KeywordWeight != nil:
		return Weights{Semantic: *r.SemanticWeight, Keyword: *r.KeywordWeight}
	case r.KeywordWeight != nil:
		return Weights{Semantic: 1 - *r.KeywordWeight, Keyword: *r.KeywordWeight}
	case r.SemanticWeight != nil:
		return Weights{Semantic: *r.SemanticWeight, Keyword: 1 - *r.SemanticWeight}
	default:
		return defaults
	}
}

// ReweightRequest re-scores a cached pool. SemanticWeight defaults to
// 1 - KeywordWeight when nil.
type ReweightRequest struct {
	RetrievalID    string   `json:"retrieval_id"`
	KeywordWeight  float64  `json:"keyword_weight"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

// SourceReport records how one source contributed to a retrieval.
type SourceReport struct {
	Query      string `json:"query"`
	Status     string `json:"status"`
	Candidates int    `json:"candidates"`
}

func (r SourceReport) Contributed() bool {
	return r.Status == SourceStatusOK
}

// RetrievalPool is the raw candidate set captured at first retrieval.
// It is never mutated once stored.
type RetrievalPool struct {
	RetrievalID   string       `json:"retrieval_id"`
	Question      string       `json:"question"`
	RawCandidates []Candidate  `json:"raw_candidates"`
	MaxResults    int          `json:"max_results"`
	Semantic      SourceReport `json:"semantic"`
	Keyword       SourceReport `json:"keyword"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (p *RetrievalPool) Clone() *RetrievalPool {
	if p == nil {
		return nil
	}
	out := *p
	out.RawCandidates = CloneCandidates(p.RawCandidates)
	return &out
}

type SearchMetadata struct {
	OriginalQuery      string  `json:"original_query"`
	UsedSemanticQuery  string  `json:"used_semantic_query"`
	UsedKeywordQuery   string  `json:"used_keyword_query"`
	SemanticWeight     float64 `json:"semantic_weight"`
	KeywordWeight      float64 `json:"keyword_weight"`
	TotalCandidates    int     `json:"total_candidates"`
	SemanticCandidates int     `json:"semantic_candidates"`
	KeywordCandidates  int     `json:"keyword_candidates"`
	SemanticStatus     string  `json:"semantic_status"`
	KeywordStatus      string  `json:"keyword_status"`
	Reweighted         bool    `json:"reweighted"`
}

type RetrievalResponse struct {
	RetrievalID      string           `json:"retrieval_id"`
	Question         string           `json:"question"`
	RelatedDocuments []FusedCandidate `json:"related_documents"`
	NumResults       int              `json:"num_results"`
	SearchMetadata   SearchMetadata   `json:"search_metadata"`
}

type RetrievalAuditEvent struct {
	RetrievalID string         `json:"retrieval_id"`
	Operation   string         `json:"operation"`
	NumResults  int            `json:"num_results"`
	Metadata    SearchMetadata `json:"metadata"`
	At          time.Time      `json:"at"`
}
