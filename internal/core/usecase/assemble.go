package usecase

import (
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

type assembleInput struct {
	RetrievalID     string
	Question        string
	Documents       []domain.FusedCandidate
	Weights         domain.Weights
	TotalCandidates int
	Semantic        domain.SourceReport
	Keyword         domain.SourceReport
	Reweighted      bool
}

// assembleResponse builds the response and its audit metadata. A source that
// did not contribute reports an empty used query and its failure status.
func assembleResponse(in assembleInput) *domain.RetrievalResponse {
	docs := in.Documents
	if docs == nil {
		docs = []domain.FusedCandidate{}
	}

	meta := domain.SearchMetadata{
		OriginalQuery:      in.Question,
		SemanticWeight:     in.Weights.Semantic,
		KeywordWeight:      in.Weights.Keyword,
		TotalCandidates:    in.TotalCandidates,
		SemanticCandidates: in.Semantic.Candidates,
		KeywordCandidates:  in.Keyword.Candidates,
		SemanticStatus:     in.Semantic.Status,
		KeywordStatus:      in.Keyword.Status,
		Reweighted:         in.Reweighted,
	}
	if in.Semantic.Contributed() {
		meta.UsedSemanticQuery = in.Semantic.Query
	}
	if in.Keyword.Contributed() {
		meta.UsedKeywordQuery = in.Keyword.Query
	}

	return &domain.RetrievalResponse{
		RetrievalID:      in.RetrievalID,
		Question:         in.Question,
		RelatedDocuments: docs,
		NumResults:       len(docs),
		SearchMetadata:   meta,
	}
}
