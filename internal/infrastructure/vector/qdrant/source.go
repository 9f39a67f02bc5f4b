package qdrant

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/textclean"
)

// SemanticSource embeds the query and searches the dense vector.
type SemanticSource struct {
	client   *Client
	embedder ports.Embedder
}

func NewSemanticSource(client *Client, embedder ports.Embedder) *SemanticSource {
	return &SemanticSource{client: client, embedder: embedder}
}

func (s *SemanticSource) Query(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	points, err := s.client.SearchDense(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		c := candidateFromPayload(p)
		c.SemanticScore = domain.FloatPtr(p.Score)
		out = append(out, c)
	}
	return out, nil
}

// LexicalSource scores chunks with the BM25-style sparse vector.
type LexicalSource struct {
	client *Client
}

func NewLexicalSource(client *Client) *LexicalSource {
	return &LexicalSource{client: client}
}

func (s *LexicalSource) Query(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	points, err := s.client.SearchSparse(ctx, encodeSparseQuery(query), limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		c := candidateFromPayload(p)
		c.KeywordScore = domain.FloatPtr(p.Score)
		out = append(out, c)
	}
	return out, nil
}

func candidateFromPayload(p scoredPoint) domain.Candidate {
	c := domain.Candidate{
		ID:           getStringPayload(p.Payload, "candidate_id"),
		ParentID:     getStringPayload(p.Payload, "parent_id"),
		Text:         textclean.Plain(getStringPayload(p.Payload, "text")),
		SourceURL:    getStringPayload(p.Payload, "url"),
		Title:        textclean.Plain(getStringPayload(p.Payload, "title")),
		Date:         getStringPayload(p.Payload, "date"),
		DocumentType: getStringPayload(p.Payload, "document_type"),
	}
	if c.ID == "" && p.ID != nil {
		c.ID = fmt.Sprintf("%v", p.ID)
	}
	if c.ParentID == "" {
		c.ParentID = getStringPayload(p.Payload, "doc_id")
	}

	index, okIndex := getIntPayload(p.Payload, "chunk_index")
	total, okTotal := getIntPayload(p.Payload, "total_chunks")
	if okIndex && okTotal {
		c.ChunkIndex = domain.IntPtr(index)
		c.TotalChunks = domain.IntPtr(total)
	}
	return c
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) (int, bool) {
	switch v := payload[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
