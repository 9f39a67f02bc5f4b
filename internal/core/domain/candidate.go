package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Candidate is one retrievable chunk returned by a source index.
type Candidate struct {
	ID            string   `json:"id"`
	ParentID      string   `json:"parent_id"`
	ChunkIndex    *int     `json:"chunk_index,omitempty"`
	TotalChunks   *int     `json:"total_chunks,omitempty"`
	Text          string   `json:"text"`
	SourceURL     string   `json:"source_url,omitempty"`
	Title         string   `json:"title,omitempty"`
	Date          string   `json:"date,omitempty"`
	DocumentType  string   `json:"document_type,omitempty"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	KeywordScore  *float64 `json:"keyword_score,omitempty"`
}

// GroupKey is the parent document the candidate is reassembled under.
func (c Candidate) GroupKey() string {
	if c.ParentID != "" {
		return c.ParentID
	}
	return c.ID
}

func (c Candidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("candidate id is empty")
	}
	if c.SemanticScore == nil && c.KeywordScore == nil {
		return fmt.Errorf("candidate %s has no score", c.ID)
	}
	for _, score := range []*float64{c.SemanticScore, c.KeywordScore} {
		if score != nil && (math.IsNaN(*score) || math.IsInf(*score, 0)) {
			return fmt.Errorf("candidate %s has non-finite score %v", c.ID, *score)
		}
	}
	if (c.ChunkIndex == nil) != (c.TotalChunks == nil) {
		return fmt.Errorf("candidate %s has partial chunk position", c.ID)
	}
	if c.ChunkIndex != nil && (*c.ChunkIndex < 0 || *c.TotalChunks <= *c.ChunkIndex) {
		return fmt.Errorf("candidate %s chunk %d out of range %d", c.ID, *c.ChunkIndex, *c.TotalChunks)
	}
	return nil
}

// Clone returns a deep copy so pools can hand out snapshots.
func (c Candidate) Clone() Candidate {
	out := c
	out.ChunkIndex = cloneInt(c.ChunkIndex)
	out.TotalChunks = cloneInt(c.TotalChunks)
	out.SemanticScore = cloneFloat(c.SemanticScore)
	out.KeywordScore = cloneFloat(c.KeywordScore)
	return out
}

func CloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// FusedCandidate is a Candidate with its blended relevance and display excerpt.
type FusedCandidate struct {
	Candidate
	FusedScore float64 `json:"fused_score"`
	Excerpt    string  `json:"excerpt"`
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
