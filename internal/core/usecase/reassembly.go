package usecase

import (
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

type chunkGroup struct {
	anchor  domain.FusedCandidate
	byIndex map[int]domain.FusedCandidate
}

// reassemble collapses fused candidates into one entry per parent document.
// Input must already be in compareFused order, so the first member seen for a
// parent is its anchor and groups come out ordered by anchor.
func reassemble(fused []domain.FusedCandidate, maxResults, maxOverlap int) []domain.FusedCandidate {
	groups := make(map[string]*chunkGroup, len(fused))
	order := make([]string, 0, len(fused))

	for _, c := range fused {
		key := c.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &chunkGroup{anchor: c, byIndex: make(map[int]domain.FusedCandidate)}
			groups[key] = g
			order = append(order, key)
		}
		if c.ChunkIndex == nil {
			continue
		}
		if _, taken := g.byIndex[*c.ChunkIndex]; !taken {
			g.byIndex[*c.ChunkIndex] = c
		}
	}

	out := make([]domain.FusedCandidate, 0, len(order))
	for _, key := range order {
		g := groups[key]
		entry := g.anchor
		entry.Excerpt = g.excerpt(maxOverlap)
		out = append(out, entry)
	}

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// excerpt joins the anchor with its direct neighbours when retrieval returned
// them. Chunks are never fetched separately.
func (g *chunkGroup) excerpt(maxOverlap int) string {
	text := g.anchor.Text
	if g.anchor.ChunkIndex == nil {
		return text
	}
	idx := *g.anchor.ChunkIndex
	if prev, ok := g.byIndex[idx-1]; ok {
		text = joinOverlapping(prev.Text, text, maxOverlap)
	}
	if next, ok := g.byIndex[idx+1]; ok {
		text = joinOverlapping(text, next.Text, maxOverlap)
	}
	return text
}
