package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

// mergeCandidates collapses duplicate ids across both sources into one
// candidate carrying both raw scores. Output order is first appearance,
// semantic results first.
func mergeCandidates(semantic, keyword []domain.Candidate) []domain.Candidate {
	index := make(map[string]int, len(semantic)+len(keyword))
	out := make([]domain.Candidate, 0, len(semantic)+len(keyword))

	add := func(list []domain.Candidate) {
		for _, c := range list {
			pos, ok := index[c.ID]
			if !ok {
				index[c.ID] = len(out)
				out = append(out, c.Clone())
				continue
			}
			out[pos] = preferRicherCandidate(out[pos], c)
		}
	}
	add(semantic)
	add(keyword)

	return out
}

func preferRicherCandidate(current, other domain.Candidate) domain.Candidate {
	current.SemanticScore = maxScore(current.SemanticScore, other.SemanticScore)
	current.KeywordScore = maxScore(current.KeywordScore, other.KeywordScore)

	if current.ParentID == "" {
		current.ParentID = other.ParentID
	}
	if current.ChunkIndex == nil && other.ChunkIndex != nil {
		current.ChunkIndex = domain.IntPtr(*other.ChunkIndex)
		current.TotalChunks = domain.IntPtr(*other.TotalChunks)
	}
	if current.Text == "" {
		current.Text = other.Text
	}
	if current.SourceURL == "" {
		current.SourceURL = other.SourceURL
	}
	if current.Title == "" {
		current.Title = other.Title
	}
	if current.Date == "" {
		current.Date = other.Date
	}
	if current.DocumentType == "" {
		current.DocumentType = other.DocumentType
	}
	return current
}

func maxScore(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return domain.FloatPtr(*b)
	case b == nil || *a >= *b:
		return a
	default:
		return domain.FloatPtr(*b)
	}
}

type scoreRange struct {
	min, max float64
	seen     bool
}

func (r *scoreRange) observe(v *float64) {
	if v == nil {
		return
	}
	if !r.seen {
		r.min, r.max, r.seen = *v, *v, true
		return
	}
	r.min = math.Min(r.min, *v)
	r.max = math.Max(r.max, *v)
}

// normalize maps v into [0,1]. A degenerate range maps every present score
// to 1 and a missing score is always 0.
func (r scoreRange) normalize(v *float64) float64 {
	if v == nil {
		return 0
	}
	span := r.max - r.min
	if span <= 0 {
		return 1
	}
	return (*v - r.min) / span
}

func validateWeights(w domain.Weights) error {
	for _, v := range []float64{w.Semantic, w.Keyword} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("weights must be finite and non-negative: semantic=%v keyword=%v", w.Semantic, w.Keyword)
		}
	}
	return nil
}

// fuseCandidates scores a merged pool with per-source min-max normalisation
// and a weighted blend rescaled by the best blend. The result is sorted by
// compareFused and is a pure function of its inputs.
func fuseCandidates(pool []domain.Candidate, w domain.Weights) ([]domain.FusedCandidate, error) {
	if err := validateWeights(w); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fuse candidates", err)
	}
	if len(pool) == 0 {
		return []domain.FusedCandidate{}, nil
	}

	var semRange, kwRange scoreRange
	for i := range pool {
		semRange.observe(pool[i].SemanticScore)
		kwRange.observe(pool[i].KeywordScore)
	}

	out := make([]domain.FusedCandidate, len(pool))
	best := 0.0
	for i := range pool {
		c := pool[i].Clone()
		score := w.Semantic*semRange.normalize(c.SemanticScore) + w.Keyword*kwRange.normalize(c.KeywordScore)
		best = math.Max(best, score)
		out[i] = domain.FusedCandidate{Candidate: c, FusedScore: score, Excerpt: c.Text}
	}

	for i := range out {
		if best <= 0 {
			out[i].FusedScore = 0
			continue
		}
		out[i].FusedScore = out[i].FusedScore / best
	}

	sort.SliceStable(out, func(i, j int) bool {
		return compareFused(out[i], out[j]) < 0
	})
	return out, nil
}

// compareFused orders by fused score, then raw semantic, then raw keyword
// (absent below any present value), then id.
func compareFused(a, b domain.FusedCandidate) int {
	if a.FusedScore != b.FusedScore {
		if a.FusedScore > b.FusedScore {
			return -1
		}
		return 1
	}
	if c := compareRaw(a.SemanticScore, b.SemanticScore); c != 0 {
		return c
	}
	if c := compareRaw(a.KeywordScore, b.KeywordScore); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

func compareRaw(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	default:
		return 0
	}
}
