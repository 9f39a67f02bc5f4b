package qdrant

import (
	"cmp"
	"hash/fnv"
	"slices"
	"strings"
	"unicode"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/textclean"
)

// sparseVector is the Qdrant wire form of a sparse vector. Indices are
// strictly increasing.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	// bm25K1 saturates repeated terms: weight = tf*(k1+1)/(tf+k1).
	bm25K1         = 1.2
	titleBoost     = 1.5
	maxSparseTerms = 256
)

// encodeSparseDocument builds the lexical vector stored with a chunk. Title
// terms count titleBoost times. Collection-level IDF is applied by Qdrant
// through the "idf" modifier on the sparse vector.
func encodeSparseDocument(text, title string) sparseVector {
	tf := make(termCounts, 64)
	tf.add(tokenize(textclean.Plain(text)), 1)
	tf.add(tokenize(textclean.Plain(title)), titleBoost)
	return tf.vector()
}

func encodeSparseQuery(query string) sparseVector {
	tf := make(termCounts, 16)
	tf.add(tokenize(query), 1)
	return tf.vector()
}

type termCounts map[uint32]float64

func (tf termCounts) add(tokens []string, weight float64) {
	for _, token := range tokens {
		tf[termIndex(token)] += weight
	}
}

// vector keeps the maxSparseTerms heaviest terms, ties broken by index.
func (tf termCounts) vector() sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}

	type term struct {
		index  uint32
		weight float64
	}
	terms := make([]term, 0, len(tf))
	for idx, count := range tf {
		terms = append(terms, term{index: idx, weight: count * (bm25K1 + 1) / (count + bm25K1)})
	}
	if len(terms) > maxSparseTerms {
		slices.SortFunc(terms, func(a, b term) int {
			if c := cmp.Compare(b.weight, a.weight); c != 0 {
				return c
			}
			return cmp.Compare(a.index, b.index)
		})
		terms = terms[:maxSparseTerms]
	}
	slices.SortFunc(terms, func(a, b term) int { return cmp.Compare(a.index, b.index) })

	out := sparseVector{
		Indices: make([]uint32, len(terms)),
		Values:  make([]float32, len(terms)),
	}
	for i, t := range terms {
		out.Indices[i] = t.index
		out.Values[i] = float32(t.weight)
	}
	return out
}

// termIndex hashes a token into the sparse dimension space. Zero is
// reserved.
func termIndex(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenize lower-cases s and splits it on anything that is not a letter or
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
