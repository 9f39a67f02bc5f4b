// Package bleve is an embedded BM25 lexical source over Bleve.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/resilience"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/textclean"
)

const titleBoost = 1.5

var errIndexClosed = errors.New("lexical index is closed")

type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// Open opens the index at path, creating it when missing. An empty path
// builds an in-memory index.
func Open(path string) (*Index, error) {
	indexMapping := newIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lexical index dir: %w", err)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	return &Index{index: idx}, nil
}

func newIndexMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	textField.Store = true

	exactField := bleve.NewTextFieldMapping()
	exactField.Analyzer = keyword.Name
	exactField.Store = true

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.Store = true

	numberField := bleve.NewNumericFieldMapping()
	numberField.Index = false
	numberField.Store = true

	chunk := bleve.NewDocumentMapping()
	chunk.AddFieldMappingsAt("text", textField)
	chunk.AddFieldMappingsAt("title", textField)
	chunk.AddFieldMappingsAt("parent_id", exactField)
	chunk.AddFieldMappingsAt("document_type", exactField)
	chunk.AddFieldMappingsAt("url", storedOnly)
	chunk.AddFieldMappingsAt("date", storedOnly)
	chunk.AddFieldMappingsAt("chunk_index", numberField)
	chunk.AddFieldMappingsAt("total_chunks", numberField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = chunk
	indexMapping.DefaultAnalyzer = en.AnalyzerName
	return indexMapping
}

// IndexCandidates adds or replaces chunks keyed by candidate id.
func (ix *Index) IndexCandidates(ctx context.Context, candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return errIndexClosed
	}

	batch := ix.index.NewBatch()
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]any{
			"text":          textclean.Plain(c.Text),
			"title":         textclean.Plain(c.Title),
			"parent_id":     c.GroupKey(),
			"document_type": c.DocumentType,
			"url":           c.SourceURL,
			"date":          c.Date,
		}
		if c.ChunkIndex != nil && c.TotalChunks != nil {
			doc["chunk_index"] = float64(*c.ChunkIndex)
			doc["total_chunks"] = float64(*c.TotalChunks)
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index candidate %s: %w", c.ID, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("execute lexical batch: %w", err)
	}
	return nil
}

// Query scores chunks by BM25 over text and title.
func (ix *Index) Query(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, errIndexClosed
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Candidate{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(titleBoost)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(textQuery, titleQuery))
	req.Size = limit
	req.Fields = []string{"*"}

	result, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]domain.Candidate, 0, len(result.Hits))
	for _, hit := range result.Hits {
		c := domain.Candidate{
			ID:           hit.ID,
			ParentID:     stringField(hit.Fields, "parent_id"),
			Text:         stringField(hit.Fields, "text"),
			Title:        stringField(hit.Fields, "title"),
			SourceURL:    stringField(hit.Fields, "url"),
			Date:         stringField(hit.Fields, "date"),
			DocumentType: stringField(hit.Fields, "document_type"),
			KeywordScore: domain.FloatPtr(hit.Score),
		}
		index, okIndex := hit.Fields["chunk_index"].(float64)
		total, okTotal := hit.Fields["total_chunks"].(float64)
		if okIndex && okTotal {
			c.ChunkIndex = domain.IntPtr(int(index))
			c.TotalChunks = domain.IntPtr(int(total))
		}
		out = append(out, c)
	}
	return out, nil
}

func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0, errIndexClosed
	}
	return ix.index.DocCount()
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.index.Close()
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// ClassifyError treats index failures as permanent. Only a closed index
// counts against the breaker.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: errors.Is(err, errIndexClosed)}
}
