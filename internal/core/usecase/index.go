package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

// IndexDocumentsUseCase chunks source documents and writes the chunks to the
// semantic and keyword indexes under the same candidate ids.
type IndexDocumentsUseCase struct {
	chunker  ports.Chunker
	embedder ports.BatchEmbedder
	vectors  ports.VectorIndexer
	keywords ports.KeywordIndexer
}

// NewIndexDocumentsUseCase builds the indexer. keywords may be nil when the
// lexical side is served by the vector store.
func NewIndexDocumentsUseCase(
	chunker ports.Chunker,
	embedder ports.BatchEmbedder,
	vectors ports.VectorIndexer,
	keywords ports.KeywordIndexer,
) *IndexDocumentsUseCase {
	return &IndexDocumentsUseCase{
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
	}
}

// IndexAll indexes each document in turn. Invalid documents are skipped and
// counted; index failures stop the run.
func (uc *IndexDocumentsUseCase) IndexAll(ctx context.Context, docs []domain.SourceDocument) (domain.IndexReport, error) {
	var report domain.IndexReport
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := uc.IndexDocument(ctx, doc)
		if err != nil {
			if domain.IsKind(err, domain.ErrInvalidInput) {
				slog.Warn("document_skipped", "document_id", doc.ID, "error", err.Error())
				report.Skipped++
				continue
			}
			return report, err
		}
		report.Documents++
		report.Chunks += n
	}
	return report, nil
}

// IndexDocument returns the number of chunks written.
func (uc *IndexDocumentsUseCase) IndexDocument(ctx context.Context, doc domain.SourceDocument) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "index document", err)
	}

	candidates, err := uc.chunk(doc)
	if err != nil {
		return 0, err
	}

	vectors, err := uc.embed(ctx, candidates)
	if err != nil {
		return 0, err
	}

	if err := uc.index(ctx, candidates, vectors); err != nil {
		return 0, err
	}

	slog.Info("document_indexed", "document_id", doc.ID, "chunks", len(candidates))
	return len(candidates), nil
}

func (uc *IndexDocumentsUseCase) chunk(doc domain.SourceDocument) ([]domain.Candidate, error) {
	parts := uc.chunker.Split(doc.Content)
	if len(parts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	total := len(parts)
	out := make([]domain.Candidate, 0, total)
	for i, text := range parts {
		c := domain.Candidate{
			ID:           doc.ID,
			ParentID:     doc.ID,
			Text:         text,
			SourceURL:    doc.SourceURL,
			Title:        doc.Title,
			Date:         doc.Date,
			DocumentType: doc.DocumentType,
		}
		if total > 1 {
			c.ID = fmt.Sprintf("%s#%d", doc.ID, i)
			c.ChunkIndex = domain.IntPtr(i)
			c.TotalChunks = domain.IntPtr(total)
		}
		out = append(out, c)
	}
	return out, nil
}

func (uc *IndexDocumentsUseCase) embed(ctx context.Context, candidates []domain.Candidate) ([][]float32, error) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed chunks: vectors/chunks mismatch: %d/%d", len(vectors), len(texts))
	}
	return vectors, nil
}

func (uc *IndexDocumentsUseCase) index(ctx context.Context, candidates []domain.Candidate, vectors [][]float32) error {
	if err := uc.vectors.IndexCandidates(ctx, candidates, vectors); err != nil {
		return fmt.Errorf("index chunks in vector store: %w", err)
	}
	if uc.keywords == nil {
		return nil
	}
	if err := uc.keywords.IndexCandidates(ctx, candidates); err != nil {
		return fmt.Errorf("index chunks in keyword index: %w", err)
	}
	return nil
}
