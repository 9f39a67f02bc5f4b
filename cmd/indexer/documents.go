package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/textclean"
)

const maxLineBytes = 16 << 20

// loadDocuments reads a JSON array or one JSON object per line and strips
// markup from titles and content.
func loadDocuments(path string) ([]domain.SourceDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	docs, err := decodeDocuments(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i := range docs {
		docs[i].Title = textclean.Plain(docs[i].Title)
		docs[i].Content = textclean.Plain(docs[i].Content)
	}
	return docs, nil
}

func decodeDocuments(raw []byte) ([]domain.SourceDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var docs []domain.SourceDocument
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var docs []domain.SourceDocument
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var doc domain.SourceDocument
		if err := json.Unmarshal(text, &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	return docs, scanner.Err()
}
