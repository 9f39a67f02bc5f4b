package domain

import (
	"errors"
	"strings"
)

// SourceDocument is a page to be split into chunks and written to both
// indexes.
type SourceDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURL    string `json:"source_url,omitempty"`
	Date         string `json:"date,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

func (d SourceDocument) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("document id is empty")
	}
	if strings.TrimSpace(d.Content) == "" {
		return errors.New("document " + d.ID + " has no content")
	}
	return nil
}

type IndexReport struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Skipped   int `json:"skipped"`
}
