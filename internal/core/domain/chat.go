package domain

import "time"

// ChatMessage is a user question and the retrieval that grounded it.
// The message id doubles as the retrieval id of its pool.
type ChatMessage struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	Question  string             `json:"question"`
	Grounded  bool               `json:"grounded"`
	Retrieval *RetrievalResponse `json:"retrieval,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type AskRequest struct {
	SessionID     string   `json:"session_id"`
	Question      string   `json:"question"`
	KeywordWeight *float64 `json:"keyword_weight,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
}
