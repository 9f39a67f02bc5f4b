package ports

import (
	"context"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

// RetrievalService is the inbound contract of the hybrid retrieval engine.
type RetrievalService interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error)
	Reweight(ctx context.Context, req domain.ReweightRequest) (*domain.RetrievalResponse, error)
}

// ChatService is the inbound contract for asking questions and re-searching
// answered messages.
type ChatService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.ChatMessage, error)
	SearchMessage(ctx context.Context, messageID string, keywordWeight float64) (*domain.ChatMessage, error)
	GetMessage(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}
