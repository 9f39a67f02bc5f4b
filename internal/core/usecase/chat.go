package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

// ChatUseCase binds retrievals to chat messages. The message id is reused as
// the retrieval id so a message can later be re-searched from its pool.
type ChatUseCase struct {
	retrieval ports.RetrievalService
	messages  ports.MessageStore
	now       func() time.Time
	newID     func() string
}

func NewChatUseCase(retrieval ports.RetrievalService, messages ports.MessageStore) *ChatUseCase {
	return &ChatUseCase{
		retrieval: retrieval,
		messages:  messages,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Ask stores the question, grounds it with a fresh retrieval and records the
// response on the message. When no source is reachable the message is kept
// ungrounded and no error is returned. Any other retrieval failure also
// marks the message ungrounded before the error is returned.
func (uc *ChatUseCase) Ask(ctx context.Context, req domain.AskRequest) (*domain.ChatMessage, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("session id is required"))
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	if kw := req.KeywordWeight; kw != nil && (*kw < 0 || *kw > 1) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("keyword weight %v outside [0,1]", *kw))
	}

	now := uc.now()
	msg := &domain.ChatMessage{
		ID:        uc.newID(),
		SessionID: sessionID,
		Question:  question,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.messages.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	resp, retrieveErr := uc.retrieval.Retrieve(ctx, domain.RetrievalRequest{
		RetrievalID:   msg.ID,
		Question:      question,
		KeywordWeight: req.KeywordWeight,
		MaxResults:    req.MaxResults,
	})
	if retrieveErr == nil {
		msg.Grounded = true
		msg.Retrieval = resp
	} else {
		slog.Warn("chat_ungrounded",
			"message_id", msg.ID,
			"session_id", sessionID,
			"error", retrieveErr.Error(),
		)
	}

	if err := uc.messages.SaveRetrieval(ctx, msg.ID, msg.Grounded, msg.Retrieval); err != nil {
		return nil, errors.Join(fmt.Errorf("save retrieval: %w", err), retrieveErr)
	}
	if retrieveErr != nil && !domain.IsKind(retrieveErr, domain.ErrAllSourcesUnavailable) {
		return nil, fmt.Errorf("retrieve for message %s: %w", msg.ID, retrieveErr)
	}
	msg.UpdatedAt = uc.now()
	return msg, nil
}

// SearchMessage re-ranks an answered message with a new keyword weight.
func (uc *ChatUseCase) SearchMessage(ctx context.Context, messageID string, keywordWeight float64) (*domain.ChatMessage, error) {
	msg, err := uc.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	resp, err := uc.retrieval.Reweight(ctx, domain.ReweightRequest{
		RetrievalID:   msg.ID,
		KeywordWeight: keywordWeight,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.messages.SaveRetrieval(ctx, msg.ID, true, resp); err != nil {
		return nil, fmt.Errorf("save retrieval: %w", err)
	}
	msg.Grounded = true
	msg.Retrieval = resp
	msg.UpdatedAt = uc.now()
	return msg, nil
}

func (uc *ChatUseCase) GetMessage(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get message", errors.New("message id is required"))
	}
	msg, err := uc.messages.GetMessage(ctx, messageID)
	if err != nil {
		if domain.IsKind(err, domain.ErrMessageNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListSessionMessages returns a session's messages oldest first.
func (uc *ChatUseCase) ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list session messages", errors.New("session id is required"))
	}
	if limit < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list session messages", fmt.Errorf("limit %d is negative", limit))
	}
	msgs, err := uc.messages.ListSessionMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	return msgs, nil
}
