package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

var messageColumns = []string{"id", "session_id", "question", "grounded", "retrieval", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*MessageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &MessageRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetMessageReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, session_id, question").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetMessage(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMessageDecodesStoredRetrieval(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	stored, _ := json.Marshal(domain.RetrievalResponse{
		RetrievalID: "m-1",
		Question:    "reset password",
		RelatedDocuments: []domain.FusedCandidate{
			{Candidate: domain.Candidate{ID: "a", SemanticScore: domain.FloatPtr(0.8)}, FusedScore: 1, Excerpt: "open login"},
		},
		NumResults: 1,
	})
	now := time.Now().UTC()
	mock.ExpectQuery("FROM chat_messages").
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(messageColumns).AddRow("m-1", "s-1", "reset password", true, stored, now, now))

	msg, err := repo.GetMessage(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if !msg.Grounded || msg.Retrieval == nil || msg.Retrieval.NumResults != 1 {
		t.Fatalf("expected grounded message with retrieval, got %+v", msg)
	}
	if msg.Retrieval.RelatedDocuments[0].Excerpt != "open login" {
		t.Fatalf("unexpected excerpt %q", msg.Retrieval.RelatedDocuments[0].Excerpt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMessageUngroundedHasNoRetrieval(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM chat_messages").
		WithArgs("m-2").
		WillReturnRows(sqlmock.NewRows(messageColumns).AddRow("m-2", "s-1", "hello", false, nil, now, now))

	msg, err := repo.GetMessage(context.Background(), "m-2")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if msg.Grounded || msg.Retrieval != nil {
		t.Fatalf("expected ungrounded message, got %+v", msg)
	}
}

func TestCreateMessageInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m-1", "s-1", "reset password", false, sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateMessage(context.Background(), &domain.ChatMessage{
		ID: "m-1", SessionID: "s-1", Question: "reset password", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRetrievalReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE chat_messages").
		WithArgs("missing", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveRetrieval(context.Background(), "missing", true, &domain.RetrievalResponse{RetrievalID: "missing"})
	if !domain.IsKind(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSessionMessagesOrdersOldestFirst(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(messageColumns).
		AddRow("m-1", "s-1", "first", false, nil, t0, t0).
		AddRow("m-2", "s-1", "second", false, nil, t0.Add(time.Minute), t0.Add(time.Minute))
	mock.ExpectQuery("WHERE session_id = \\$1").
		WithArgs("s-1", 50).
		WillReturnRows(rows)

	msgs, err := repo.ListSessionMessages(context.Background(), "s-1", 0)
	if err != nil {
		t.Fatalf("ListSessionMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m-1" || msgs[1].ID != "m-2" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chat_messages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
