package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MessageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	grounded BOOLEAN NOT NULL DEFAULT FALSE,
	retrieval JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *MessageRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	retrievalJSON, err := marshalRetrieval(msg.Retrieval)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_messages (id, session_id, question, grounded, retrieval, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		msg.ID, msg.SessionID, msg.Question, msg.Grounded, retrievalJSON, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, session_id, question, grounded, retrieval, created_at, updated_at
FROM chat_messages
WHERE id = $1
`, id)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMessageNotFound, "get message", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return msg, nil
}

// ListSessionMessages returns a session's messages oldest first.
func (r *MessageRepository) ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, question, grounded, retrieval, created_at, updated_at
FROM chat_messages
WHERE session_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session message: %w", err)
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session messages: %w", err)
	}
	return out, nil
}

func (r *MessageRepository) SaveRetrieval(ctx context.Context, id string, grounded bool, resp *domain.RetrievalResponse) error {
	retrievalJSON, err := marshalRetrieval(resp)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE chat_messages
SET grounded = $2, retrieval = $3, updated_at = $4
WHERE id = $1
`, id, grounded, retrievalJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save retrieval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save retrieval rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrMessageNotFound, "save retrieval", fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	var retrievalRaw []byte
	if err := row.Scan(
		&msg.ID, &msg.SessionID, &msg.Question, &msg.Grounded, &retrievalRaw, &msg.CreatedAt, &msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(retrievalRaw) > 0 {
		var resp domain.RetrievalResponse
		if err := json.Unmarshal(retrievalRaw, &resp); err != nil {
			return nil, fmt.Errorf("unmarshal retrieval: %w", err)
		}
		msg.Retrieval = &resp
	}
	return &msg, nil
}

func marshalRetrieval(resp *domain.RetrievalResponse) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval: %w", err)
	}
	return raw, nil
}
