package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines conversation and message persistence.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Conversation, error)
	MostRecent(ctx context.Context, userID uuid.UUID) (*Conversation, error)
	List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Conversation, int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AppendMessage(ctx context.Context, msg *Message) error
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]Message, int64, error)
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new conversation repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, conv *Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		conv.ID, conv.UserID, conv.Title,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) MostRecent(ctx context.Context, userID uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting most recent conversation: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Conversation, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, total, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation not found")
	}
	return nil
}

// AppendMessage durably stores one turn and bumps the conversation's
// updated_at so recency ordering stays correct.
func (r *PostgresRepository) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning message tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		msg.ConversationID,
	); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentMessages returns the newest `limit` messages, oldest first.
func (r *PostgresRepository) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM (
		     SELECT id, conversation_id, role, content, created_at
		     FROM messages
		     WHERE conversation_id = $1
		     ORDER BY created_at DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("getting recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *PostgresRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, page, pageSize int) ([]Message, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		conversationID, pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}
