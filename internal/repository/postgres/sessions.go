package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumina/internal/domain"
	"lumina/internal/domain/models"
)

// SessionRepository persists chat sessions and their messages. Every query is
// scoped by user_id; a session never leaks across users.
type SessionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(config *RepositoryConfig) *SessionRepository {
	return &SessionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateSession inserts a new session. ID and timestamps are filled in.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.LastMessageAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, created_at, last_message_at, canvas_content)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.Sessions)

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Title,
		session.CreatedAt,
		session.LastMessageAt,
		session.CanvasContent,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves one session with its full ordered message history.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, last_message_at, canvas_content
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Sessions)

	var session models.ChatSession
	err := r.pool.QueryRow(ctx, query, sessionID, userID).Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.CreatedAt,
		&session.LastMessageAt,
		&session.CanvasContent,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("session %s not found", sessionID)}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	messages, err := r.listMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return &session, nil
}

// ListSessions returns the user's sessions, most recently active first,
// without message bodies.
func (r *SessionRepository) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, last_message_at
		FROM %s
		WHERE user_id = $1
		ORDER BY last_message_at DESC
	`, r.tables.Sessions)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.ChatSession{}
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its messages.
func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID, userID string) error {
	delMessages := fmt.Sprintf(`
		DELETE FROM %s
		WHERE session_id = $1
		  AND EXISTS (SELECT 1 FROM %s WHERE id = $1 AND user_id = $2)
	`, r.tables.Messages, r.tables.Sessions)
	if _, err := r.pool.Exec(ctx, delMessages, sessionID, userID); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}

	delSession := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Sessions)
	tag, err := r.pool.Exec(ctx, delSession, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("session %s not found", sessionID)}
	}
	return nil
}

// AppendMessages adds messages to a session, creating the session on first
// write. The title derives from the first user message; last_message_at
// advances to the newest timestamp. Used by both the chat endpoint and voice
// save points, which is why it is idempotent for an empty batch.
func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID, userID string, messages []models.ChatMessage) (*models.ChatSession, error) {
	if len(messages) == 0 {
		return r.GetSession(ctx, sessionID, userID)
	}

	session, err := r.GetSession(ctx, sessionID, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		session = &models.ChatSession{
			ID:     sessionID,
			UserID: userID,
			Title:  titleFrom(messages),
		}
		if err := r.CreateSession(ctx, session); err != nil {
			return nil, err
		}
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, role, content, kind, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Messages)

	last := session.LastMessageAt
	for i := range messages {
		msg := &messages[i]
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msg.SessionID = session.ID
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		if msg.Kind == "" {
			msg.Kind = models.KindText
		}

		if _, err := r.pool.Exec(ctx, insert,
			msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Kind, msg.ImageURL, msg.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("append message: %w", err)
		}
		if msg.Timestamp.After(last) {
			last = msg.Timestamp
		}
	}

	touch := fmt.Sprintf(`UPDATE %s SET last_message_at = $1 WHERE id = $2`, r.tables.Sessions)
	if _, err := r.pool.Exec(ctx, touch, last, session.ID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	session.LastMessageAt = last
	session.Messages = append(session.Messages, messages...)
	return session, nil
}

// UpdateCanvas stores the session's current canvas artifact.
func (r *SessionRepository) UpdateCanvas(ctx context.Context, sessionID, userID string, content *string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET canvas_content = $1 WHERE id = $2 AND user_id = $3
	`, r.tables.Sessions)

	tag, err := r.pool.Exec(ctx, query, content, sessionID, userID)
	if err != nil {
		return fmt.Errorf("update canvas: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("session %s not found", sessionID)}
	}
	return nil
}

// SearchMessages finds the user's past messages matching query, newest first.
// Backs the search_past_chats tool.
func (r *SessionRepository) SearchMessages(ctx context.Context, userID, query string, limit int) ([]models.ChatMessage, error) {
	sql := fmt.Sprintf(`
		SELECT m.id, m.session_id, m.role, m.content, m.kind, m.image_url, m.created_at
		FROM %s m
		JOIN %s s ON s.id = m.session_id
		WHERE s.user_id = $1 AND m.content ILIKE '%%' || $2 || '%%'
		ORDER BY m.created_at DESC
		LIMIT $3
	`, r.tables.Messages, r.tables.Sessions)

	rows, err := r.pool.Query(ctx, sql, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *SessionRepository) listMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, role, content, kind, image_url, created_at
		FROM %s
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, r.tables.Messages)

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Kind, &m.ImageURL, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func titleFrom(messages []models.ChatMessage) string {
	for _, m := range messages {
		if m.Role == "user" {
			return models.DeriveTitle(m.Content)
		}
	}
	return models.DeriveTitle("")
}
