// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigchat-tui/internal/model"
)

// =============================================================================
// CONVERSATION RECORD
// =============================================================================

// ConversationRecord is one persisted conversation: the resolved send
// parameters plus the full transcript at completion time.
type ConversationRecord struct {
	ID           string
	Model        string
	SystemPrompt string
	UserPrompt   string
	Language     string
	EndpointID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Messages     []*model.Message
}

// ConversationMeta is the listing view of a stored conversation.
type ConversationMeta struct {
	ID           string
	Model        string
	EndpointID   string
	UpdatedAt    time.Time
	MessageCount int
	Preview      string
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

const conversationSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	system_prompt TEXT NOT NULL DEFAULT '',
	user_prompt   TEXT NOT NULL DEFAULT '',
	language      TEXT NOT NULL DEFAULT '',
	endpoint_id   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	kind            INTEGER NOT NULL DEFAULT 0,
	content         TEXT NOT NULL,
	is_error        INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, seq);
`

// ConversationStore persists conversations to SQLite.
type ConversationStore struct {
	db *sql.DB
}

// OpenConversationStore opens (creating if needed) the conversation database
// at path. Use ":memory:" for an in-memory store in tests.
func OpenConversationStore(path string) (*ConversationStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(conversationSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &ConversationStore{db: db}, nil
}

// Close releases the database handle.
func (cs *ConversationStore) Close() error {
	return cs.db.Close()
}

// SaveConversation upserts a conversation and replaces its messages. A
// record without an ID gets one assigned; the assigned ID is returned.
func (cs *ConversationStore) SaveConversation(ctx context.Context, rec *ConversationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, model, system_prompt, user_prompt, language, endpoint_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			user_prompt = excluded.user_prompt,
			language = excluded.language,
			endpoint_id = excluded.endpoint_id,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Model, rec.SystemPrompt, rec.UserPrompt, rec.Language,
		rec.EndpointID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, rec.ID); err != nil {
		return "", fmt.Errorf("failed to clear messages: %w", err)
	}

	for seq, m := range rec.Messages {
		content := m.Content.Text
		if m.Content.Kind == model.ContentImage {
			content = m.Content.Image
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, role, kind, content, is_error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, rec.ID, seq, string(m.Role), int(m.Content.Kind), content,
			boolToInt(m.IsError), m.Timestamp)
		if err != nil {
			return "", fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return rec.ID, nil
}

// LoadConversation reads one conversation with its messages in order.
func (cs *ConversationStore) LoadConversation(ctx context.Context, id string) (*ConversationRecord, error) {
	rec := &ConversationRecord{ID: id}
	err := cs.db.QueryRowContext(ctx, `
		SELECT model, system_prompt, user_prompt, language, endpoint_id, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&rec.Model, &rec.SystemPrompt, &rec.UserPrompt, &rec.Language,
			&rec.EndpointID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := cs.db.QueryContext(ctx, `
		SELECT id, role, kind, content, is_error, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m       model.Message
			kind    int
			content string
			isErr   int
		)
		if err := rows.Scan(&m.ID, &m.Role, &kind, &content, &isErr, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if model.ContentKind(kind) == model.ContentImage {
			m.Content = model.ImageContent(content)
		} else {
			m.Content = model.TextContent(content)
		}
		m.IsError = isErr != 0
		msg := m
		rec.Messages = append(rec.Messages, &msg)
	}
	return rec, rows.Err()
}

// ListConversations returns conversation metadata, most recently updated
// first.
func (cs *ConversationStore) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT c.id, c.model, c.endpoint_id, c.updated_at,
			COUNT(m.id),
			COALESCE((SELECT content FROM messages
				WHERE conversation_id = c.id AND role = 'user'
				ORDER BY seq LIMIT 1), '')
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		if err := rows.Scan(&meta.ID, &meta.Model, &meta.EndpointID,
			&meta.UpdatedAt, &meta.MessageCount, &meta.Preview); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (cs *ConversationStore) DeleteConversation(ctx context.Context, id string) error {
	_, err := cs.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
