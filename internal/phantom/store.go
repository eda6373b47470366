// internal/phantom/store.go

// Package phantom maintains per-conversation message overlays: locally
// stored messages spliced in front of a conversation's real history so
// the remote oracle sees context that was never sent to the store.
package phantom

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/user/chatgraft/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS overlays (
	conversation_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	message_json TEXT NOT NULL,
	PRIMARY KEY (conversation_id, position)
);
CREATE TABLE IF NOT EXISTS conversation_cache (
	conversation_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT ''
);
`

// Store persists phantom overlays and the conversation search cache in
// a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the overlay database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open overlay db %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize overlay schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Overlay returns the stored phantom messages for a conversation in
// position order. A conversation with no overlay returns an empty slice.
func (s *Store) Overlay(ctx context.Context, id types.ConversationID) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_json FROM overlays
		WHERE conversation_id = ?
		ORDER BY position`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query overlay: %w", err)
	}
	defer rows.Close()

	var msgs []*types.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan overlay row: %w", err)
		}
		var wm types.WireMessage
		if err := json.Unmarshal([]byte(raw), &wm); err != nil {
			return nil, fmt.Errorf("decode overlay message: %w", err)
		}
		msgs = append(msgs, types.MessageFromWire(wm))
	}
	return msgs, rows.Err()
}

// Replace overwrites the full overlay for a conversation. An empty
// slice clears it, same as Delete.
func (s *Store) Replace(ctx context.Context, id types.ConversationID, msgs []*types.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin overlay replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM overlays WHERE conversation_id = ?`, string(id)); err != nil {
		return fmt.Errorf("clear overlay: %w", err)
	}
	for i, m := range msgs {
		raw, err := json.Marshal(m.WireFormat())
		if err != nil {
			return fmt.Errorf("encode overlay message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO overlays (conversation_id, position, message_json)
			VALUES (?, ?, ?)`, string(id), i, string(raw)); err != nil {
			return fmt.Errorf("insert overlay message: %w", err)
		}
	}
	return tx.Commit()
}

// Delete removes the overlay for a conversation.
func (s *Store) Delete(ctx context.Context, id types.ConversationID) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM overlays WHERE conversation_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete overlay: %w", err)
	}
	return nil
}

// CacheEntry is a row of the conversation search cache.
type CacheEntry struct {
	Conversation types.ConversationID
	Title        string
	Body         string
	UpdatedAt    string
}

// CacheConversation upserts the title and flattened text of a
// conversation for later search.
func (s *Store) CacheConversation(ctx context.Context, e CacheEntry) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_cache (conversation_id, title, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		string(e.Conversation), e.Title, e.Body, e.UpdatedAt); err != nil {
		return fmt.Errorf("cache conversation: %w", err)
	}
	return nil
}

// Search returns cached conversations whose title or body contains the
// query, case-insensitively, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, title, body, updated_at FROM conversation_cache
		WHERE title LIKE '%' || ? || '%' COLLATE NOCASE
		   OR body LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY updated_at DESC`, query, query)
	if err != nil {
		return nil, fmt.Errorf("search conversation cache: %w", err)
	}
	defer rows.Close()

	var out []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var id string
		if err := rows.Scan(&id, &e.Title, &e.Body, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		e.Conversation = types.ConversationID(id)
		out = append(out, e)
	}
	return out, rows.Err()
}
