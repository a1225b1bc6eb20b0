// Package storage persists conversations locally: a sqlite-backed
// message history and plain-text per-conversation transcripts.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

// HistoryDB manages local message history
type HistoryDB struct {
	db *sql.DB
}

// StoredMessage represents a message in the database
type StoredMessage struct {
	ID           int64
	Conversation string
	Sender       string
	Body         string
	Timestamp    int64
	Deleted      bool
}

// OpenHistory opens (creating if needed) the history database
func OpenHistory(dbPath string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	hdb := &HistoryDB{db: db}

	if err := hdb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return hdb, nil
}

// initSchema creates database tables
func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation TEXT NOT NULL,
		sender TEXT NOT NULL,
		body TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation, timestamp);
	`

	_, err := h.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}

	return nil
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// SaveMessage stores one chat line in the history.
func (h *HistoryDB) SaveMessage(msg *StoredMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	query := `
		INSERT INTO messages (conversation, sender, body, timestamp)
		VALUES (?, ?, ?, ?)
	`

	result, err := h.db.Exec(query, msg.Conversation, msg.Sender, msg.Body, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	msg.ID = id
	return nil
}

// Messages retrieves a conversation's history in send order.
func (h *HistoryDB) Messages(conversation string, limit int) ([]*StoredMessage, error) {
	query := `
		SELECT id, conversation, sender, body, timestamp, deleted
		FROM messages
		WHERE conversation = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`

	rows, err := h.db.Query(query, conversation, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*StoredMessage

	for rows.Next() {
		var msg StoredMessage
		var deleted int

		err := rows.Scan(&msg.ID, &msg.Conversation, &msg.Sender, &msg.Body, &msg.Timestamp, &deleted)
		if err != nil {
			return nil, err
		}

		msg.Deleted = deleted != 0
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// EditMessage rewrites the most recent matching line, mirroring the
// in-session edit.
func (h *HistoryDB) EditMessage(conversation, sender, oldBody, newBody string) error {
	query := `
		UPDATE messages SET body = ?
		WHERE id = (
			SELECT id FROM messages
			WHERE conversation = ? AND sender = ? AND body = ? AND deleted = 0
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)
	`

	result, err := h.db.Exec(query, newBody, conversation, sender, oldBody)
	if err != nil {
		return fmt.Errorf("failed to edit message: %v", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage tombstones the most recent matching line. The row
// stays so the transcript ordering survives.
func (h *HistoryDB) DeleteMessage(conversation, sender, body string) error {
	query := `
		UPDATE messages SET deleted = 1
		WHERE id = (
			SELECT id FROM messages
			WHERE conversation = ? AND sender = ? AND body = ? AND deleted = 0
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)
	`

	result, err := h.db.Exec(query, conversation, sender, body)
	if err != nil {
		return fmt.Errorf("failed to delete message: %v", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearConversation drops every line of one conversation.
func (h *HistoryDB) ClearConversation(conversation string) error {
	_, err := h.db.Exec(`DELETE FROM messages WHERE conversation = ?`, conversation)
	return err
}

// Conversations lists the distinct conversation keys, most recent
// first.
func (h *HistoryDB) Conversations() ([]string, error) {
	rows, err := h.db.Query(`
		SELECT conversation FROM messages
		GROUP BY conversation
		ORDER BY MAX(timestamp) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}

	return conversations, rows.Err()
}
