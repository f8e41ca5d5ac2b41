// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// CreateSession starts a new session with a random id.
func (s *Store) CreateSession(ctx context.Context) (types.Session, error) {
	now := s.now().UTC()
	sess := types.Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)`,
		sess.ID, formatTime(now), formatTime(now),
	)
	if err != nil {
		return types.Session{}, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(ctx context.Context, id string) (types.Session, error) {
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("looking up session: %w", err)
	}
	return types.Session{ID: id, CreatedAt: parseTime(created), UpdatedAt: parseTime(updated)}, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := []types.Session{}
	for rows.Next() {
		var sess types.Session
		var created, updated string
		if err := rows.Scan(&sess.ID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt, sess.UpdatedAt = parseTime(created), parseTime(updated)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session with its history and documents.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendMessages adds messages to the end of a session's history.
func (s *Store) AppendMessages(ctx context.Context, id string, msgs ...types.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	if err := touchSession(ctx, tx, id, now); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		created := now
		if !m.CreatedAt.IsZero() {
			created = formatTime(m.CreatedAt)
		}
		if _, err := stmt.ExecContext(ctx, id, string(m.Role), m.Content, created); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}
	return tx.Commit()
}

// History returns a session's messages in the order they were appended.
func (s *Store) History(ctx context.Context, id string) ([]types.Message, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	msgs := []types.Message{}
	for rows.Next() {
		var m types.Message
		var role, created string
		if err := rows.Scan(&role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = types.Role(role)
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveDocuments replaces the documents kept for a session.
func (s *Store) SaveDocuments(ctx context.Context, id string, docs []types.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := touchSession(ctx, tx, id, formatTime(s.now())); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_documents WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_documents (session_id, position, pmcid, citation, abstract) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		if _, err := stmt.ExecContext(ctx, id, i, d.PMCID, d.Citation, d.Abstract); err != nil {
			return fmt.Errorf("inserting document %s: %w", d.PMCID, err)
		}
	}
	return tx.Commit()
}

// Documents returns the documents kept for a session in search order.
func (s *Store) Documents(ctx context.Context, id string) ([]types.Document, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT pmcid, citation, abstract FROM session_documents WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		var d types.Document
		if err := rows.Scan(&d.PMCID, &d.Citation, &d.Abstract); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// touchSession bumps updated_at, failing with ErrNotFound for unknown ids.
func touchSession(ctx context.Context, tx *sql.Tx, id, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
