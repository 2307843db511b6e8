package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clipnote/api/internal/model"
)

// SaveStore upserts a named document for (account, project, name). A second
// save with the same key replaces the document; last writer wins.
func (s *DB) SaveStore(ctx context.Context, accountID int64, name, projectID string, document json.RawMessage) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO stores (account_id, project_id, name, document)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(account_id, project_id, name)
         DO UPDATE SET document = excluded.document`,
		accountID,
		projectID,
		name,
		string(document),
	)
	if err != nil {
		return fmt.Errorf("save store %q: %w", name, err)
	}
	return nil
}

// LoadStore fetches a named document, returning ErrNotFound when absent.
func (s *DB) LoadStore(ctx context.Context, accountID int64, name, projectID string) (*model.Store, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, account_id, project_id, name, document FROM stores
         WHERE account_id = ? AND project_id = ? AND name = ?`,
		accountID,
		projectID,
		name,
	)
	var (
		store    model.Store
		document string
	)
	if err := row.Scan(&store.ID, &store.AccountID, &store.ProjectID, &store.Name, &document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load store %q: %w", name, err)
	}
	store.Document = json.RawMessage(document)
	return &store, nil
}
