package service

import (
	"context"
	"encoding/json"

	"github.com/clipnote/api/internal/storage"
)

// StoreService saves and loads named project documents. Documents are opaque
// here; only the archive subsystem interprets the well-known ones.
type StoreService struct {
	db *storage.DB
}

func NewStoreService(db *storage.DB) *StoreService {
	return &StoreService{db: db}
}

// Save upserts a document. A nil project id addresses account-level stores
// such as the project list.
func (s *StoreService) Save(ctx context.Context, accountID int64, name string, projectID *string, document json.RawMessage) error {
	return s.db.SaveStore(ctx, accountID, name, deref(projectID), document)
}

// Load fetches a document, returning storage.ErrNotFound when absent.
func (s *StoreService) Load(ctx context.Context, accountID int64, name string, projectID *string) (json.RawMessage, error) {
	store, err := s.db.LoadStore(ctx, accountID, name, deref(projectID))
	if err != nil {
		return nil, err
	}
	return store.Document, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
