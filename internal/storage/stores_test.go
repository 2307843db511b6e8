package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/clipnote/api/internal/model"
)

func TestSaveStoreReplacesPrevious(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	if err := db.SaveStore(ctx, accountID, model.StoreNameMain, "proj-1", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("save store: %v", err)
	}
	if err := db.SaveStore(ctx, accountID, model.StoreNameMain, "proj-1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("resave store: %v", err)
	}

	store, err := db.LoadStore(ctx, accountID, model.StoreNameMain, "proj-1")
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if string(store.Document) != `{"v":2}` {
		t.Errorf("document = %s, want last write", store.Document)
	}
}

func TestLoadStoreScoping(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	accountID := createTestAccount(t, db, "a@example.com")

	db.SaveStore(ctx, accountID, model.StoreNameMain, "proj-1", []byte(`{"v":1}`))
	db.SaveStore(ctx, accountID, model.StoreNameUndoable, "proj-1", []byte(`{"v":2}`))
	db.SaveStore(ctx, accountID, model.StoreNameMain, "proj-2", []byte(`{"v":3}`))

	store, err := db.LoadStore(ctx, accountID, model.StoreNameUndoable, "proj-1")
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if string(store.Document) != `{"v":2}` {
		t.Errorf("document = %s", store.Document)
	}

	if _, err := db.LoadStore(ctx, accountID, model.StoreNameUndoable, "proj-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing store: got %v, want ErrNotFound", err)
	}

	other := createTestAccount(t, db, "other@example.com")
	if _, err := db.LoadStore(ctx, other, model.StoreNameMain, "proj-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign store: got %v, want ErrNotFound", err)
	}
}
