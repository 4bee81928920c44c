package store

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChatCount(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)

	count, err := db.ChatCount()
	if err != nil {
		t.Fatalf("ChatCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("ChatCount = %d, want 0", count)
	}

	if _, err := chats.Create("u1", "", "hi"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := chats.Create("u2", "", "hi"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	count, err = db.ChatCount()
	if err != nil {
		t.Fatalf("ChatCount: %v", err)
	}
	if count != 2 {
		t.Errorf("ChatCount = %d, want 2", count)
	}
}
