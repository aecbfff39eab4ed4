package credential

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/tabsync/internal/store"
)

func testStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), db
}

func TestLoadMissing(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSaveLoadClear(t *testing.T) {
	s, _ := testStore(t)

	want := &Credential{ID: "u1", Token: "tok", Username: "alice", DisplayName: "Alice"}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Clear error = %v, want ErrNotFound", err)
	}
}

func TestLoadEmptyToken(t *testing.T) {
	s, db := testStore(t)
	if err := db.SetLocalState(Key, `{"id":"u1","token":""}`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound for empty token", err)
	}
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Save(&Credential{ID: "u1"}); err == nil {
		t.Error("Save() without token should fail")
	}
}
