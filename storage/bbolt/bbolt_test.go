package bbolt

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/itc-kingsavage/savage-scanner/crypto"
	"github.com/itc-kingsavage/savage-scanner/storage"
)

func testRecord(id string) *storage.SessionRecord {
	now := time.Now().UTC()
	return &storage.SessionRecord{
		SessionID:        id,
		OwnerPhoneNumber: "+15551234567",
		Envelope: crypto.Envelope{
			SchemaVersion: 1,
			Scheme:        "aes256gcm",
			Purpose:       "session",
			IV:            []byte("0123456789ab"),
			Salt:          []byte("salt_salt_salt_!"),
			Ciphertext:    []byte("ciphertext"),
			Tag:           []byte("0123456789abcdef"),
			CreatedAt:     now,
			Digest:        []byte("digest"),
		},
		BotAssociation: "alpha",
		PlatformTag:    "web",
		IsActive:       true,
		LastAccessedAt: now,
		CreatedAt:      now,
		Metadata:       storage.Metadata{Version: 1, EnvelopeDigest: "abcd"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "sessions.db"), nil)
	if err != nil {
		t.Fatalf("NewStoreFromFile failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("SAVAGE-AAAAAAAAAAAA-1234567890-BBBBBBBBBBBB")

	if err := s.Put(rec.SessionID, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(rec.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SessionID != rec.SessionID || got.OwnerPhoneNumber != rec.OwnerPhoneNumber {
		t.Errorf("record fields did not round-trip: %+v", got)
	}
	if string(got.Envelope.Ciphertext) != "ciphertext" {
		t.Errorf("envelope did not round-trip")
	}

	if err := s.Delete(rec.SessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(rec.SessionID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ids := []string{"id-a", "id-b", "id-c"}
	for _, id := range ids {
		if err := s.Put(id, testRecord(id)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	got, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != len(ids) {
		t.Errorf("expected %d ids, got %d", len(ids), len(got))
	}
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	s, err := NewStoreFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewStoreFromFile failed: %v", err)
	}
	rec := testRecord("persist-me")
	if err := s.Put(rec.SessionID, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewStoreFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if _, err := s2.Get("persist-me"); err != nil {
		t.Errorf("record did not survive reopen: %v", err)
	}
}
