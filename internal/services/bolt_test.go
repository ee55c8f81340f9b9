package services

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) BoltDB {
	t.Helper()
	store, err := NewBoltDB(filepath.Join(t.TempDir(), "sessions.db"), ttl)
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, Session{
		UserID:   "u1",
		Email:    "nurse@example.org",
		FullName: "Pat Example",
		IsAdmin:  true,
		Cookies:  []*http.Cookie{{Name: "token", Value: "abc"}},
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateSession() returned empty ID")
	}

	got, err := store.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got.Email != "nurse@example.org" || !got.IsAdmin {
		t.Errorf("Session() = %+v, want stored fields back", got)
	}
	if len(got.Cookies) != 1 || got.Cookies[0].Value != "abc" {
		t.Errorf("Session() cookies = %+v, want the stored cookie", got.Cookies)
	}
}

func TestSessionNotFound(t *testing.T) {
	store := newTestStore(t, time.Hour)
	if _, err := store.Session(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	store := newTestStore(t, -time.Minute)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, Session{UserID: "u1"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := store.Session(ctx, created.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() error = %v, want ErrSessionNotFound for expired session", err)
	}
}

func TestUpdateSession(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, Session{UserID: "u1", FullName: "Before"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	created.FullName = "After"
	if err := store.UpdateSession(ctx, created); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}
	got, err := store.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got.FullName != "After" {
		t.Errorf("FullName = %q, want After", got.FullName)
	}

	// Updating a deleted session is a silent no-op.
	if err := store.DeleteSession(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := store.UpdateSession(ctx, created); err != nil {
		t.Errorf("UpdateSession() after delete error = %v, want nil", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	keep, err := store.CreateSession(ctx, Session{UserID: "fresh"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	stale, err := store.CreateSession(ctx, Session{UserID: "stale"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	if err := store.UpdateSession(ctx, stale); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	removed, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", removed)
	}
	if _, err := store.Session(ctx, keep.ID); err != nil {
		t.Errorf("fresh session gone after purge: %v", err)
	}
}
