// Package services holds the server-side storage used by the web UI itself,
// as opposed to state owned by the assistant backend.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// ErrSessionNotFound is returned when a session ID does not resolve, either
// because it never existed or because it expired and was purged.
var ErrSessionNotFound = errors.New("session not found")

// Session is one signed-in browser's server-side state: who the user is and
// the backend cookies that authenticate calls made on their behalf.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	FullName  string         `json:"fullName"`
	IsAdmin   bool           `json:"isAdmin"`
	Cookies   []*http.Cookie `json:"cookies"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

var sessionBucket = []byte("sessions")

// BoltDB implements the SessionStore interface using a BoltDB backend, so
// signed-in browsers survive a server restart. Sessions are stored as JSON
// under their random ID.
type BoltDB struct {
	db  *bolt.DB
	ttl time.Duration
}

// NewBoltDB opens (creating if needed, with 0600 permissions) the database at
// path and ensures the session bucket exists. Sessions live for ttl from
// creation.
func NewBoltDB(path string, ttl time.Duration) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})

	return BoltDB{db: db, ttl: ttl}, err
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// CreateSession stores a new session with a random ID and returns it with ID,
// CreatedAt, and ExpiresAt filled in.
func (b BoltDB) CreateSession(_ context.Context, session Session) (Session, error) {
	now := time.Now()
	session.ID = uuid.NewString()
	session.CreatedAt = now
	session.ExpiresAt = now.Add(b.ttl)

	err := b.db.Update(func(tx *bolt.Tx) error {
		v, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return tx.Bucket(sessionBucket).Put([]byte(session.ID), v)
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Session retrieves a session by ID. Expired sessions are deleted on access
// and reported as ErrSessionNotFound.
func (b BoltDB) Session(_ context.Context, id string) (Session, error) {
	var session Session
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get([]byte(id))
		if v == nil {
			return ErrSessionNotFound
		}
		if err := json.Unmarshal(v, &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	if session.Expired(time.Now()) {
		_ = b.DeleteSession(context.Background(), id)
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// UpdateSession rewrites an existing session, keeping its ID and expiry. A
// missing session is silently ignored, matching a race with expiry purges.
func (b BoltDB) UpdateSession(_ context.Context, session Session) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		if bucket.Get([]byte(session.ID)) == nil {
			return nil
		}
		v, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return bucket.Put([]byte(session.ID), v)
	})
}

// DeleteSession removes a session by ID. Deleting a missing session is not an
// error.
func (b BoltDB) DeleteSession(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(id))
	})
}

// PurgeExpired walks the bucket and removes every expired session. It returns
// the number of sessions removed.
func (b BoltDB) PurgeExpired(_ context.Context) (int, error) {
	now := time.Now()
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				// Unreadable records are dead weight, drop them too.
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
				continue
			}
			if session.Expired(now) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}
