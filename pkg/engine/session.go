package engine

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// session is the authenticated state of an engine.
type session struct {
	TokenID         uuid.UUID  `json:"tokenId"`
	OrganizationID  uuid.UUID  `json:"organizationId"`
	Fingerprint     []byte     `json:"fingerprint"`
	AuthenticatedAt time.Time  `json:"authenticatedAt"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

func (s *session) matches(t AccessToken) bool {
	return s.TokenID == t.ID && subtle.ConstantTimeCompare(s.Fingerprint, t.fingerprint()) == 1
}

func (s *session) expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// openStateFile opens the bbolt state file. The parent directory must exist.
func openStateFile(path string) (*bolt.DB, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("state file directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	return db, nil
}

// saveSession writes s into the state file at path, keyed by token ID.
func saveSession(path string, s *session) error {
	db, err := openStateFile(path)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSessions)
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketSessions, err)
		}
		return b.Put([]byte(s.TokenID.String()), data)
	})
}

// loadSession reads the session stored for tokenID. A missing file or
// entry yields nil without error.
func loadSession(path string, tokenID uuid.UUID) (*session, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	db, err := openStateFile(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var s *session
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(tokenID.String()))
		if v == nil {
			return nil
		}
		s = &session{}
		return json.Unmarshal(v, s)
	})
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return s, nil
}
