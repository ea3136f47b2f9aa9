package token

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	credentialsBucket = "credentials"
	accessTokenKey    = "access_token"
	refreshTokenKey   = "refresh_token"

	boltOpenTimeout = 5 * time.Second
)

// BoltStore is a Store backed by a bbolt database file. Tokens survive
// process restarts and are shared by every process opening the same file:
// the persistent half of the dual-scope policy, normally used for the
// refresh token only.
type BoltStore struct {
	db  *bolt.DB
	log zerolog.Logger
}

var _ Store = (*BoltStore)(nil)

// BoltStoreOption configures a BoltStore.
type BoltStoreOption func(*BoltStore)

// WithBoltLogger sets the logger used to report storage failures.
func WithBoltLogger(logger zerolog.Logger) BoltStoreOption {
	return func(s *BoltStore) {
		s.log = logger
	}
}

// NewBoltStore opens (creating if needed) the database at path and ensures
// the credentials bucket exists.
func NewBoltStore(path string, options ...BoltStoreOption) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(credentialsBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &BoltStore{db: db, log: log.Logger}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) AccessToken() string {
	return s.get(accessTokenKey)
}

func (s *BoltStore) SetAccessToken(token string) {
	s.set(accessTokenKey, token)
}

func (s *BoltStore) ClearAccessToken() {
	s.delete(accessTokenKey)
}

func (s *BoltStore) RefreshToken() string {
	return s.get(refreshTokenKey)
}

func (s *BoltStore) SetRefreshToken(token string) {
	s.set(refreshTokenKey, token)
}

func (s *BoltStore) ClearRefreshToken() {
	s.delete(refreshTokenKey)
}

func (s *BoltStore) ClearAll() {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(credentialsBucket))
		if err := b.Delete([]byte(accessTokenKey)); err != nil {
			return err
		}
		return b.Delete([]byte(refreshTokenKey))
	}); err != nil {
		s.log.Error().Err(err).Msg("token store: clear all failed")
	}
}

func (s *BoltStore) get(key string) string {
	var value string
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(credentialsBucket)).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	}); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("token store: read failed")
		return ""
	}
	return value
}

func (s *BoltStore) set(key, token string) {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(credentialsBucket)).Put([]byte(key), []byte(token))
	}); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("token store: write failed")
	}
}

func (s *BoltStore) delete(key string) {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(credentialsBucket)).Delete([]byte(key))
	}); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("token store: delete failed")
	}
}
