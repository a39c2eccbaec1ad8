package push

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

// Store holds the durable push state shared between the agent and the
// background worker: the device identity and the push-service config
// cache.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DeviceID returns the install's device identity, generating and
// persisting a fresh uuid on first use. The identity is tied to the
// physical client, never to a user account.
func (s *Store) DeviceID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT device_id FROM device_identity WHERE id = 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrap(err, "failed to load device identity")
	}

	id = uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO device_identity (id, device_id) VALUES (1, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to persist device identity")
	}

	// A concurrent first use may have won the insert; read back the row
	// that actually stuck.
	if err := s.db.QueryRow(`SELECT device_id FROM device_identity WHERE id = 1`).Scan(&id); err != nil {
		return "", errors.Wrap(err, "failed to read back device identity")
	}
	return id, nil
}

// SaveConfig caches a push-service config payload under key.
func (s *Store) SaveConfig(key string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO push_config (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save push config %q", key)
	}
	return nil
}

// LoadConfig returns the cached payload for key, or ErrNotFound when the
// handshake has never run on this install.
func (s *Store) LoadConfig(key string) ([]byte, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM push_config WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetail(errors.ErrNotFound, "push config "+key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load push config %q", key)
	}
	return []byte(payload), nil
}
