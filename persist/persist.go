// Package persist reads and writes the two JSON blobs the client keeps
// on disk: the onboarding auth record and the bridge discovery cache
// (spec §4.1). Neither file is locked: both are only touched during
// onboarding and discovery, never on the streaming hot path.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rschio/huestream/errs"
	"github.com/rschio/huestream/model"
)

const (
	defaultAuthFile   = "auth.json"
	defaultBridgeFile = "bridge.json"
)

// AuthRecord is the persisted onboarding credential: the username
// returned by POST /api and the clientkey used as the DTLS PSK.
type AuthRecord struct {
	Username  string `json:"username"`
	ClientKey string `json:"clientkey"`
}

// Store roots both JSON files under a single directory, default
// "./data".
type Store struct {
	dir string
}

// New returns a Store rooted at dir. An empty dir defaults to "data".
func New(dir string) *Store {
	if dir == "" {
		dir = "data"
	}
	return &Store{dir: dir}
}

func (s *Store) authPath() string   { return filepath.Join(s.dir, defaultAuthFile) }
func (s *Store) bridgePath() string { return filepath.Join(s.dir, defaultBridgeFile) }

// ReadAuth loads the persisted auth record, or errs.ErrNotFound if it
// has never been written.
func (s *Store) ReadAuth() (AuthRecord, error) {
	var rec AuthRecord
	if err := readJSON(s.authPath(), &rec); err != nil {
		return AuthRecord{}, err
	}
	return rec, nil
}

// WriteAuth persists the auth record, creating the store directory if
// needed.
func (s *Store) WriteAuth(rec AuthRecord) error {
	return writeJSON(s.authPath(), rec)
}

// ReadBridgeCache loads the cached bridge descriptors, keyed by bridge
// ID, or errs.ErrNotFound if the cache has never been written.
func (s *Store) ReadBridgeCache() (map[string]model.Bridge, error) {
	var cache map[string]model.Bridge
	if err := readJSON(s.bridgePath(), &cache); err != nil {
		return nil, err
	}
	return cache, nil
}

// WriteBridgeCache persists the bridge descriptor cache.
func (s *Store) WriteBridgeCache(cache map[string]model.Bridge) error {
	return writeJSON(s.bridgePath(), cache)
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.ErrNotFound
		}
		return wrapIO(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return wrapParse(err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return wrapIO(err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return wrapParse(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return wrapIO(err)
	}
	return nil
}

func wrapIO(err error) error {
	return fmtWrap(errs.ErrPersistIO, err)
}

func wrapParse(err error) error {
	return fmtWrap(errs.ErrPersistParse, err)
}

func fmtWrap(sentinel, cause error) error {
	return &persistError{sentinel: sentinel, cause: cause}
}

type persistError struct {
	sentinel error
	cause    error
}

func (e *persistError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *persistError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}
