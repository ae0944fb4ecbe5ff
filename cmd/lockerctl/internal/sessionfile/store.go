package sessionfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"lockerhub/internal/models"
)

// ErrNoSession is returned by Load when nothing has been stored yet.
var ErrNoSession = errors.New("no stored session")

// Record is the on-disk form of the current session.
type Record struct {
	Server    string    `json:"server"`
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Record) Pair() models.SessionPair {
	return models.SessionPair{AccessToken: r.Access, RefreshToken: r.Refresh}
}

// Store keeps one session per user in a JSON file readable only by its owner.
type Store struct {
	path string
}

// NewStore uses path, or ~/.lockerhub/session.json when path is empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".lockerhub", "session.json")
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNoSession
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	if rec.Refresh == "" {
		return Record{}, ErrNoSession
	}
	return rec, nil
}

// Save writes the record atomically; an empty pair removes the file.
func (s *Store) Save(server string, pair models.SessionPair) error {
	if pair.RefreshToken == "" {
		return s.Clear()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(Record{
		Server:    server,
		Access:    pair.AccessToken,
		Refresh:   pair.RefreshToken,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	log.Debug().Str("path", s.path).Msg("session saved")
	return nil
}

func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
