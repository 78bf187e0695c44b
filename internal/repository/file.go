package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/shopspring/decimal"
)

const (
	storageVersion = 1
	statePrefix    = "wallet."
	entriesFile    = "wallet.config_entries"
)

type envelope struct {
	Version int             `json:"version"`
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
}

type stateData struct {
	State decimal.Decimal `json:"state"`
}

// FileStore keeps one file per sensor plus one file of config entries
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the storage directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) statePath(entityID string) string {
	return filepath.Join(s.dir, statePrefix+url.PathEscape(entityID))
}

// LoadState reads the persisted state of a sensor
func (s *FileStore) LoadState(_ context.Context, entityID string) (decimal.Decimal, bool, error) {
	var data stateData
	found, err := s.read(s.statePath(entityID), &data)
	if err != nil || !found {
		return decimal.Zero, false, err
	}
	return data.State, true, nil
}

// SaveState writes the state of a sensor
func (s *FileStore) SaveState(_ context.Context, entityID string, state decimal.Decimal) error {
	return s.write(s.statePath(entityID), entityID, stateData{State: state})
}

// DeleteState removes the file of a sensor
func (s *FileStore) DeleteState(_ context.Context, entityID string) error {
	err := os.Remove(s.statePath(entityID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state of %s: %w", entityID, err)
	}
	return nil
}

// SaveEntry adds or replaces a config entry
func (s *FileStore) SaveEntry(_ context.Context, entry *models.ConfigEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadEntries()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].EntryID == entry.EntryID {
			entry.CreatedAt = entries[i].CreatedAt
			entries[i] = *entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, *entry)
	}
	return s.write(filepath.Join(s.dir, entriesFile), entriesFile, entries)
}

// ListEntries returns the config entries in insertion order
func (s *FileStore) ListEntries(_ context.Context) ([]models.ConfigEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadEntries()
}

// DeleteEntry removes a config entry
func (s *FileStore) DeleteEntry(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadEntries()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].EntryID == entryID {
			entries = append(entries[:i], entries[i+1:]...)
			return s.write(filepath.Join(s.dir, entriesFile), entriesFile, entries)
		}
	}
	return ErrEntryNotFound
}

func (s *FileStore) loadEntries() ([]models.ConfigEntry, error) {
	var entries []models.ConfigEntry
	if _, err := s.read(filepath.Join(s.dir, entriesFile), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) read(path string, v interface{}) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if env.Version != storageVersion {
		return false, fmt.Errorf("unsupported storage version %d in %s", env.Version, path)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

// write replaces path atomically
func (s *FileStore) write(path, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	raw, err := json.MarshalIndent(envelope{Version: storageVersion, Key: key, Data: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
