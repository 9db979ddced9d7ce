package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenStore persists the bearer token between calls.
type TokenStore interface {
	Load() (string, error)
	Save(token string, expiresAt time.Time) error
	Clear() error
}

// MemoryTokenStore keeps the token for the life of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Save(token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.Save("", time.Time{})
}

type tokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// FileTokenStore keeps the token in a JSON file readable only by the owner.
// An expired token loads as empty.
type FileTokenStore struct {
	path string
	now  func() time.Time
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path, now: time.Now}
}

// DefaultTokenPath returns $XDG_DATA_HOME/spendhelm/token.json, falling back
// to ~/.local/share.
func DefaultTokenPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "spendhelm", "token.json"), nil
}

func (f *FileTokenStore) Path() string {
	return f.path
}

func (f *FileTokenStore) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if !tf.ExpiresAt.IsZero() && !f.now().Before(tf.ExpiresAt) {
		return "", nil
	}
	return tf.Token, nil
}

func (f *FileTokenStore) Save(token string, expiresAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(tokenFile{Token: token, ExpiresAt: expiresAt, SavedAt: f.now()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(f.path, 0o600)
}

func (f *FileTokenStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
