package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itiky/educhain-dao/model"
)

// FileStore implements DelegationStore keeping the delegation in a YAML file,
// so a dashboard restart can restore the session.
type FileStore struct {
	sync.Mutex
	path string
}

type storedDelegation struct {
	Principal  string    `yaml:"principal"`
	Delegation string    `yaml:"delegation"`
	ExpiresAt  time.Time `yaml:"expires_at"`
}

// Load implements DelegationStore interface.
func (s *FileStore) Load() (Identity, bool, error) {
	s.Lock()
	defer s.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf("reading file (%s): %w", s.path, err)
	}

	var stored storedDelegation
	if err := yaml.Unmarshal(raw, &stored); err != nil {
		return Identity{}, false, fmt.Errorf("YAML unmarshal: %w", err)
	}
	if stored.Delegation == "" {
		return Identity{}, false, nil
	}

	return Identity{
		Principal:  model.Principal(stored.Principal),
		Delegation: stored.Delegation,
		ExpiresAt:  stored.ExpiresAt,
	}, true, nil
}

// Save implements DelegationStore interface.
func (s *FileStore) Save(id Identity) error {
	s.Lock()
	defer s.Unlock()

	raw, err := yaml.Marshal(storedDelegation{
		Principal:  string(id.Principal),
		Delegation: id.Delegation,
		ExpiresAt:  id.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("YAML marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir (%s): %w", filepath.Dir(s.path), err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write to file (%s): %w", s.path, err)
	}

	return nil
}

// Clear implements DelegationStore interface.
func (s *FileStore) Clear() error {
	s.Lock()
	defer s.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file (%s): %w", s.path, err)
	}

	return nil
}

// NewFileStore creates a new FileStore object.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%s: empty", "path")
	}

	return &FileStore{path: path}, nil
}
