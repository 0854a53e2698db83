package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	sessionFile = "session.json"
	tokenFile   = "token"
)

// FileStore keeps the pair as two files in a state directory. Each file
// is written to a temporary name and renamed into place, so individual
// keys are never observed half-written.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes both keys.
func (s *FileStore) Save(ctx context.Context, rec Record) error {
	if err := s.writeFile(tokenFile, []byte(rec.Token)); err != nil {
		return err
	}
	return s.writeFile(sessionFile, rec.Session)
}

// Load returns the persisted pair, or ErrNoState when either file is
// missing or empty.
func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	session, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	token, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read token state: %w", err)
	}

	if len(session) == 0 || len(token) == 0 {
		return nil, ErrNoState
	}

	return &Record{Session: session, Token: string(token)}, nil
}

// Clear removes both files.
func (s *FileStore) Clear(ctx context.Context) error {
	for _, name := range []string{sessionFile, tokenFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear state: %w", err)
		}
	}
	return nil
}

func (s *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit state file: %w", err)
	}
	return nil
}
