package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Memory struct {
	mu sync.RWMutex
	v  string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v, nil
}

func (m *Memory) Save(_ context.Context, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = secret
	return nil
}

func (m *Memory) Clear(context.Context) error {
	return m.Save(context.Background(), "")
}

// File stores the secret in a single owner-readable file.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Load(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *File) Save(_ context.Context, secret string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(secret), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
