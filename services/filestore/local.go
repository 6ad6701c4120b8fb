// Package filestore stores generated artifacts (receipt PDFs) on local disk.
package filestore

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// LocalStore saves artifacts under a directory rooted at the working dir.
// Save returns a ref relative to that root so the DB stays portable across hosts.
type LocalStore struct {
	root string
}

var _ core.ArtifactStore = (*LocalStore)(nil)

func NewLocalStore(conf *core.Config) (*LocalStore, error) {
	root := filepath.Join(conf.WorkDir, conf.Receipt.Dir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating artifact dir")
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	name = filepath.Base(name) // no path traversal
	if err := ioutil.WriteFile(filepath.Join(s.root, name), data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing artifact")
	}
	return name, nil
}

func (s *LocalStore) Load(ctx context.Context, ref string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(s.root, filepath.Base(ref)))
	if err != nil {
		return nil, errors.Wrap(err, "reading artifact")
	}
	return data, nil
}

// MemStore keeps artifacts in memory. Used in tests.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ core.ArtifactStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[name] = cp
	return name, nil
}

func (s *MemStore) Load(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[ref]
	if !ok {
		return nil, errors.New("artifact not found: " + ref)
	}
	return data, nil
}

// Len reports the number of stored artifacts.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
