package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key is absent from the store. Callers
// that need a credential fail closed on it.
var ErrNotFound = fmt.Errorf("secret not found")

// Store is a read-only key-value property store.
type Store interface {
	Get(key string) (string, error)
}

// EnvStore resolves secrets from process environment variables.
type EnvStore struct{}

func (EnvStore) Get(key string) (string, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

// FileStore resolves secrets from a flat JSON object file, read once
// on first use.
type FileStore struct {
	Path string

	once   sync.Once
	values map[string]string
	err    error
}

func (s *FileStore) Get(key string) (string, error) {
	s.once.Do(func() {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			s.err = fmt.Errorf("read secrets file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &s.values); err != nil {
			s.err = fmt.Errorf("parse secrets file: %w", err)
		}
	})
	if s.err != nil {
		return "", s.err
	}
	val, ok := s.values[key]
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

// NewChain builds the standard lookup order: process environment
// first, then an optional flat JSON secrets file.
func NewChain(filePath string) Chain {
	chain := Chain{EnvStore{}}
	if filePath != "" {
		chain = append(chain, &FileStore{Path: filePath})
	}
	return chain
}

// Chain tries each store in order and returns the first hit.
type Chain []Store

func (c Chain) Get(key string) (string, error) {
	for _, s := range c {
		val, err := s.Get(key)
		if err == nil {
			return val, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}
