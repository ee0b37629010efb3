package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/heartmarshall/labsim/internal/domain"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

// NewMemory creates an empty Memory store. URLs are rooted at baseURL, or
// use the memory:// scheme when it is empty.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &Memory{objects: make(map[string]Object), baseURL: baseURL}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Key: key, ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) URL(_ context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return joinURL(m.baseURL, key), nil
}
