package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Memory is an in-process bucket for development and tests. It satisfies
// both Private and Public.
type Memory struct {
	mu      sync.RWMutex
	name    string
	objects map[string]memObject

	// PutErr and DeleteErr, when set, are consulted before each write so
	// callers can inject failures.
	PutErr    func(key string) error
	DeleteErr func(key string) error
}

type memObject struct {
	body        []byte
	contentType string
}

func NewMemory(name string) *Memory {
	return &Memory{name: name, objects: make(map[string]memObject)}
}

func (m *Memory) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.PutErr != nil {
		if err := m.PutErr(key); err != nil {
			return err
		}
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	m.mu.Lock()
	m.objects[key] = memObject{body: cp, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.DeleteErr != nil {
		if err := m.DeleteErr(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Get returns a stored object's body.
func (m *Memory) Get(key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return o.body, o.contentType, nil
}

func (m *Memory) Has(key string) bool {
	_, _, err := m.Get(key)
	return err == nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !m.Has(key) {
		return "", ErrNotFound
	}
	exp := time.Now().Add(clampTTL(ttl)).Unix()
	return fmt.Sprintf("memory://%s/%s?expires=%d", m.name, url.PathEscape(key), exp), nil
}

func (m *Memory) URL(key string) string {
	return fmt.Sprintf("memory://%s/%s", m.name, url.PathEscape(key))
}
