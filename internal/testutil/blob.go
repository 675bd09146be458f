package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/dom/wartracker/internal/blob"
)

// MemoryBlobBaseURL prefixes every URL returned by MemoryBlobStore
const MemoryBlobBaseURL = "https://blob.test/"

// StoredObject is one object kept by MemoryBlobStore
type StoredObject struct {
	Key         string
	ContentType string
	Body        []byte
}

// MemoryBlobStore is an in-memory blob.Store
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	Err     error
}

var _ blob.Store = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string]StoredObject)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, obj blob.Object) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.Key] = StoredObject{Key: obj.Key, ContentType: obj.ContentType, Body: body}
	return MemoryBlobBaseURL + obj.Key, nil
}

// Objects returns a copy of everything stored so far
func (s *MemoryBlobStore) Objects() []StoredObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StoredObject, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out
}
