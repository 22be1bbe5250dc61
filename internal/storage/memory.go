package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryImageStore is an in-process ImageStore used by tests and local
// development without a MinIO deployment.
type MemoryImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailUploads forces Upload to error, exercising upstream-failure paths.
	FailUploads bool
	// FailDestroys forces Destroy to error, exercising best-effort cleanup.
	FailDestroys bool
}

// NewMemoryImageStore returns an empty in-memory store.
func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{objects: make(map[string][]byte)}
}

// Upload records the payload under folder/publicID.
func (s *MemoryImageStore) Upload(ctx context.Context, data []byte, folder, publicID string) (*UploadResult, error) {
	if s.FailUploads {
		return nil, errors.New("memory image store: upload disabled")
	}
	if len(data) == 0 {
		return nil, errors.New("memory image store: empty payload")
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	key := objectKey(folder, publicID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)

	return &UploadResult{URL: fmt.Sprintf("memory://%s", key), PublicID: key}, nil
}

// Destroy removes a stored payload.
func (s *MemoryImageStore) Destroy(ctx context.Context, publicID string) error {
	if s.FailDestroys {
		return errors.New("memory image store: destroy disabled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[publicID]; !ok {
		return fmt.Errorf("memory image store: object %s not found", publicID)
	}
	delete(s.objects, publicID)
	return nil
}

// Len reports the number of stored objects.
func (s *MemoryImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Has reports whether the given public id is stored.
func (s *MemoryImageStore) Has(publicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[publicID]
	return ok
}
