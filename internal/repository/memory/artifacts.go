package memory

import (
	"context"
	"fmt"
	"sync"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
)

// ArtifactStore keeps model blobs in memory.
type ArtifactStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	current string
}

var _ domrepo.ArtifactStore = (*ArtifactStore)(nil)

func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{blobs: make(map[string][]byte)}
}

func (a *ArtifactStore) Save(_ context.Context, version string, blob []byte) error {
	if version == "" {
		return fmt.Errorf("artifact version is required")
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[version] = cp
	a.current = version
	return nil
}

func (a *ArtifactStore) Load(_ context.Context, version string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	blob, ok := a.blobs[version]
	if !ok {
		return nil, models.ArtifactMissing("version "+version, nil)
	}
	return blob, nil
}

func (a *ArtifactStore) Current(ctx context.Context) (string, []byte, error) {
	a.mu.RLock()
	version := a.current
	a.mu.RUnlock()
	if version == "" {
		return "", nil, models.ArtifactMissing("no artifact saved", nil)
	}
	blob, err := a.Load(ctx, version)
	return version, blob, err
}

// Versions returns the number of stored artifacts.
func (a *ArtifactStore) Versions() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}
