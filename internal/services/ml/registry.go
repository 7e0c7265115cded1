package ml

import (
	"context"
	"fmt"
	"sync/atomic"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	applogger "SentiCast/pkg/logger"
)

// Registry holds the in-process artifact. Readers get an immutable snapshot;
// a new artifact becomes visible only after it is fully persisted.
type Registry struct {
	store   domrepo.ArtifactStore
	current atomic.Pointer[Artifact]
	l       *applogger.Logger
}

func NewRegistry(store domrepo.ArtifactStore, l *applogger.Logger) *Registry {
	return &Registry{store: store, l: l}
}

// Current returns the loaded artifact or nil.
func (r *Registry) Current() *Artifact {
	return r.current.Load()
}

// Publish persists a and then swaps it in.
func (r *Registry) Publish(ctx context.Context, a *Artifact) error {
	blob, err := a.Marshal()
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := r.store.Save(ctx, a.Version, blob); err != nil {
		return fmt.Errorf("save artifact %s: %w", a.Version, err)
	}
	r.current.Store(a)
	r.l.Info("artifact published",
		applogger.String("version", a.Version),
		applogger.Int("bytes", len(blob)))
	return nil
}

// Load returns the store's current artifact, reusing the loaded one when the
// version is unchanged. Missing artifacts surface as models.ErrArtifactMissing.
func (r *Registry) Load(ctx context.Context) (*Artifact, error) {
	version, blob, err := r.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cur := r.current.Load(); cur != nil && cur.Version == version {
		return cur, nil
	}
	a, err := UnmarshalArtifact(blob)
	if err != nil {
		return nil, models.ArtifactMissing("artifact "+version+" is unreadable", err)
	}
	r.current.Store(a)
	r.l.Info("artifact loaded", applogger.String("version", a.Version))
	return a, nil
}
