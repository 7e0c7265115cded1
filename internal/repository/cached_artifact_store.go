package repository

import (
	"context"
	"errors"
	"time"

	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/pkg/cache"
	applogger "SentiCast/pkg/logger"
)

const (
	artifactCurrentKey = "artifact:current"
	artifactBlobPrefix = "artifact:blob:"
)

// CachedArtifactStore fronts an ArtifactStore with Redis. The current-version
// pointer is cached briefly so a new publish from another process is picked up.
type CachedArtifactStore struct {
	next       domrepo.ArtifactStore
	cache      cache.Service
	pointerTTL time.Duration
	blobTTL    time.Duration
	l          *applogger.Logger
}

var _ domrepo.ArtifactStore = (*CachedArtifactStore)(nil)

func NewCachedArtifactStore(next domrepo.ArtifactStore, c cache.Service, pointerTTL, blobTTL time.Duration, l *applogger.Logger) *CachedArtifactStore {
	return &CachedArtifactStore{next: next, cache: c, pointerTTL: pointerTTL, blobTTL: blobTTL, l: l}
}

func (s *CachedArtifactStore) Save(ctx context.Context, version string, blob []byte) error {
	if err := s.next.Save(ctx, version, blob); err != nil {
		return err
	}
	if err := s.cache.SetBytes(ctx, artifactBlobPrefix+version, blob, s.blobTTL); err != nil {
		s.l.Warn("cache artifact blob", applogger.String("version", version), applogger.Error(err))
	}
	if err := s.cache.Set(ctx, artifactCurrentKey, version, s.pointerTTL); err != nil {
		s.l.Warn("cache artifact pointer", applogger.String("version", version), applogger.Error(err))
	}
	return nil
}

func (s *CachedArtifactStore) Load(ctx context.Context, version string) ([]byte, error) {
	blob, err := s.cache.GetBytes(ctx, artifactBlobPrefix+version)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("artifact cache read", applogger.String("version", version), applogger.Error(err))
	}
	blob, err = s.next.Load(ctx, version)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBytes(ctx, artifactBlobPrefix+version, blob, s.blobTTL); err != nil {
		s.l.Warn("cache artifact blob", applogger.String("version", version), applogger.Error(err))
	}
	return blob, nil
}

func (s *CachedArtifactStore) Current(ctx context.Context) (string, []byte, error) {
	var version string
	if err := s.cache.Get(ctx, artifactCurrentKey, &version); err == nil && version != "" {
		blob, err := s.Load(ctx, version)
		if err == nil {
			return version, blob, nil
		}
		s.l.Warn("cached artifact pointer is stale", applogger.String("version", version), applogger.Error(err))
	}

	version, blob, err := s.next.Current(ctx)
	if err != nil {
		return "", nil, err
	}
	if err := s.cache.SetBytes(ctx, artifactBlobPrefix+version, blob, s.blobTTL); err != nil {
		s.l.Warn("cache artifact blob", applogger.String("version", version), applogger.Error(err))
	}
	if err := s.cache.Set(ctx, artifactCurrentKey, version, s.pointerTTL); err != nil {
		s.l.Warn("cache artifact pointer", applogger.String("version", version), applogger.Error(err))
	}
	return version, blob, nil
}
