package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/pkg/postgres"
)

const (
	insertArtifactSQL = `INSERT INTO model_artifacts (version, blob) VALUES ($1, $2)
ON CONFLICT (version) DO UPDATE SET blob = EXCLUDED.blob`
	setCurrentArtifactSQL = `INSERT INTO model_current (id, version, updated_at) VALUES (TRUE, $1, now())
ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`
	loadArtifactSQL    = `SELECT blob FROM model_artifacts WHERE version = $1`
	currentArtifactSQL = `SELECT a.version, a.blob FROM model_current c JOIN model_artifacts a ON a.version = c.version WHERE c.id`
)

// PGArtifactStore keeps every artifact version and a single current pointer.
type PGArtifactStore struct {
	db postgres.Pool
}

var _ domrepo.ArtifactStore = (*PGArtifactStore)(nil)

func NewPGArtifactStore(db postgres.Pool) *PGArtifactStore {
	return &PGArtifactStore{db: db}
}

// Save stores the blob and moves the current pointer in one transaction.
func (s *PGArtifactStore) Save(ctx context.Context, version string, blob []byte) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, insertArtifactSQL, version, blob); err != nil {
		return fmt.Errorf("insert artifact %s: %w", version, err)
	}
	if _, err = tx.Exec(ctx, setCurrentArtifactSQL, version); err != nil {
		return fmt.Errorf("set current artifact %s: %w", version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit artifact %s: %w", version, err)
	}
	return nil
}

func (s *PGArtifactStore) Load(ctx context.Context, version string) ([]byte, error) {
	var blob []byte
	if err := s.db.QueryRow(ctx, loadArtifactSQL, version).Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ArtifactMissing("version "+version, nil)
		}
		return nil, fmt.Errorf("load artifact %s: %w", version, err)
	}
	return blob, nil
}

func (s *PGArtifactStore) Current(ctx context.Context) (string, []byte, error) {
	var (
		version string
		blob    []byte
	)
	if err := s.db.QueryRow(ctx, currentArtifactSQL).Scan(&version, &blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, models.ArtifactMissing("no artifact published", nil)
		}
		return "", nil, fmt.Errorf("load current artifact: %w", err)
	}
	return version, blob, nil
}
