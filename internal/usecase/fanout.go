package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"SentiCast/internal/domain/models"
)

// assetFunc processes one asset. A returned error fails that asset only.
type assetFunc func(ctx context.Context, i int, a models.Asset) error

// forEachAsset runs fn over assets on at most workers goroutines. Per-asset
// errors are collected by asset ID and never stop the batch; only context
// cancellation aborts it.
func forEachAsset(ctx context.Context, assets []models.Asset, workers int, fn assetFunc) (map[string]error, error) {
	if workers < 1 {
		workers = 1
	}
	var (
		mu     sync.Mutex
		failed = map[string]error{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range assets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, i, a); err != nil {
				mu.Lock()
				failed[a.ID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed, err
	}
	if err := ctx.Err(); err != nil {
		return failed, err
	}
	return failed, nil
}
