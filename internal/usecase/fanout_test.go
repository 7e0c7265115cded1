package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
)

func TestForEachAssetCollectsFailures(t *testing.T) {
	assets := []models.Asset{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	var calls int64

	failed, err := forEachAsset(context.Background(), assets, 2, func(_ context.Context, i int, a models.Asset) error {
		atomic.AddInt64(&calls, 1)
		if i%2 == 1 {
			return errors.New("boom " + a.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls)
	require.Len(t, failed, 2)
	assert.EqualError(t, failed["b"], "boom b")
	assert.EqualError(t, failed["d"], "boom d")
}

func TestForEachAssetStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	_, err := forEachAsset(ctx, []models.Asset{{ID: "a"}, {ID: "b"}}, 0, func(context.Context, int, models.Asset) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
