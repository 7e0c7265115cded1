package ml

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/repository/memory"
	applogger "SentiCast/pkg/logger"
)

func trainedArtifact(t *testing.T, version string) *Artifact {
	t.Helper()
	X, y := separable(120, 11)
	scaler, err := FitStandardScaler(X)
	require.NoError(t, err)
	scaled, err := scaler.Transform(X)
	require.NoError(t, err)
	c, err := Fit(scaled, y, DefaultParams())
	require.NoError(t, err)
	return &Artifact{
		Format:       FormatVersion,
		Version:      version,
		FeatureNames: []string{"a", "b", "c", "d"},
		Scaler:       scaler,
		Classifier:   c,
		TrainedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestArtifactRoundTripPredictsIdentically(t *testing.T) {
	a := trainedArtifact(t, "v1")
	blob, err := a.Marshal()
	require.NoError(t, err)

	b, err := UnmarshalArtifact(blob)
	require.NoError(t, err)

	x := []float64{0.3, -1, 2, 0.5}
	up1, down1, err := a.Predict(x)
	require.NoError(t, err)
	up2, down2, err := b.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, up1, up2)
	assert.Equal(t, down1, down2)
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	_, err := UnmarshalArtifact([]byte(`{"format":1,"version":"v1"}`))
	assert.Error(t, err)

	_, err = UnmarshalArtifact([]byte(`not json`))
	assert.Error(t, err)

	a := trainedArtifact(t, "v1")
	a.FeatureNames = a.FeatureNames[:2]
	_, err = a.Marshal()
	assert.Error(t, err)
}

func TestRegistryPublishAndLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewArtifactStore()
	r := NewRegistry(store, applogger.NewNop())

	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, models.ErrArtifactMissing)
	assert.Nil(t, r.Current())

	a := trainedArtifact(t, "v1")
	require.NoError(t, r.Publish(ctx, a))
	assert.Same(t, a, r.Current())

	loaded, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, a, loaded)

	other := NewRegistry(store, applogger.NewNop())
	fresh, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", fresh.Version)
}

func TestRegistryCorruptBlobIsMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewArtifactStore()
	require.NoError(t, store.Save(ctx, "broken", []byte("{")))

	_, err := NewRegistry(store, applogger.NewNop()).Load(ctx)
	assert.ErrorIs(t, err, models.ErrArtifactMissing)
}
