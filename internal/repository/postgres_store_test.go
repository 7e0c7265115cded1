package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
)

var testDay = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUpsertAnomalyEvent(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGSignalStore(mock)
	e := models.PriceAnomalyEvent{
		AssetID:            "btc",
		Date:               testDay.Add(13 * time.Hour),
		EventType:          models.EventSpike,
		ChangePercent:      2.5,
		PriceBefore:        decimal.NewFromInt(100),
		PriceAfter:         decimal.RequireFromString("102.5"),
		PrecedingNewsCount: 4,
	}

	mock.ExpectQuery("INSERT INTO price_anomaly_events").
		WithArgs("btc", testDay, "spike", 2.5, pgxmock.AnyArg(), pgxmock.AnyArg(), 4, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO price_anomaly_events").
		WithArgs("btc", testDay, "spike", 2.5, pgxmock.AnyArg(), pgxmock.AnyArg(), 4, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(false))

	created, err := store.UpsertAnomalyEvent(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.UpsertAnomalyEvent(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDirectionPredictionError(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGSignalStore(mock)

	mock.ExpectQuery("INSERT INTO direction_predictions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := store.UpsertDirectionPrediction(context.Background(), models.DirectionPrediction{
		AssetID:        "eth",
		PredictionDate: testDay,
		Direction:      models.DirectionDown,
		SignalStrength: models.StrengthWeak,
		CreatedAt:      testDay,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "upsert direction prediction eth")
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, models.ErrUpstreamData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAnomalyEventWriteError(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGSignalStore(mock)

	mock.ExpectQuery("INSERT INTO price_anomaly_events").
		WithArgs("btc", testDay, "crash", -3.0, pgxmock.AnyArg(), pgxmock.AnyArg(), 0, pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))

	_, err := store.UpsertAnomalyEvent(context.Background(), models.PriceAnomalyEvent{
		AssetID:       "btc",
		Date:          testDay,
		EventType:     models.EventCrash,
		ChangePercent: -3,
	})
	assert.ErrorContains(t, err, "upsert anomaly event btc: deadlock detected")
	assert.NotErrorIs(t, err, models.ErrUpstreamData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDirectionPrediction(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGSignalStore(mock)
	p := models.DirectionPrediction{
		AssetID:                "eth",
		PredictionDate:         testDay,
		Direction:              models.DirectionUp,
		Confidence:             0.8,
		ProbabilityUp:          0.8,
		ProbabilityDown:        0.2,
		EstimatedChangePercent: 1.2,
		CurrentPrice:           decimal.NewFromInt(100),
		EstimatedPrice:         decimal.RequireFromString("101.2"),
		ModelVersion:           "classifier_v2-20250401T120000",
		SignalStrength:         models.StrengthStrong,
		CreatedAt:              testDay,
	}

	mock.ExpectQuery("INSERT INTO direction_predictions").
		WithArgs("eth", testDay, "UP", 0.8, 0.8, 0.2, 1.2, pgxmock.AnyArg(), pgxmock.AnyArg(),
			"classifier_v2-20250401T120000", "strong", testDay).
		WillReturnRows(pgxmock.NewRows([]string{"created"}).AddRow(true))

	created, err := store.UpsertDirectionPrediction(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactSaveIsTransactional(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGArtifactStore(mock)
	blob := []byte(`{"version":"v1"}`)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO model_artifacts").WithArgs("v1", blob).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO model_current").WithArgs("v1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), "v1", blob))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactSaveRollsBack(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGArtifactStore(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO model_artifacts").WithArgs("v1", []byte("x")).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO model_current").WithArgs("v1").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), "v1", []byte("x"))
	assert.ErrorContains(t, err, "fk violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactCurrent(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGArtifactStore(mock)
	q := regexp.QuoteMeta(currentArtifactSQL)

	mock.ExpectQuery(q).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(q).WillReturnRows(pgxmock.NewRows([]string{"version", "blob"}).AddRow("v2", []byte("blob")))

	_, _, err := store.Current(context.Background())
	assert.ErrorIs(t, err, models.ErrArtifactMissing)

	version, blob, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
	assert.Equal(t, []byte("blob"), blob)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactLoadMissing(t *testing.T) {
	mock := newMockPool(t)
	store := NewPGArtifactStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta(loadArtifactSQL)).WithArgs("v9").WillReturnError(pgx.ErrNoRows)

	_, err := store.Load(context.Background(), "v9")
	assert.ErrorIs(t, err, models.ErrArtifactMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
