package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
postgres:
  dsn: postgres://localhost/senticast
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Features.PriceWindow)
	assert.Equal(t, 3, cfg.Features.NewsCurrentDays)
	assert.Equal(t, 3, cfg.Features.NewsPreviousDays)
	assert.InDelta(t, 0.5, cfg.Dataset.NoiseCutoffPercent, 1e-12)
	assert.Equal(t, 50, cfg.Training.MinExamples)
	assert.InDelta(t, 0.8, cfg.Training.TrainFraction, 1e-12)
	assert.Equal(t, 30, cfg.Classifier.NEstimators)
	assert.Equal(t, 3, cfg.Classifier.MaxDepth)
	assert.Equal(t, "sqrt", cfg.Classifier.MaxFeatures)
	assert.InDelta(t, 1.5, cfg.Anomaly.ThresholdPercent, 1e-12)
	assert.InDelta(t, 1.5, cfg.Prediction.MoveScalePercent, 1e-12)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := writeConfig(t, `
environment: prod
postgres:
  dsn: postgres://db/senticast
anomaly:
  threshold_percent: 2.5
classifier:
  n_estimators: 50
  max_features: all
server:
  read_timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cfg.Anomaly.ThresholdPercent, 1e-12)
	assert.Equal(t, 50, cfg.Classifier.NEstimators)
	assert.Equal(t, "all", cfg.Classifier.MaxFeatures)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
environment: test
postgres:
  dsn: postgres://localhost/senticast
training:
  train_fraction: 1.2
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"SENTICAST_POSTGRES_DSN":      "postgres://env/db",
		"SENTICAST_ANOMALY_THRESHOLD": "3.25",
		"SENTICAST_KAFKA_BROKERS":     "k1:9092,k2:9092",
		"SENTICAST_PIPELINE_WORKERS":  "8",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "postgres://env/db", cfg.Postgres.DSN)
	assert.InDelta(t, 3.25, cfg.Anomaly.ThresholdPercent, 1e-12)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	cfg := Default()
	lookup := func(k string) (string, bool) {
		if k == "SENTICAST_ANOMALY_THRESHOLD" {
			return "high", true
		}
		return "", false
	}
	assert.Error(t, cfg.applyEnv(lookup))
}
