package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SENTICAST_"

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"market" validate:"required"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		PricesTable      string        `yaml:"prices_table" default:"daily_prices"`
		ArticlesTable    string        `yaml:"articles_table" default:"news_articles"`
		AssetsTable      string        `yaml:"assets_table" default:"assets"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn" validate:"required"`
		MaxConns        int32         `yaml:"max_conns" default:"10"`
		MinConns        int32         `yaml:"min_conns" default:"1"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	} `yaml:"postgres"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"senticast"`
		// Current-pointer entries expire sooner than blobs so a retrain on another host is picked up.
		ArtifactPointerTTL time.Duration `yaml:"artifact_pointer_ttl" default:"1m"`
		ArtifactBlobTTL    time.Duration `yaml:"artifact_blob_ttl" default:"24h"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		Workers    int           `yaml:"workers" default:"1" validate:"min=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Topics       struct {
			Predictions string `yaml:"predictions" default:"senticast.predictions"`
			Anomalies   string `yaml:"anomalies" default:"senticast.anomalies"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Pipeline struct {
		Workers     int `yaml:"workers" default:"4" validate:"min=1"`
		HistoryDays int `yaml:"history_days" validate:"min=0"`
	} `yaml:"pipeline"`
	Features   Features   `yaml:"features"`
	Dataset    Dataset    `yaml:"dataset"`
	Training   Training   `yaml:"training"`
	Classifier Classifier `yaml:"classifier"`
	Anomaly    Anomaly    `yaml:"anomaly"`
	Prediction Prediction `yaml:"prediction"`
}

// Features holds the window sizes and thresholds of the feature vector.
type Features struct {
	PriceWindow         int     `yaml:"price_window" default:"7" validate:"min=2"`
	NewsCurrentDays     int     `yaml:"news_current_days" default:"3" validate:"min=1"`
	NewsPreviousDays    int     `yaml:"news_previous_days" default:"3" validate:"min=1"`
	PositiveThreshold   float64 `yaml:"positive_threshold" default:"0.05"`
	NegativeThreshold   float64 `yaml:"negative_threshold" default:"-0.05"`
	SpikeMinCount       int     `yaml:"spike_min_count" default:"5"`
	SpikeMinChange      float64 `yaml:"spike_min_change" default:"3"`
	DivergenceTrend     float64 `yaml:"divergence_trend" default:"-1"`
	DivergenceSentiment float64 `yaml:"divergence_sentiment" default:"0.1"`
}

type Dataset struct {
	NoiseCutoffPercent float64 `yaml:"noise_cutoff_percent" default:"0.5" validate:"min=0"`
	ExportPath         string  `yaml:"export_path"`
}

type Training struct {
	MinExamples   int           `yaml:"min_examples" default:"50" validate:"min=2"`
	TrainFraction float64       `yaml:"train_fraction" default:"0.8" validate:"gt=0,lt=1"`
	ModelVersion  string        `yaml:"model_version" default:"classifier_v2" validate:"required"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"10m"`
	ReportPath    string        `yaml:"report_path"`
}

// Classifier mirrors the gradient boosting hyperparameters.
type Classifier struct {
	NEstimators     int     `yaml:"n_estimators" default:"30" validate:"min=1"`
	LearningRate    float64 `yaml:"learning_rate" default:"0.1" validate:"gt=0"`
	MaxDepth        int     `yaml:"max_depth" default:"3" validate:"min=1"`
	MinSamplesSplit int     `yaml:"min_samples_split" default:"30" validate:"min=2"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" default:"15" validate:"min=1"`
	Subsample       float64 `yaml:"subsample" default:"0.7" validate:"gt=0,lte=1"`
	MaxFeatures     string  `yaml:"max_features" default:"sqrt" validate:"oneof=sqrt log2 all"`
	Seed            int64   `yaml:"seed" default:"42"`
}

type Anomaly struct {
	ThresholdPercent float64 `yaml:"threshold_percent" default:"1.5" validate:"gt=0"`
	NewsLookbackDays int     `yaml:"news_lookback_days" default:"3" validate:"min=0"`
}

type Prediction struct {
	MoveScalePercent float64 `yaml:"move_scale_percent" default:"1.5" validate:"gte=0"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with SENTICAST_* variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Features.NegativeThreshold >= c.Features.PositiveThreshold {
		return errors.New("features.negative_threshold must be below features.positive_threshold")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(name string, dst *float64) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			return
		}
		*dst = f
	}
	integer := func(name string, dst *int) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			return
		}
		*dst = n
	}

	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	str("POSTGRES_DSN", &c.Postgres.DSN)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	integer("PIPELINE_WORKERS", &c.Pipeline.Workers)
	integer("TRAINING_MIN_EXAMPLES", &c.Training.MinExamples)
	num("ANOMALY_THRESHOLD", &c.Anomaly.ThresholdPercent)
	num("DATASET_NOISE_CUTOFF", &c.Dataset.NoiseCutoffPercent)
	num("TRAINING_TRAIN_FRACTION", &c.Training.TrainFraction)
	str("DATASET_EXPORT_PATH", &c.Dataset.ExportPath)
	str("TRAINING_REPORT_PATH", &c.Training.ReportPath)

	return firstErr
}
