package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FormatVersion identifies the artifact blob layout.
const FormatVersion = 1

type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Report summarizes one training run.
type Report struct {
	Version           string              `json:"version"`
	TrainedAt         time.Time           `json:"trained_at"`
	Examples          int                 `json:"examples"`
	TrainSize         int                 `json:"train_size"`
	TestSize          int                 `json:"test_size"`
	TrainFrom         time.Time           `json:"train_from"`
	TrainTo           time.Time           `json:"train_to"`
	TestFrom          time.Time           `json:"test_from"`
	TestTo            time.Time           `json:"test_to"`
	UpShare           float64             `json:"up_share"`
	TrainAccuracy     float64             `json:"train_accuracy"`
	TestAccuracy      float64             `json:"test_accuracy"`
	AUC               *float64            `json:"auc,omitempty"`
	OverfittingGap    float64             `json:"overfitting_gap"`
	Confusion         ConfusionMatrix     `json:"confusion_matrix"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
	PriceImportance   float64             `json:"price_importance"`
	NewsImportance    float64             `json:"news_importance"`
	Params            Params              `json:"params"`
}

// Artifact bundles everything inference needs. It is never mutated after training.
type Artifact struct {
	Format       int             `json:"format"`
	Version      string          `json:"version"`
	FeatureNames []string        `json:"feature_names"`
	Scaler       *StandardScaler `json:"scaler"`
	Classifier   *Classifier     `json:"classifier"`
	TrainedAt    time.Time       `json:"trained_at"`
	Report       *Report         `json:"report,omitempty"`
}

func (a *Artifact) Validate() error {
	if a == nil {
		return errors.New("artifact is nil")
	}
	if a.Format != FormatVersion {
		return fmt.Errorf("artifact format %d, want %d", a.Format, FormatVersion)
	}
	if a.Version == "" {
		return errors.New("artifact version is empty")
	}
	if a.Scaler == nil || a.Classifier == nil {
		return errors.New("artifact is missing scaler or classifier")
	}
	if err := a.Scaler.validate(); err != nil {
		return err
	}
	if err := a.Classifier.validate(); err != nil {
		return err
	}
	if len(a.FeatureNames) != a.Scaler.Dim() || len(a.FeatureNames) != a.Classifier.NFeatures {
		return fmt.Errorf("artifact has %d feature names, scaler %d, classifier %d",
			len(a.FeatureNames), a.Scaler.Dim(), a.Classifier.NFeatures)
	}
	return nil
}

func (a *Artifact) Marshal() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(a)
}

func UnmarshalArtifact(blob []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &a, nil
}

// Predict scales the raw features (ordered as FeatureNames) and returns class probabilities.
func (a *Artifact) Predict(features []float64) (up, down float64, err error) {
	scaled, err := a.Scaler.TransformRow(features)
	if err != nil {
		return 0, 0, err
	}
	return a.Classifier.PredictProba(scaled)
}
