package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"SentiCast/internal/domain/models"
	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/services/ml"
	applogger "SentiCast/pkg/logger"
)

const trainingLockKey = "lock:training"

type TrainerConfig struct {
	MinExamples   int
	TrainFraction float64
	ModelVersion  string
	LockTTL       time.Duration
	ReportPath    string
	Params        ml.Params
}

// ModelTrainer fits the direction classifier on a causal split and publishes the artifact.
type ModelTrainer struct {
	registry *ml.Registry
	locker   domrepo.Locker
	metrics  domrepo.Metrics
	cfg      TrainerConfig
	now      func() time.Time
	l        *applogger.Logger
}

// NewModelTrainer creates a trainer. locker may be nil for single-process use.
func NewModelTrainer(registry *ml.Registry, locker domrepo.Locker, metrics domrepo.Metrics, cfg TrainerConfig, l *applogger.Logger) *ModelTrainer {
	return &ModelTrainer{registry: registry, locker: locker, metrics: metrics, cfg: cfg, now: time.Now, l: l}
}

// Train fits, evaluates and publishes a new artifact. On any error the
// previously published artifact stays current.
func (t *ModelTrainer) Train(ctx context.Context, examples []models.TrainingExample) (*ml.Artifact, error) {
	if len(examples) < t.cfg.MinExamples {
		return nil, models.TrainingFailed(models.ErrDatasetTooSmall, "%d examples, need at least %d", len(examples), t.cfg.MinExamples)
	}

	if t.locker != nil {
		release, ok, err := t.locker.TryLock(ctx, trainingLockKey, t.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire training lock: %w", err)
		}
		if !ok {
			return nil, models.TrainingFailed(models.ErrTrainingFailed, "another training run is in progress")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				t.l.Warn("release training lock", applogger.Error(err))
			}
		}()
	}

	artifact, err := t.fit(examples)
	if err != nil {
		return nil, err
	}
	if err := t.registry.Publish(ctx, artifact); err != nil {
		return nil, fmt.Errorf("publish artifact: %w", err)
	}

	rep := artifact.Report
	auc := math.NaN()
	if rep.AUC != nil {
		auc = *rep.AUC
	}
	if t.metrics != nil {
		t.metrics.RecordModel(artifact.Version, rep.TestAccuracy, auc, rep.OverfittingGap)
	}
	t.l.Info("model trained",
		applogger.String("version", artifact.Version),
		applogger.Int("train", rep.TrainSize),
		applogger.Int("test", rep.TestSize),
		applogger.Float64("train_accuracy", rep.TrainAccuracy),
		applogger.Float64("test_accuracy", rep.TestAccuracy),
		applogger.Float64("auc", auc),
		applogger.Float64("overfitting_gap", rep.OverfittingGap),
		applogger.Float64("price_importance", rep.PriceImportance),
		applogger.Float64("news_importance", rep.NewsImportance))
	if rep.OverfittingGap > 0.15 {
		t.l.Warn("large train/test accuracy gap", applogger.Float64("overfitting_gap", rep.OverfittingGap))
	}

	if t.cfg.ReportPath != "" {
		if err := writeReport(t.cfg.ReportPath, rep); err != nil {
			t.l.Warn("write training report", applogger.String("path", t.cfg.ReportPath), applogger.Error(err))
		}
	}
	return artifact, nil
}

// fit builds the artifact without side effects.
func (t *ModelTrainer) fit(examples []models.TrainingExample) (*ml.Artifact, error) {
	sorted := make([]models.TrainingExample, len(examples))
	copy(sorted, examples)
	sortExamples(sorted)

	train, test := causalSplit(sorted, t.cfg.TrainFraction)
	if len(train) == 0 || len(test) == 0 {
		return nil, models.TrainingFailed(models.ErrDatasetTooSmall, "split of %d examples left an empty side", len(sorted))
	}

	names := append([]string(nil), models.ClassifierFeatures...)
	xTrain, yTrain, err := matrix(train, names)
	if err != nil {
		return nil, err
	}
	xTest, yTest, err := matrix(test, names)
	if err != nil {
		return nil, err
	}
	if singleClass(yTrain) {
		return nil, models.TrainingFailed(models.ErrSingleClass, "training split has only label %d", yTrain[0])
	}

	scaler, err := ml.FitStandardScaler(xTrain)
	if err != nil {
		return nil, models.TrainingFailed(models.ErrTrainingFailed, "fit scaler: %v", err)
	}
	sTrain, err := scaler.Transform(xTrain)
	if err != nil {
		return nil, models.TrainingFailed(models.ErrTrainingFailed, "scale train: %v", err)
	}
	sTest, err := scaler.Transform(xTest)
	if err != nil {
		return nil, models.TrainingFailed(models.ErrTrainingFailed, "scale test: %v", err)
	}

	clf, err := ml.Fit(sTrain, yTrain, t.cfg.Params)
	if err != nil {
		return nil, models.TrainingFailed(models.ErrTrainingFailed, "fit classifier: %v", err)
	}

	trainedAt := t.now().UTC()
	version := fmt.Sprintf("%s-%s", t.cfg.ModelVersion, trainedAt.Format("20060102T150405"))
	rep, err := evaluate(clf, sTrain, yTrain, sTest, yTest, names)
	if err != nil {
		return nil, models.TrainingFailed(models.ErrTrainingFailed, "evaluate: %v", err)
	}
	rep.Version = version
	rep.TrainedAt = trainedAt
	rep.Examples = len(sorted)
	rep.TrainFrom, rep.TrainTo = train[0].AnchorDate, train[len(train)-1].AnchorDate
	rep.TestFrom, rep.TestTo = test[0].AnchorDate, test[len(test)-1].AnchorDate
	rep.Params = t.cfg.Params
	up := 0
	for _, ex := range sorted {
		up += ex.Target
	}
	rep.UpShare = float64(up) / float64(len(sorted))

	return &ml.Artifact{
		Format:       ml.FormatVersion,
		Version:      version,
		FeatureNames: names,
		Scaler:       scaler,
		Classifier:   clf,
		TrainedAt:    trainedAt,
		Report:       rep,
	}, nil
}

// causalSplit keeps the earliest fraction for training. Examples must be date-sorted.
func causalSplit(sorted []models.TrainingExample, fraction float64) (train, test []models.TrainingExample) {
	k := int(float64(len(sorted)) * fraction)
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k], sorted[k:]
}

func matrix(examples []models.TrainingExample, names []string) ([][]float64, []int, error) {
	X := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		row, err := ex.Select(names)
		if err != nil {
			return nil, nil, models.TrainingFailed(models.ErrTrainingFailed, "%v", err)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, models.TrainingFailed(models.ErrTrainingFailed,
					"non-finite %s for %s on %s", names[j], ex.AssetID, ex.AnchorDate.Format(time.DateOnly))
			}
		}
		X[i] = row
		y[i] = ex.Target
	}
	return X, y, nil
}

func singleClass(y []int) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

func evaluate(clf *ml.Classifier, xTrain [][]float64, yTrain []int, xTest [][]float64, yTest []int, names []string) (*ml.Report, error) {
	trainPred, _, err := predictAll(clf, xTrain)
	if err != nil {
		return nil, err
	}
	testPred, testScores, err := predictAll(clf, xTest)
	if err != nil {
		return nil, err
	}
	trainCM, err := ml.Confusion(yTrain, trainPred)
	if err != nil {
		return nil, err
	}
	testCM, err := ml.Confusion(yTest, testPred)
	if err != nil {
		return nil, err
	}

	rep := &ml.Report{
		TrainSize:     len(yTrain),
		TestSize:      len(yTest),
		TrainAccuracy: trainCM.Accuracy(),
		TestAccuracy:  testCM.Accuracy(),
		Confusion:     testCM,
	}
	rep.OverfittingGap = rep.TrainAccuracy - rep.TestAccuracy
	if auc, ok := ml.ROCAUC(yTest, testScores); ok {
		rep.AUC = &auc
	}

	group := make(map[string]string, len(names))
	for _, n := range models.PriceFeatures {
		group[n] = "price"
	}
	for _, n := range models.NewsFeatures {
		group[n] = "news"
	}
	for j, name := range names {
		imp := clf.Importances[j]
		rep.FeatureImportance = append(rep.FeatureImportance, ml.FeatureImportance{Name: name, Importance: imp})
		switch group[name] {
		case "price":
			rep.PriceImportance += imp
		case "news":
			rep.NewsImportance += imp
		}
	}
	sort.SliceStable(rep.FeatureImportance, func(a, b int) bool {
		return rep.FeatureImportance[a].Importance > rep.FeatureImportance[b].Importance
	})
	return rep, nil
}

func predictAll(clf *ml.Classifier, X [][]float64) ([]int, []float64, error) {
	pred := make([]int, len(X))
	scores := make([]float64, len(X))
	for i, x := range X {
		up, down, err := clf.PredictProba(x)
		if err != nil {
			return nil, nil, err
		}
		scores[i] = up
		if up >= down {
			pred[i] = 1
		}
	}
	return pred, scores, nil
}

func writeReport(path string, rep *ml.Report) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
