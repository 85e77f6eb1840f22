// Package training turns an engineered feature table into fitted demand
// estimators with honest held-out scores. The split is temporal: the oldest
// rows train, the newest rows test, and rows are never shuffled.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
)

// excluded lists columns never used as model inputs: identifiers, raw
// category text remnants and the target family itself.
var excluded = map[string]bool{
	"date":                    true,
	"temp_category":           true,
	"precipitation_category":  true,
	"location":                true,
	"holiday_name":            true,
	"country":                 true,
	"product_id":              true,
	"category":                true,
	"demand":                  true,
	"sales":                   true,
	"quantity":                true,
	"revenue":                 true,
	"product_name":            true,
	"store":                   true,
	"customer_segment":        true,
}

// Options configures a training run.
type Options struct {
	// Kinds selects the estimator families to fit. Empty means all.
	Kinds []models.Kind

	// TestFraction is the share of trailing rows held out for evaluation.
	// Values outside (0,1) fall back to 0.2.
	TestFraction float64
}

// SplitInfo records how the table was divided and which feature columns, in
// which order, fed the estimators. Forecasting must reproduce this exact
// column order.
type SplitInfo struct {
	FeatureColumns []string  `json:"feature_columns"`
	TrainRows      int       `json:"train_rows"`
	TestRows       int       `json:"test_rows"`
	TrainStart     time.Time `json:"train_start"`
	TrainEnd       time.Time `json:"train_end"`
	TestStart      time.Time `json:"test_start"`
	TestEnd        time.Time `json:"test_end"`
}

// Result is the outcome of one training run. Models holds only the
// estimators that fitted successfully.
type Result struct {
	Models      map[models.Kind]models.Estimator
	Performance map[models.Kind]models.Metrics
	Diagnostics map[models.Kind]models.Diagnostics
	Split       SplitInfo
	Duration    time.Duration
}

// Trainer fits estimators over a feature table. The zero value is usable.
type Trainer struct {
	Logger *slog.Logger
}

func (tr *Trainer) logger() *slog.Logger {
	if tr.Logger != nil {
		return tr.Logger
	}
	return slog.Default()
}

// ErrNoModels is returned when every requested estimator fails to fit.
var ErrNoModels = errors.New("training: no estimator fitted successfully")

// Train fits the requested estimators sequentially and scores each on the
// held-out tail. A single estimator failing is logged and skipped; only all
// of them failing aborts the run.
func (tr *Trainer) Train(ctx context.Context, features *dataset.Table, opts Options) (*Result, error) {
	start := time.Now()
	log := tr.logger()

	if features == nil || features.Len() == 0 {
		return nil, fmt.Errorf("training: empty feature table")
	}

	y, err := targetColumn(features)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	cols := featureColumns(features)
	if len(cols) == 0 {
		return nil, fmt.Errorf("training: no usable feature columns")
	}
	X := matrix(features, cols)

	frac := opts.TestFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.2
	}
	n := features.Len()
	testRows := int(float64(n) * frac)
	if testRows < 1 {
		testRows = 1
	}
	trainRows := n - testRows
	if trainRows < 2 {
		return nil, fmt.Errorf("training: %d rows is too few to split", n)
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = models.Kinds()
	}

	res := &Result{
		Models:      make(map[models.Kind]models.Estimator, len(kinds)),
		Performance: make(map[models.Kind]models.Metrics, len(kinds)),
		Diagnostics: make(map[models.Kind]models.Diagnostics, len(kinds)),
		Split: SplitInfo{
			FeatureColumns: cols,
			TrainRows:      trainRows,
			TestRows:       testRows,
			TrainStart:     features.Date(0),
			TrainEnd:       features.Date(trainRows - 1),
			TestStart:      features.Date(trainRows),
			TestEnd:        features.Date(n - 1),
		},
	}

	trainX, testX := X[:trainRows], X[trainRows:]
	trainY, testY := y[:trainRows], y[trainRows:]

	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training: %w", err)
		}

		est, err := models.New(kind)
		if err != nil {
			return nil, fmt.Errorf("training: %w", err)
		}

		fitStart := time.Now()
		if err := est.Fit(trainX, trainY); err != nil {
			log.Error("estimator failed to fit, skipping", "estimator", kind, "error", err)
			continue
		}

		pred, err := est.Predict(testX)
		if err != nil {
			log.Error("estimator failed to score, skipping", "estimator", kind, "error", err)
			continue
		}
		metrics, err := models.Evaluate(testY, pred)
		if err != nil {
			log.Error("estimator evaluation failed, skipping", "estimator", kind, "error", err)
			continue
		}

		diag, err := models.Diagnose(testY, pred, metrics)
		if err != nil {
			log.Error("estimator diagnostics failed, skipping", "estimator", kind, "error", err)
			continue
		}

		res.Models[kind] = est
		res.Performance[kind] = metrics
		res.Diagnostics[kind] = diag
		log.Info("estimator trained",
			"estimator", kind,
			"mae", metrics.MAE,
			"rmse", metrics.RMSE,
			"r2", metrics.R2,
			"grade", diag.Grade,
			"duration", time.Since(fitStart))
	}

	if len(res.Models) == 0 {
		return nil, ErrNoModels
	}

	res.Duration = time.Since(start)
	log.Info("training complete",
		"estimators", len(res.Models),
		"features", len(cols),
		"train_rows", trainRows,
		"test_rows", testRows,
		"duration", res.Duration)
	return res, nil
}

// targetColumn returns the demand series, falling back to sales.
func targetColumn(t *dataset.Table) ([]float64, error) {
	for _, name := range []string{"demand", "sales"} {
		if col, ok := t.Numeric(name); ok {
			y := make([]float64, len(col))
			for i, v := range col {
				if math.IsNaN(v) {
					v = 0
				}
				y[i] = v
			}
			return y, nil
		}
	}
	return nil, errors.New("no demand or sales column")
}

// featureColumns lists the model input columns in table insertion order.
func featureColumns(t *dataset.Table) []string {
	var cols []string
	for _, name := range t.NumericColumns() {
		if !excluded[name] {
			cols = append(cols, name)
		}
	}
	return cols
}

// matrix materializes the selected columns row-wise with NaN mapped to zero.
func matrix(t *dataset.Table, cols []string) [][]float64 {
	n := t.Len()
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, len(cols))
	}
	for j, name := range cols {
		col, _ := t.Numeric(name)
		for i, v := range col {
			if math.IsNaN(v) {
				v = 0
			}
			X[i][j] = v
		}
	}
	return X
}
