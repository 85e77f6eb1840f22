// Package preprocess cleans a raw daily demand table: missing-value
// imputation, IQR outlier capping, categorical encoding and feature
// scaling. Outliers are capped rather than dropped so the date axis stays
// contiguous; row count is always preserved.
package preprocess

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// Options toggles individual preprocessing steps.
type Options struct {
	HandleMissing     bool
	RemoveOutliers    bool
	EncodeCategorical bool
	ScaleFeatures     bool
}

// DefaultOptions enables every step.
func DefaultOptions() Options {
	return Options{
		HandleMissing:     true,
		RemoveOutliers:    true,
		EncodeCategorical: true,
		ScaleFeatures:     true,
	}
}

// scaleExclude lists columns never scaled: the target family and flag
// columns. Target-family columns are excluded regardless of cardinality so
// no leakage can occur.
var scaleExclude = map[string]bool{
	"is_holiday": true,
	"sales":      true,
	"demand":     true,
	"quantity":   true,
	"revenue":    true,
}

// Preprocessor cleans raw tables. The zero value is ready to use.
type Preprocessor struct {
	Logger *slog.Logger
}

func (p *Preprocessor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Process runs the enabled steps over a copy of the input and returns the
// cleaned table sorted by ascending date. Any step failing aborts the whole
// call; no partial result is returned.
func (p *Preprocessor) Process(raw *dataset.Table, opts Options) (*dataset.Table, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, fmt.Errorf("preprocess: empty input table")
	}

	t := raw.Clone()
	log := p.logger()

	if opts.HandleMissing {
		if err := handleMissing(t); err != nil {
			return nil, fmt.Errorf("preprocess: handle missing: %w", err)
		}
		log.Info("missing values handled", "rows", t.Len())
	}

	if opts.RemoveOutliers {
		if err := capOutliers(t); err != nil {
			return nil, fmt.Errorf("preprocess: cap outliers: %w", err)
		}
		log.Info("outliers capped", "rows", t.Len())
	}

	if opts.EncodeCategorical {
		if err := encodeCategorical(t); err != nil {
			return nil, fmt.Errorf("preprocess: encode categorical: %w", err)
		}
		log.Info("categorical columns encoded")
	}

	if opts.ScaleFeatures {
		if err := scaleContinuous(t); err != nil {
			return nil, fmt.Errorf("preprocess: scale features: %w", err)
		}
		log.Info("continuous columns scaled")
	}

	if err := formatTimeseries(t); err != nil {
		return nil, fmt.Errorf("preprocess: format timeseries: %w", err)
	}

	log.Info("preprocessing complete", "rows", t.Len(), "columns", len(t.NumericColumns())+len(t.TextColumns()))
	return t, nil
}

// handleMissing fills numeric NaNs with the column median and empty text
// values with the column mode (falling back to "Unknown"). Zero dates are
// forward-filled from the previous row.
func handleMissing(t *dataset.Table) error {
	for _, name := range t.NumericColumns() {
		col, _ := t.Numeric(name)
		med, ok := median(col)
		if !ok {
			continue // column is entirely missing
		}
		filled := make([]float64, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				filled[i] = med
			} else {
				filled[i] = v
			}
		}
		if err := t.SetNumeric(name, filled); err != nil {
			return err
		}
	}

	for _, name := range t.TextColumns() {
		col, _ := t.Text(name)
		m := mode(col)
		if m == "" {
			m = "Unknown"
		}
		filled := make([]string, len(col))
		for i, v := range col {
			if v == "" {
				filled[i] = m
			} else {
				filled[i] = v
			}
		}
		if err := t.SetText(name, filled); err != nil {
			return err
		}
	}

	dates := t.Dates()
	for i := 1; i < len(dates); i++ {
		if dates[i].IsZero() {
			t.SetDate(i, t.Date(i-1))
		}
	}
	return nil
}

// capOutliers clips each numeric column to [Q1-1.5*IQR, Q3+1.5*IQR]. Values
// are capped, never dropped, so row count and date contiguity survive.
func capOutliers(t *dataset.Table) error {
	for _, name := range t.NumericColumns() {
		col, _ := t.Numeric(name)
		q1, ok1 := quantile(col, 0.25)
		q3, ok3 := quantile(col, 0.75)
		if !ok1 || !ok3 {
			continue
		}
		iqr := q3 - q1
		lo := q1 - 1.5*iqr
		hi := q3 + 1.5*iqr

		capped := make([]float64, len(col))
		for i, v := range col {
			switch {
			case math.IsNaN(v):
				capped[i] = v
			case v < lo:
				capped[i] = lo
			case v > hi:
				capped[i] = hi
			default:
				capped[i] = v
			}
		}
		if err := t.SetNumeric(name, capped); err != nil {
			return err
		}
	}
	return nil
}

// encodeCategorical replaces each text column with a numeric column of
// stable integer labels (alphabetical class order, fit fresh per call).
func encodeCategorical(t *dataset.Table) error {
	for _, name := range t.TextColumns() {
		col, _ := t.Text(name)

		classes := make([]string, 0)
		seen := make(map[string]bool)
		for _, v := range col {
			if !seen[v] {
				seen[v] = true
				classes = append(classes, v)
			}
		}
		sort.Strings(classes)

		labels := make(map[string]float64, len(classes))
		for i, c := range classes {
			labels[c] = float64(i)
		}

		encoded := make([]float64, len(col))
		for i, v := range col {
			encoded[i] = labels[v]
		}

		t.DropText(name)
		if err := t.SetNumeric(name, encoded); err != nil {
			return err
		}
	}
	return nil
}

// scaleContinuous standardizes continuous columns (more than 10 distinct
// values) to zero mean and unit variance. Target-family and flag columns
// are never scaled.
func scaleContinuous(t *dataset.Table) error {
	for _, name := range t.NumericColumns() {
		if scaleExclude[name] {
			continue
		}
		col, _ := t.Numeric(name)
		if distinctCount(col) <= 10 {
			continue
		}

		clean := dropNaN(col)
		if len(clean) == 0 {
			continue
		}
		mean := stat.Mean(clean, nil)
		std := popStdDev(clean, mean)
		if std == 0 {
			continue
		}

		scaled := make([]float64, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				scaled[i] = v
			} else {
				scaled[i] = (v - mean) / std
			}
		}
		if err := t.SetNumeric(name, scaled); err != nil {
			return err
		}
	}
	return nil
}

// formatTimeseries sorts by date and guarantees a demand column, defaulting
// it to sales.
func formatTimeseries(t *dataset.Table) error {
	t.SortByDate()

	if _, ok := t.Numeric("demand"); !ok {
		if sales, ok := t.Numeric("sales"); ok {
			demand := make([]float64, len(sales))
			copy(demand, sales)
			return t.SetNumeric("demand", demand)
		}
		return fmt.Errorf("no demand or sales column")
	}
	return nil
}

func dropNaN(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func distinctCount(col []float64) int {
	seen := make(map[float64]bool, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			seen[v] = true
		}
	}
	return len(seen)
}

// mode returns the most frequent non-empty value, breaking ties by the
// lexicographically smallest value. It returns "" when every value is empty.
func mode(col []string) string {
	counts := make(map[string]int, len(col))
	for _, v := range col {
		if v != "" {
			counts[v]++
		}
	}
	best := ""
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best = v
			bestCount = n
		}
	}
	return best
}

// median returns the linear-interpolated median of the non-NaN values.
func median(col []float64) (float64, bool) {
	return quantile(col, 0.5)
}

// quantile computes a linear-interpolated quantile over the non-NaN values,
// matching pandas' default interpolation.
func quantile(col []float64, q float64) (float64, bool) {
	clean := dropNaN(col)
	if len(clean) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(clean))
	copy(sorted, clean)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0], true
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], true
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac, true
}

// popStdDev is the population standard deviation around the given mean.
func popStdDev(col []float64, mean float64) float64 {
	if len(col) == 0 {
		return 0
	}
	var ss float64
	for _, v := range col {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(col)))
}
