// Package forecast generates future demand predictions from a fitted
// estimator and the feature history it was trained on.
//
// Future feature rows are synthesized, not observed: calendar and trend
// fields are recomputed for each future date, lag 1 on the first day reads
// the last observed demand while every other lag input is the trailing
// 30-day mean, and every other column is carried forward from the last
// observed row. Rolling statistics are therefore held constant over the
// horizon rather than fed back recursively.
package forecast

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/features"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// DefaultHorizon is the forecast length when none is requested.
const DefaultHorizon = 30

// lagFallbackWindow is how many trailing observed days seed lag values the
// history can no longer supply.
const lagFallbackWindow = 30

// confidenceZ scales the interval half-width (z for a 95% band, damped by
// half because the residual spread overstates day-ahead uncertainty).
const confidenceZ = 1.96 * 0.5

// Point is one forecasted day.
type Point struct {
	Date            time.Time `json:"date"`
	PredictedDemand float64   `json:"predicted_demand"`
	LowerBound      float64   `json:"lower_bound"`
	UpperBound      float64   `json:"upper_bound"`
}

// Options configures a forecast run.
type Options struct {
	// Horizon is the number of future days. Non-positive means
	// DefaultHorizon.
	Horizon int

	// Kind selects the estimator. Empty picks the trained estimator with
	// the lowest held-out RMSE.
	Kind models.Kind
}

// ErrColumnMismatch is returned when the training feature columns cannot be
// reconciled with the feature history.
var ErrColumnMismatch = errors.New("forecast: feature columns do not match training")

// Forecaster turns a training result into future demand points.
type Forecaster struct {
	Logger *slog.Logger
}

func (f *Forecaster) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Run predicts the next opts.Horizon days after the last date in history.
// history must be the feature table the estimators were trained on.
func (f *Forecaster) Run(history *dataset.Table, trained *training.Result, opts Options) ([]Point, error) {
	if history == nil || history.Len() == 0 {
		return nil, errors.New("forecast: empty feature history")
	}
	if trained == nil || len(trained.Models) == 0 {
		return nil, errors.New("forecast: no trained models")
	}
	if len(trained.Split.FeatureColumns) == 0 {
		return nil, ErrColumnMismatch
	}

	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	kind, est, err := selectEstimator(trained, opts.Kind)
	if err != nil {
		return nil, err
	}

	demand, ok := history.Numeric("demand")
	if !ok {
		demand, ok = history.Numeric("sales")
		if !ok {
			return nil, errors.New("forecast: history has no demand or sales column")
		}
	}

	log := f.logger()
	X, dates, err := f.futureMatrix(history, demand, trained.Split.FeatureColumns, horizon)
	if err != nil {
		return nil, err
	}

	preds, err := est.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("forecast: predict: %w", err)
	}

	halfWidth := confidenceZ * popStd(demand)
	points := make([]Point, horizon)
	for i, p := range preds {
		if p < 0 {
			p = 0
		}
		lower := p - halfWidth
		if lower < 0 {
			lower = 0
		}
		points[i] = Point{
			Date:            dates[i],
			PredictedDemand: p,
			LowerBound:      lower,
			UpperBound:      p + halfWidth,
		}
	}

	applySeasonal(points)
	for i := range points {
		points[i].PredictedDemand = math.Round(points[i].PredictedDemand)
		points[i].LowerBound = math.Round(points[i].LowerBound)
		points[i].UpperBound = math.Round(points[i].UpperBound)
	}

	log.Info("forecast generated",
		"estimator", kind,
		"horizon", horizon,
		"start", points[0].Date.Format(dataset.DateLayout),
		"end", points[horizon-1].Date.Format(dataset.DateLayout))
	return points, nil
}

// selectEstimator resolves the requested kind, defaulting to the lowest
// held-out RMSE.
func selectEstimator(trained *training.Result, kind models.Kind) (models.Kind, models.Estimator, error) {
	if kind != "" {
		est, ok := trained.Models[kind]
		if !ok {
			return "", nil, fmt.Errorf("forecast: estimator %q was not trained", kind)
		}
		return kind, est, nil
	}

	best := models.Kind("")
	bestRMSE := math.Inf(1)
	for k := range trained.Models {
		m, ok := trained.Performance[k]
		if !ok {
			continue
		}
		if m.RMSE < bestRMSE {
			bestRMSE = m.RMSE
			best = k
		}
	}
	if best == "" {
		return "", nil, errors.New("forecast: no scored estimator to select")
	}
	return best, trained.Models[best], nil
}

// futureMatrix synthesizes one feature row per future day in the training
// column order.
func (f *Forecaster) futureMatrix(history *dataset.Table, demand []float64, cols []string, horizon int) ([][]float64, []time.Time, error) {
	n := history.Len()
	last := history.Date(n - 1)

	recentMean := meanOf(tail(demand, lagFallbackWindow))

	// carry-forward seed: last observed value of every numeric column
	seed := make(map[string]float64, len(cols))
	for _, name := range history.NumericColumns() {
		col, _ := history.Numeric(name)
		seed[name] = col[n-1]
	}

	missing := map[string]bool{}
	X := make([][]float64, horizon)
	dates := make([]time.Time, horizon)

	for h := 1; h <= horizon; h++ {
		date := last.AddDate(0, 0, h)
		dates[h-1] = date
		cal := features.CalendarFields(date)

		row := make([]float64, len(cols))
		for j, name := range cols {
			if v, ok := calendarValue(cal, name); ok {
				row[j] = v
				continue
			}
			if v, ok := lagValue(name, demand, h, recentMean); ok {
				row[j] = v
				continue
			}
			switch name {
			case "trend":
				row[j] = float64(n + h)
			case "trend_squared":
				v := float64(n + h)
				row[j] = v * v
			default:
				v, ok := seed[name]
				if !ok || math.IsNaN(v) {
					missing[name] = true
					v = 0
				}
				row[j] = v
			}
		}
		X[h-1] = row
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		f.logger().Warn("training columns absent from history, defaulting to zero", "columns", names)
	}
	return X, dates, nil
}

// lagValue resolves a demand lag column for forecast step h. Only lag 1 on
// the first forecast day observes a true value (the last recorded demand);
// every deeper lag and every later day substitutes the trailing-mean
// baseline so the inputs stay stationary instead of feeding predictions
// back recursively.
func lagValue(name string, demand []float64, h int, fallback float64) (float64, bool) {
	var lag int
	if _, err := fmt.Sscanf(name, "demand_lag_%d", &lag); err != nil {
		if _, err := fmt.Sscanf(name, "sales_lag_%d", &lag); err != nil {
			return 0, false
		}
	}
	if lag == 1 && h == 1 && len(demand) > 0 {
		return demand[len(demand)-1], true
	}
	return fallback, true
}

// calendarValue maps a training column name onto the recomputed calendar
// fields for a future date.
func calendarValue(c features.Calendar, name string) (float64, bool) {
	switch name {
	case "year":
		return c.Year, true
	case "month":
		return c.Month, true
	case "day":
		return c.Day, true
	case "day_of_week":
		return c.DayOfWeek, true
	case "day_of_year":
		return c.DayOfYear, true
	case "week_of_year":
		return c.WeekOfYear, true
	case "quarter":
		return c.Quarter, true
	case "is_weekend":
		return c.IsWeekend, true
	case "is_month_start":
		return c.IsMonthStart, true
	case "is_month_end":
		return c.IsMonthEnd, true
	case "is_quarter_start":
		return c.IsQuarterStart, true
	case "is_quarter_end":
		return c.IsQuarterEnd, true
	case "month_sin":
		return c.MonthSin, true
	case "month_cos":
		return c.MonthCos, true
	case "day_of_week_sin":
		return c.DayOfWeekSin, true
	case "day_of_week_cos":
		return c.DayOfWeekCos, true
	default:
		return 0, false
	}
}

// Seasonal demand multipliers, averaged per point between the month and
// day-of-week table, applied to every prediction and its bounds.
var (
	monthFactors = map[time.Month]float64{
		time.January: 0.90, time.February: 0.85, time.March: 0.95,
		time.April: 1.00, time.May: 1.05, time.June: 1.10,
		time.July: 1.15, time.August: 1.10, time.September: 1.05,
		time.October: 1.10, time.November: 1.20, time.December: 1.30,
	}
	weekdayFactors = map[time.Weekday]float64{
		time.Monday: 1.00, time.Tuesday: 1.05, time.Wednesday: 1.10,
		time.Thursday: 1.05, time.Friday: 1.15, time.Saturday: 1.20,
		time.Sunday: 0.90,
	}
)

func applySeasonal(points []Point) {
	for i := range points {
		d := points[i].Date
		factor := (monthFactors[d.Month()] + weekdayFactors[d.Weekday()]) / 2
		points[i].PredictedDemand *= factor
		points[i].LowerBound *= factor
		points[i].UpperBound *= factor
	}
}

func tail(col []float64, n int) []float64 {
	if len(col) <= n {
		return col
	}
	return col[len(col)-n:]
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func popStd(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := stat.Mean(vals, nil)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}
