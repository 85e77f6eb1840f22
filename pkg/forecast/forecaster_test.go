package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/features"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// trainOn builds features from a demand series and fits a linear model.
func trainOn(t *testing.T, demand []float64) (*dataset.Table, *training.Result) {
	t.Helper()

	dates := make([]time.Time, len(demand))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	tbl := dataset.NewTable(dates)
	if err := tbl.SetNumeric("demand", demand); err != nil {
		t.Fatal(err)
	}

	b := &features.Builder{}
	feats, err := b.Build(tbl, nil, nil, features.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tr := &training.Trainer{}
	res, err := tr.Train(context.Background(), feats, training.Options{
		Kinds: []models.Kind{models.KindLinearRegression},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return feats, res
}

// seasonalFactor mirrors the month/day-of-week adjustment applied to every
// forecast point.
func seasonalFactor(d time.Time) float64 {
	return (monthFactors[d.Month()] + weekdayFactors[d.Weekday()]) / 2
}

func TestRunConstantDemand(t *testing.T) {
	demand := make([]float64, 60)
	for i := range demand {
		demand[i] = 150
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	points, err := f.Run(feats, trained, Options{Horizon: 14})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(points) != 14 {
		t.Fatalf("got %d points, want 14", len(points))
	}

	for i, p := range points {
		want := math.Round(150 * seasonalFactor(p.Date))
		if p.PredictedDemand != want {
			t.Errorf("point %d (%s): predicted %v, want %v", i, p.Date.Format("2006-01-02"), p.PredictedDemand, want)
		}
		// zero historical spread means a zero-width interval
		if p.LowerBound != p.PredictedDemand || p.UpperBound != p.PredictedDemand {
			t.Errorf("point %d: bounds [%v, %v] around %v", i, p.LowerBound, p.UpperBound, p.PredictedDemand)
		}
	}
}

func TestLagValuesUseBaselineBeyondDayOne(t *testing.T) {
	demand := make([]float64, 60)
	for i := range demand {
		demand[i] = float64(i)
	}
	const baseline = 999.0

	cases := []struct {
		name string
		col  string
		h    int
		want float64
	}{
		{"lag 1 day 1 observes last demand", "demand_lag_1", 1, 59},
		{"lag 1 day 2 uses baseline", "demand_lag_1", 2, baseline},
		{"lag 2 day 2 uses baseline", "demand_lag_2", 2, baseline},
		{"lag 7 day 1 uses baseline", "demand_lag_7", 1, baseline},
		{"lag 30 deep horizon uses baseline", "demand_lag_30", 45, baseline},
		{"sales lag 1 day 1 observes last value", "sales_lag_1", 1, 59},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := lagValue(tc.col, demand, tc.h, baseline)
			if !ok {
				t.Fatalf("%s not recognized as a lag column", tc.col)
			}
			if got != tc.want {
				t.Errorf("lagValue(%s, h=%d) = %v, want %v", tc.col, tc.h, got, tc.want)
			}
		})
	}

	if _, ok := lagValue("temperature", demand, 1, baseline); ok {
		t.Error("non-lag column should not resolve")
	}
}

func TestRunDatesContiguous(t *testing.T) {
	demand := make([]float64, 45)
	for i := range demand {
		demand[i] = 100 + float64(i%5)*10
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	points, err := f.Run(feats, trained, Options{Horizon: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	lastObserved := feats.Date(feats.Len() - 1)
	if want := lastObserved.AddDate(0, 0, 1); !points[0].Date.Equal(want) {
		t.Fatalf("first forecast date = %v, want %v", points[0].Date, want)
	}
	for i := 1; i < len(points); i++ {
		if want := points[i-1].Date.AddDate(0, 0, 1); !points[i].Date.Equal(want) {
			t.Fatalf("point %d date = %v, want %v", i, points[i].Date, want)
		}
	}
}

func TestRunBoundsAndNonNegativity(t *testing.T) {
	demand := make([]float64, 50)
	for i := range demand {
		demand[i] = float64((i * 37) % 90) // noisy, sometimes near zero
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	points, err := f.Run(feats, trained, Options{Horizon: 20})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, p := range points {
		if p.PredictedDemand < 0 || p.LowerBound < 0 {
			t.Errorf("point %d: negative values %+v", i, p)
		}
		if p.LowerBound > p.PredictedDemand || p.PredictedDemand > p.UpperBound {
			t.Errorf("point %d: bounds not ordered %+v", i, p)
		}
	}
}

func TestRunSeasonalAdjustKeepsOrdering(t *testing.T) {
	demand := make([]float64, 60)
	for i := range demand {
		demand[i] = 200
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	points, err := f.Run(feats, trained, Options{Horizon: 30})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var differs bool
	for _, p := range points {
		if p.PredictedDemand != 200 {
			differs = true
		}
		if p.LowerBound > p.PredictedDemand || p.PredictedDemand > p.UpperBound {
			t.Errorf("bounds not ordered after adjustment: %+v", p)
		}
	}
	if !differs {
		t.Error("seasonal adjustment changed no prediction over a full month")
	}
}

func TestRunDefaultHorizon(t *testing.T) {
	demand := make([]float64, 40)
	for i := range demand {
		demand[i] = 120
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	points, err := f.Run(feats, trained, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(points) != DefaultHorizon {
		t.Fatalf("got %d points, want %d", len(points), DefaultHorizon)
	}
}

func TestRunUnknownEstimator(t *testing.T) {
	demand := make([]float64, 40)
	for i := range demand {
		demand[i] = 80
	}
	feats, trained := trainOn(t, demand)

	f := &Forecaster{}
	if _, err := f.Run(feats, trained, Options{Kind: models.KindGradientBoosting}); err == nil {
		t.Fatal("expected error for estimator that was not trained")
	}
}

func TestRunEmptyInputs(t *testing.T) {
	f := &Forecaster{}
	if _, err := f.Run(nil, nil, Options{}); err == nil {
		t.Fatal("expected error for nil inputs")
	}
}
