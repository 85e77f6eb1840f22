package training

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
)

// featureTable builds a small feature table with a linear demand signal.
func featureTable(t *testing.T, n int) *dataset.Table {
	t.Helper()

	dates := make([]time.Time, n)
	demand := make([]float64, n)
	trend := make([]float64, n)
	dow := make([]float64, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		trend[i] = float64(i)
		dow[i] = float64(int(dates[i].Weekday()))
		demand[i] = 100 + 2*float64(i) + 5*dow[i]
	}

	tbl := dataset.NewTable(dates)
	if err := tbl.SetNumeric("demand", demand); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetNumeric("trend", trend); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetNumeric("day_of_week", dow); err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestTrainTemporalSplit(t *testing.T) {
	tbl := featureTable(t, 100)

	tr := &Trainer{}
	res, err := tr.Train(context.Background(), tbl, Options{
		Kinds:        []models.Kind{models.KindLinearRegression},
		TestFraction: 0.2,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if res.Split.TrainRows != 80 || res.Split.TestRows != 20 {
		t.Fatalf("split = %d/%d, want 80/20", res.Split.TrainRows, res.Split.TestRows)
	}
	if !res.Split.TrainEnd.Before(res.Split.TestStart) {
		t.Fatalf("train end %v not before test start %v", res.Split.TrainEnd, res.Split.TestStart)
	}
	if got := res.Split.TestEnd; !got.Equal(tbl.Date(99)) {
		t.Fatalf("test end = %v, want last table date", got)
	}
}

func TestTrainExcludesTargetFromFeatures(t *testing.T) {
	tbl := featureTable(t, 60)

	tr := &Trainer{}
	res, err := tr.Train(context.Background(), tbl, Options{
		Kinds: []models.Kind{models.KindLinearRegression},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	for _, col := range res.Split.FeatureColumns {
		if col == "demand" || col == "sales" || col == "date" {
			t.Fatalf("feature columns include %q", col)
		}
	}
	if len(res.Split.FeatureColumns) != 2 {
		t.Fatalf("feature columns = %v, want trend and day_of_week", res.Split.FeatureColumns)
	}
}

func TestTrainReportsHeldOutMetrics(t *testing.T) {
	tbl := featureTable(t, 120)

	tr := &Trainer{}
	res, err := tr.Train(context.Background(), tbl, Options{})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if len(res.Models) == 0 {
		t.Fatal("no models trained")
	}
	for kind, m := range res.Performance {
		if math.IsNaN(m.MAE) || m.MAE < 0 {
			t.Errorf("%s: MAE = %v", kind, m.MAE)
		}
		if m.RMSE < m.MAE {
			t.Errorf("%s: RMSE %v < MAE %v", kind, m.RMSE, m.MAE)
		}
	}

	// the linear signal should be near-perfectly recoverable by the
	// linear model on a clean temporal split
	lin, ok := res.Performance[models.KindLinearRegression]
	if !ok {
		t.Fatal("linear regression missing from performance map")
	}
	if lin.R2 < 0.95 {
		t.Errorf("linear R2 = %v, want >= 0.95", lin.R2)
	}

	// every scored estimator gets residual diagnostics
	for kind := range res.Models {
		d, ok := res.Diagnostics[kind]
		if !ok {
			t.Errorf("%s: diagnostics missing", kind)
			continue
		}
		if d.Grade == "" {
			t.Errorf("%s: empty accuracy grade", kind)
		}
	}
	if d := res.Diagnostics[models.KindLinearRegression]; d.Grade != "excellent" {
		t.Errorf("linear grade = %q, want excellent (MAPE %v)", d.Grade, lin.MAPE)
	}
}

func TestTrainFallsBackToSales(t *testing.T) {
	n := 50
	dates := make([]time.Time, n)
	sales := make([]float64, n)
	trend := make([]float64, n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
		sales[i] = 50 + float64(i)
		trend[i] = float64(i)
	}
	tbl := dataset.NewTable(dates)
	if err := tbl.SetNumeric("sales", sales); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetNumeric("trend", trend); err != nil {
		t.Fatal(err)
	}

	tr := &Trainer{}
	if _, err := tr.Train(context.Background(), tbl, Options{
		Kinds: []models.Kind{models.KindLinearRegression},
	}); err != nil {
		t.Fatalf("Train with sales target: %v", err)
	}
}

func TestTrainEmptyTable(t *testing.T) {
	tr := &Trainer{}
	if _, err := tr.Train(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil table")
	}
	if _, err := tr.Train(context.Background(), dataset.NewTable(nil), Options{}); err == nil {
		t.Fatal("expected error for empty table")
	}
}
