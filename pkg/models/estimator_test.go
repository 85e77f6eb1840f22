package models

import (
	"math"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k, err)
		}
		if got != k {
			t.Fatalf("ParseKind(%q) = %q", k, got)
		}
	}
	if _, err := ParseKind("xgboost"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewReturnsDistinctNames(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds() {
		est, err := New(k)
		if err != nil {
			t.Fatalf("New(%q): %v", k, err)
		}
		if est.Name() != string(k) {
			t.Fatalf("Name() = %q, want %q", est.Name(), k)
		}
		if seen[est.Name()] {
			t.Fatalf("duplicate name %q", est.Name())
		}
		seen[est.Name()] = true
	}
}

func TestPredictBeforeFit(t *testing.T) {
	for _, k := range Kinds() {
		est, _ := New(k)
		if _, err := est.Predict([][]float64{{1, 2}}); err == nil {
			t.Fatalf("%s: expected error before Fit", k)
		}
	}
}

func TestFitRejectsRaggedMatrix(t *testing.T) {
	X := [][]float64{{1, 2}, {3}}
	y := []float64{1, 2}
	for _, k := range Kinds() {
		est, _ := New(k)
		if err := est.Fit(X, y); err == nil {
			t.Fatalf("%s: expected error for ragged matrix", k)
		}
	}
}

// linearData samples y = 3 + 2*x0 - x1 without noise.
func linearData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i)
		x1 := float64(i % 7)
		X[i] = []float64{x0, x1}
		y[i] = 3 + 2*x0 - x1
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := linearData(50)
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	pred, err := lr.Predict([][]float64{{10, 3}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := 3 + 2*10.0 - 3.0
	if math.Abs(pred[0]-want) > 1e-4 {
		t.Fatalf("Predict = %v, want %v", pred[0], want)
	}
}

func TestTreeEnsemblesFitTrainingData(t *testing.T) {
	X, y := linearData(60)
	for _, k := range []Kind{KindRandomForest, KindGradientBoosting} {
		est, _ := New(k)
		if err := est.Fit(X, y); err != nil {
			t.Fatalf("%s: Fit: %v", k, err)
		}
		pred, err := est.Predict(X)
		if err != nil {
			t.Fatalf("%s: Predict: %v", k, err)
		}
		m, err := Evaluate(y, pred)
		if err != nil {
			t.Fatalf("%s: Evaluate: %v", k, err)
		}
		// training fit should be tight on noiseless data
		if m.R2 < 0.9 {
			t.Fatalf("%s: training R2 = %v, want >= 0.9", k, m.R2)
		}
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := linearData(40)

	a := NewRandomForest()
	b := NewRandomForest()
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit a: %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit b: %v", err)
	}

	pa, _ := a.Predict(X)
	pb, _ := b.Predict(X)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("prediction %d differs: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestEvaluate(t *testing.T) {
	yTrue := []float64{100, 200, 300}
	yPred := []float64{110, 190, 300}

	m, err := Evaluate(yTrue, yPred)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got, want := m.MAE, 20.0/3; math.Abs(got-want) > 1e-9 {
		t.Errorf("MAE = %v, want %v", got, want)
	}
	if got, want := m.MSE, 200.0/3; math.Abs(got-want) > 1e-9 {
		t.Errorf("MSE = %v, want %v", got, want)
	}
	if got := m.RMSE; math.Abs(got-math.Sqrt(200.0/3)) > 1e-9 {
		t.Errorf("RMSE = %v", got)
	}
	if m.R2 <= 0.99 || m.R2 > 1 {
		t.Errorf("R2 = %v, want close to 1", m.R2)
	}
}

func TestEvaluateMAPESkipsZeroActuals(t *testing.T) {
	m, err := Evaluate([]float64{0, 100}, []float64{50, 110})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(m.MAPE-10) > 1e-9 {
		t.Fatalf("MAPE = %v, want 10 (zero actual excluded)", m.MAPE)
	}

	m, err = Evaluate([]float64{0, 0}, []float64{1, 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !math.IsNaN(m.MAPE) {
		t.Fatalf("MAPE = %v, want NaN when all actuals are zero", m.MAPE)
	}
}
