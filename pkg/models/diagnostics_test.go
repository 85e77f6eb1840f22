package models

import (
	"math"
	"testing"
)

func TestDiagnoseConstantResiduals(t *testing.T) {
	yTrue := []float64{10, 12, 14, 16}
	yPred := []float64{9, 11, 13, 15}

	m, err := Evaluate(yTrue, yPred)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := Diagnose(yTrue, yPred, m)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	// every residual is +1: pure underprediction, no serial structure
	if d.Bias != 1 {
		t.Errorf("Bias = %v, want 1", d.Bias)
	}
	if d.ResidualAutocorr != 0 {
		t.Errorf("ResidualAutocorr = %v, want 0 for constant residuals", d.ResidualAutocorr)
	}
	if d.Grade != "excellent" {
		t.Errorf("Grade = %q, want excellent (MAPE %v)", d.Grade, m.MAPE)
	}
}

func TestDiagnoseAlternatingResiduals(t *testing.T) {
	yTrue := []float64{100, 100, 100, 100}
	yPred := []float64{95, 105, 95, 105}

	m, err := Evaluate(yTrue, yPred)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := Diagnose(yTrue, yPred, m)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if d.Bias != 0 {
		t.Errorf("Bias = %v, want 0", d.Bias)
	}
	// residuals flip sign each step: strong negative autocorrelation
	if d.ResidualAutocorr >= 0 {
		t.Errorf("ResidualAutocorr = %v, want negative", d.ResidualAutocorr)
	}
}

func TestDiagnoseGrades(t *testing.T) {
	yTrue := []float64{10, 20}
	yPred := []float64{10, 20}

	tests := []struct {
		mape  float64
		grade string
	}{
		{5, "excellent"},
		{15, "good"},
		{40, "fair"},
		{80, "poor"},
		{math.NaN(), "ungraded"},
	}
	for _, tt := range tests {
		d, err := Diagnose(yTrue, yPred, Metrics{MAPE: tt.mape})
		if err != nil {
			t.Fatalf("Diagnose: %v", err)
		}
		if d.Grade != tt.grade {
			t.Errorf("MAPE %v: grade = %q, want %q", tt.mape, d.Grade, tt.grade)
		}
	}
}

func TestDiagnoseErrors(t *testing.T) {
	if _, err := Diagnose(nil, nil, Metrics{}); err == nil {
		t.Error("expected error for empty target")
	}
	if _, err := Diagnose([]float64{1, 2}, []float64{1}, Metrics{}); err == nil {
		t.Error("expected error for length mismatch")
	}
}
