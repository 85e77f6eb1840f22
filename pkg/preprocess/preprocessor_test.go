package preprocess

import (
	"math"
	"testing"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

func tableWith(t *testing.T, cols map[string][]float64, n int) *dataset.Table {
	t.Helper()

	dates := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	tbl := dataset.NewTable(dates)
	for name, vals := range cols {
		if err := tbl.SetNumeric(name, vals); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestProcessPreservesRowCount(t *testing.T) {
	n := 40
	sales := make([]float64, n)
	for i := range sales {
		sales[i] = 100 + float64(i)
	}
	sales[5] = math.NaN()
	sales[20] = 10000 // outlier

	raw := tableWith(t, map[string][]float64{"sales": sales}, n)

	p := &Preprocessor{}
	clean, err := p.Process(raw, DefaultOptions())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if clean.Len() != n {
		t.Errorf("row count %d, want %d", clean.Len(), n)
	}
	// input must not be mutated
	rawSales, _ := raw.Numeric("sales")
	if rawSales[20] != 10000 {
		t.Error("Process mutated its input")
	}
}

func TestHandleMissingFillsMedianAndMode(t *testing.T) {
	tbl := tableWith(t, map[string][]float64{
		"sales": {10, math.NaN(), 30, 20, math.NaN()},
	}, 5)
	if err := tbl.SetText("region", []string{"north", "", "north", "south", ""}); err != nil {
		t.Fatal(err)
	}

	p := &Preprocessor{}
	clean, err := p.Process(tbl, Options{HandleMissing: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	sales, _ := clean.Numeric("sales")
	for i, v := range sales {
		if math.IsNaN(v) {
			t.Errorf("sales[%d] still NaN", i)
		}
	}
	// median of {10, 20, 30} is 20
	if sales[1] != 20 {
		t.Errorf("imputed sales = %v, want 20", sales[1])
	}

	region, _ := clean.Text("region")
	if region[1] != "north" {
		t.Errorf("imputed region = %q, want mode %q", region[1], "north")
	}
}

func TestCapOutliersClipsNotDrops(t *testing.T) {
	n := 30
	sales := make([]float64, n)
	for i := range sales {
		sales[i] = 100 + float64(i%5)
	}
	sales[15] = 5000

	tbl := tableWith(t, map[string][]float64{"sales": sales}, n)

	p := &Preprocessor{}
	clean, err := p.Process(tbl, Options{RemoveOutliers: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if clean.Len() != n {
		t.Fatalf("row count %d, want %d", clean.Len(), n)
	}
	capped, _ := clean.Numeric("sales")
	if capped[15] >= 5000 {
		t.Errorf("outlier not capped: %v", capped[15])
	}
	max := capped[0]
	for _, v := range capped {
		if v > max {
			max = v
		}
	}
	if capped[15] != max {
		t.Errorf("capped value %v should be the column maximum %v", capped[15], max)
	}
}

func TestEncodeCategoricalAlphabetical(t *testing.T) {
	tbl := tableWith(t, map[string][]float64{"sales": {1, 2, 3}}, 3)
	if err := tbl.SetText("segment", []string{"retail", "b2b", "retail"}); err != nil {
		t.Fatal(err)
	}

	p := &Preprocessor{}
	clean, err := p.Process(tbl, Options{EncodeCategorical: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if _, stillText := clean.Text("segment"); stillText {
		t.Fatal("segment should have been encoded to numeric")
	}
	encoded, ok := clean.Numeric("segment")
	if !ok {
		t.Fatal("encoded segment column missing")
	}
	// alphabetical: b2b=0, retail=1
	want := []float64{1, 0, 1}
	for i := range want {
		if encoded[i] != want[i] {
			t.Errorf("segment[%d] = %v, want %v", i, encoded[i], want[i])
		}
	}
}

func TestScalingNeverTouchesTarget(t *testing.T) {
	n := 30
	sales := make([]float64, n)
	promo := make([]float64, n)
	for i := range sales {
		sales[i] = 100 + float64(i)*3
		promo[i] = float64(i) * 2.5
	}
	tbl := tableWith(t, map[string][]float64{"sales": sales, "promo_spend": promo}, n)

	p := &Preprocessor{}
	clean, err := p.Process(tbl, Options{ScaleFeatures: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, _ := clean.Numeric("sales")
	for i := range sales {
		if got[i] != sales[i] {
			t.Fatalf("sales[%d] changed from %v to %v", i, sales[i], got[i])
		}
	}

	scaled, _ := clean.Numeric("promo_spend")
	var sum float64
	for _, v := range scaled {
		sum += v
	}
	if math.Abs(sum/float64(n)) > 1e-9 {
		t.Errorf("scaled promo_spend mean = %v, want ~0", sum/float64(n))
	}
}

func TestProcessSynthesizesDemandAndSorts(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	tbl := dataset.NewTable(dates)
	if err := tbl.SetNumeric("sales", []float64{3, 1, 2}); err != nil {
		t.Fatal(err)
	}

	p := &Preprocessor{}
	clean, err := p.Process(tbl, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	demand, ok := clean.Numeric("demand")
	if !ok {
		t.Fatal("demand column not synthesized")
	}
	for i := 0; i < 3; i++ {
		if demand[i] != float64(i+1) {
			t.Errorf("demand[%d] = %v, want %d (sorted by date)", i, demand[i], i+1)
		}
	}
}

func TestProcessIdempotentWithoutScaling(t *testing.T) {
	n := 35
	sales := make([]float64, n)
	for i := range sales {
		sales[i] = 100 + float64((i*13)%40)
	}
	sales[8] = math.NaN()

	opts := Options{HandleMissing: true, RemoveOutliers: true, EncodeCategorical: true}
	raw := tableWith(t, map[string][]float64{"sales": sales}, n)

	p := &Preprocessor{}
	once, err := p.Process(raw, opts)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	twice, err := p.Process(once, opts)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}

	a, _ := once.Numeric("demand")
	b, _ := twice.Numeric("demand")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("demand[%d] changed on reprocessing: %v != %v", i, a[i], b[i])
		}
	}
}

func TestProcessEmptyInput(t *testing.T) {
	p := &Preprocessor{}
	if _, err := p.Process(nil, DefaultOptions()); err == nil {
		t.Fatal("expected error for nil table")
	}
	if _, err := p.Process(dataset.NewTable(nil), DefaultOptions()); err == nil {
		t.Fatal("expected error for empty table")
	}
}
