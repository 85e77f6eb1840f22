package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/features"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/preprocess"
	"github.com/InsaneAbhishek/inventoryai/pkg/storage"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// fakeStore records Put calls for assertions.
type fakeStore struct {
	mu   sync.Mutex
	puts map[string][]dataset.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: make(map[string][]dataset.Record)}
}

func (f *fakeStore) Put(_ context.Context, user string, stage storage.Stage, records []dataset.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[user+"/"+string(stage)] = records
	return nil
}

func (f *fakeStore) Get(_ context.Context, user string, stage storage.Stage) ([]dataset.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, ok := f.puts[user+"/"+string(stage)]
	return recs, ok, nil
}

// fakeObserver counts telemetry calls.
type fakeObserver struct {
	mu       sync.Mutex
	stages   map[string]int
	errors   int
	forecast int
	alerts   int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{stages: make(map[string]int)}
}

func (f *fakeObserver) RecordStage(stage string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages[stage]++
}

func (f *fakeObserver) RecordError(_, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeObserver) SetForecast(horizonDays int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecast = horizonDays
}

func (f *fakeObserver) SetAlerts(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = count
}

// uploadRecords builds n days of raw sales rows.
func uploadRecords(n int, demand float64) []dataset.Record {
	out := make([]dataset.Record, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = dataset.Record{
			"Date":  start.AddDate(0, 0, i).Format(dataset.DateLayout),
			"Sales": demand,
		}
	}
	return out
}

func runPipeline(t *testing.T, s *Session, records []dataset.Record) []forecast.Point {
	t.Helper()
	points, err := pipelineErr(s, records)
	if err != nil {
		t.Fatal(err)
	}
	return points
}

// pipelineErr runs upload through forecast, returning the first failure.
func pipelineErr(s *Session, records []dataset.Record) ([]forecast.Point, error) {
	ctx := context.Background()

	if _, err := s.Ingest(ctx, records); err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}
	if err := s.Preprocess(ctx, preprocess.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("Preprocess: %w", err)
	}
	if err := s.BuildFeatures(ctx, features.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("BuildFeatures: %w", err)
	}
	if _, err := s.Train(ctx, training.Options{Kinds: []models.Kind{models.KindLinearRegression}}); err != nil {
		return nil, fmt.Errorf("Train: %w", err)
	}
	points, err := s.Forecast(ctx, forecast.Options{Horizon: 14})
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w", err)
	}
	return points, nil
}

func TestManagerReturnsSameSessionPerUser(t *testing.T) {
	m := NewManager(Deps{})

	a := m.Session("alice")
	if a != m.Session("alice") {
		t.Error("same user should get the same session")
	}
	if a == m.Session("bob") {
		t.Error("different users should get different sessions")
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	store := newFakeStore()
	obs := newFakeObserver()
	m := NewManager(Deps{Store: store, Observer: obs})

	s := m.Session("u1")
	points := runPipeline(t, s, uploadRecords(60, 150))

	if len(points) != 14 {
		t.Fatalf("forecast has %d points, want 14", len(points))
	}

	// every stage artifact should have been persisted
	for _, stage := range []storage.Stage{storage.StageRaw, storage.StagePreprocessed, storage.StageFeatures, storage.StageForecast} {
		if _, ok, _ := store.Get(context.Background(), "u1", stage); !ok {
			t.Errorf("stage %s was not persisted", stage)
		}
	}

	for _, stage := range []string{"ingest", "preprocess", "features", "train", "forecast"} {
		if obs.stages[stage] != 1 {
			t.Errorf("stage %s recorded %d times, want 1", stage, obs.stages[stage])
		}
	}
	if obs.forecast != 14 {
		t.Errorf("observer forecast horizon = %d, want 14", obs.forecast)
	}
}

func TestInsightsAndReportAfterForecast(t *testing.T) {
	m := NewManager(Deps{})
	s := m.Session("u1")
	runPipeline(t, s, uploadRecords(60, 150))

	res, err := s.Insights(context.Background())
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if res.Reorder == nil {
		t.Error("insights missing reorder economics")
	}

	text, err := s.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if text == "" {
		t.Error("empty report")
	}
}

func TestPrerequisiteErrors(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Deps{})
	s := m.Session("u1")

	cases := []struct {
		name string
		call func() error
	}{
		{"preprocess before upload", func() error { return s.Preprocess(ctx, preprocess.DefaultOptions()) }},
		{"features before preprocess", func() error { return s.BuildFeatures(ctx, features.DefaultOptions()) }},
		{"train before features", func() error {
			_, err := s.Train(ctx, training.Options{})
			return err
		}},
		{"forecast before train", func() error {
			_, err := s.Forecast(ctx, forecast.Options{})
			return err
		}},
		{"insights before forecast", func() error {
			_, err := s.Insights(ctx)
			return err
		}},
		{"alerts before forecast", func() error {
			_, err := s.Alerts()
			return err
		}},
		{"report before forecast", func() error {
			_, err := s.Report(ctx)
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, ErrMissingPrerequisite) {
				t.Fatalf("error = %v, want ErrMissingPrerequisite", err)
			}
		})
	}
}

func TestIngestInvalidatesLaterStages(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Deps{})
	s := m.Session("u1")
	runPipeline(t, s, uploadRecords(60, 150))

	// new upload resets downstream artifacts
	if _, err := s.Ingest(ctx, uploadRecords(40, 90)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := s.BuildFeatures(ctx, features.DefaultOptions()); !errors.Is(err, ErrMissingPrerequisite) {
		t.Fatalf("BuildFeatures after re-upload = %v, want ErrMissingPrerequisite", err)
	}
	if _, err := s.Alerts(); !errors.Is(err, ErrMissingPrerequisite) {
		t.Fatalf("Alerts after re-upload = %v, want ErrMissingPrerequisite", err)
	}
}

func TestForecastRaisesAlertsForLowDemand(t *testing.T) {
	m := NewManager(Deps{})
	s := m.Session("u1")
	// constant demand of 30 is below the default critical threshold of 50
	runPipeline(t, s, uploadRecords(60, 30))

	got, err := s.Alerts()
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected alerts for critically low forecast demand")
	}
}

func TestConcurrentUsers(t *testing.T) {
	store := newFakeStore()
	m := NewManager(Deps{Store: store})

	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", id)
			s := m.Session(user)
			_, err := pipelineErr(s, uploadRecords(50, 100+float64(id)*20))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("pipeline: %v", err)
		}
	}

	for i := 0; i < 4; i++ {
		user := fmt.Sprintf("user-%d", i)
		if _, ok, _ := store.Get(context.Background(), user, storage.StageForecast); !ok {
			t.Errorf("no forecast persisted for %s", user)
		}
	}
}
