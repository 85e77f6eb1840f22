// Package session orchestrates the forecasting pipeline per user. A
// Manager owns one Session per user identifier; each Session holds the
// stage artifacts (raw, preprocessed, features, training result, forecast)
// and runs the stages in order, checking prerequisites and persisting plain
// records through the configured Store.
//
// Stages are synchronous and CPU-bound. Each stage allocates a fresh table
// rather than mutating its predecessor, so a failed stage leaves the
// session in its previous state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/alerts"
	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/exogenous"
	"github.com/InsaneAbhishek/inventoryai/pkg/features"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
	"github.com/InsaneAbhishek/inventoryai/pkg/insights"
	"github.com/InsaneAbhishek/inventoryai/pkg/preprocess"
	"github.com/InsaneAbhishek/inventoryai/pkg/report"
	"github.com/InsaneAbhishek/inventoryai/pkg/storage"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// ErrMissingPrerequisite is returned when a stage is invoked before the
// stage it depends on has produced its artifact.
var ErrMissingPrerequisite = errors.New("missing prerequisite stage")

// Observer receives pipeline telemetry. The cmd-level Prometheus metrics
// implement it; a nil Observer disables instrumentation.
type Observer interface {
	RecordStage(stage string, seconds float64)
	RecordError(component, reason string)
	SetForecast(horizonDays int, totalDemand float64)
	SetAlerts(count int)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Store    storage.Store
	Weather  exogenous.WeatherProvider
	Holidays exogenous.HolidayProvider
	Notifier alerts.Notifier
	Logger   *slog.Logger
	Observer Observer

	// Pipeline defaults, applied when a stage call leaves them zero.
	Horizon        int
	TestFraction   float64
	Thresholds     alerts.Thresholds
	Insights       insights.Options
	HolidayCountry string
}

// Manager hands out per-user sessions. Safe for concurrent use; each
// session serializes its own stage calls.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
}

// NewManager creates a session manager with the given collaborators.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Horizon <= 0 {
		deps.Horizon = forecast.DefaultHorizon
	}
	if deps.Thresholds == (alerts.Thresholds{}) {
		deps.Thresholds = alerts.DefaultThresholds()
	}
	if deps.HolidayCountry == "" {
		deps.HolidayCountry = "US"
	}
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
	}
}

// Session returns the session for a user, creating it on first use.
func (m *Manager) Session(user string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[user]
	if !ok {
		s = &Session{
			user: user,
			deps: m.deps,
			log:  m.deps.Logger.With("user", user),
		}
		m.sessions[user] = s
	}
	return s
}

// Session holds one user's pipeline state.
type Session struct {
	mu   sync.Mutex
	user string
	deps Deps
	log  *slog.Logger

	raw      *dataset.Table
	clean    *dataset.Table
	features *dataset.Table
	trained  *training.Result
	points   []forecast.Point
	alerts   []alerts.Alert
}

// Ingest loads raw row records into the session and persists them as the
// raw stage artifact. It returns the number of daily rows after
// aggregation.
func (s *Session) Ingest(ctx context.Context, records []dataset.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tbl *dataset.Table
	err := s.timed(ctx, "ingest", func() error {
		var err error
		tbl, err = dataset.Ingest(records)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	s.raw = tbl
	// later stages are invalidated by new data
	s.clean, s.features, s.trained, s.points, s.alerts = nil, nil, nil, nil, nil

	s.persist(ctx, storage.StageRaw, tbl.Records())
	return tbl.Len(), nil
}

// Preprocess cleans the raw table.
func (s *Session) Preprocess(ctx context.Context, opts preprocess.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.raw == nil {
		return fmt.Errorf("preprocess requires uploaded data: %w", ErrMissingPrerequisite)
	}

	var tbl *dataset.Table
	err := s.timed(ctx, "preprocess", func() error {
		p := &preprocess.Preprocessor{Logger: s.log}
		var err error
		tbl, err = p.Process(s.raw, opts)
		return err
	})
	if err != nil {
		return err
	}

	s.clean = tbl
	s.features, s.trained, s.points, s.alerts = nil, nil, nil, nil

	s.persist(ctx, storage.StagePreprocessed, tbl.Records())
	return nil
}

// BuildFeatures derives model inputs from the preprocessed table, joining
// exogenous weather and holiday data when providers are configured.
func (s *Session) BuildFeatures(ctx context.Context, opts features.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clean == nil {
		return fmt.Errorf("feature building requires preprocessed data: %w", ErrMissingPrerequisite)
	}

	start := s.clean.Date(0)
	end := s.clean.Date(s.clean.Len() - 1)

	var weather, holidays *dataset.Table
	if opts.Weather && s.deps.Weather != nil {
		w, err := s.deps.Weather.Weather(ctx, start, end, "")
		if err != nil {
			// exogenous data is additive, not load-bearing
			s.log.Warn("weather provider failed, continuing without", "error", err)
			s.observeError("weather", "fetch")
		} else {
			weather = w
		}
	}
	if opts.Holidays && s.deps.Holidays != nil {
		h, err := s.deps.Holidays.Holidays(ctx, start, end, s.deps.HolidayCountry)
		if err != nil {
			s.log.Warn("holiday provider failed, continuing without", "error", err)
			s.observeError("holidays", "fetch")
		} else {
			holidays = h
		}
	}

	var tbl *dataset.Table
	err := s.timed(ctx, "features", func() error {
		b := &features.Builder{Logger: s.log}
		var err error
		tbl, err = b.Build(s.clean, weather, holidays, opts)
		return err
	})
	if err != nil {
		return err
	}

	s.features = tbl
	s.trained, s.points, s.alerts = nil, nil, nil

	s.persist(ctx, storage.StageFeatures, tbl.Records())
	return nil
}

// Train fits the estimators on the feature table.
func (s *Session) Train(ctx context.Context, opts training.Options) (*training.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.features == nil {
		return nil, fmt.Errorf("training requires built features: %w", ErrMissingPrerequisite)
	}
	if opts.TestFraction == 0 {
		opts.TestFraction = s.deps.TestFraction
	}

	var res *training.Result
	err := s.timed(ctx, "train", func() error {
		tr := &training.Trainer{Logger: s.log}
		var err error
		res, err = tr.Train(ctx, s.features, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.trained = res
	s.points, s.alerts = nil, nil
	return res, nil
}

// Forecast predicts future demand, derives threshold alerts and persists
// the forecast artifact.
func (s *Session) Forecast(ctx context.Context, opts forecast.Options) ([]forecast.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trained == nil {
		return nil, fmt.Errorf("forecasting requires trained models: %w", ErrMissingPrerequisite)
	}
	if opts.Horizon <= 0 {
		opts.Horizon = s.deps.Horizon
	}

	var points []forecast.Point
	err := s.timed(ctx, "forecast", func() error {
		f := &forecast.Forecaster{Logger: s.log}
		var err error
		points, err = f.Run(s.features, s.trained, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.points = points
	s.alerts = alerts.Check(points, s.deps.Thresholds)

	if s.deps.Observer != nil {
		var total float64
		for _, p := range points {
			total += p.PredictedDemand
		}
		s.deps.Observer.SetForecast(len(points), total)
		s.deps.Observer.SetAlerts(len(s.alerts))
	}
	if len(s.alerts) > 0 && s.deps.Notifier != nil {
		if err := s.deps.Notifier.Notify(ctx, s.alerts); err != nil {
			s.log.Warn("alert notification failed", "error", err)
			s.observeError("alerts", "notify")
		}
	}

	s.persist(ctx, storage.StageForecast, forecastRecords(points))
	return points, nil
}

// Insights analyzes the demand history against the forecast.
func (s *Session) Insights(ctx context.Context) (*insights.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.points == nil {
		return nil, fmt.Errorf("insights require a forecast: %w", ErrMissingPrerequisite)
	}

	history := s.clean
	if history == nil {
		history = s.raw
	}

	var res *insights.Result
	err := s.timed(ctx, "insights", func() error {
		e := &insights.Engine{Logger: s.log}
		var err error
		res, err = e.Generate(history, s.points, s.deps.Insights)
		return err
	})
	return res, err
}

// Alerts returns the threshold alerts derived from the latest forecast.
func (s *Session) Alerts() ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.points == nil {
		return nil, fmt.Errorf("alerts require a forecast: %w", ErrMissingPrerequisite)
	}
	return s.alerts, nil
}

// Report renders the plain-text summary of the session's artifacts.
func (s *Session) Report(ctx context.Context) (string, error) {
	s.mu.Lock()
	points := s.points
	trained := s.trained
	alertList := s.alerts
	s.mu.Unlock()

	if points == nil {
		return "", fmt.Errorf("report requires a forecast: %w", ErrMissingPrerequisite)
	}

	var ins *insights.Result
	if res, err := s.Insights(ctx); err == nil {
		ins = res
	} else {
		s.log.Warn("report rendered without insights", "error", err)
	}

	return report.Render(report.Input{
		GeneratedAt: time.Now(),
		User:        s.user,
		Training:    trained,
		Forecast:    points,
		Insights:    ins,
		Alerts:      alertList,
	}), nil
}

// timed runs a stage function with logging and telemetry.
func (s *Session) timed(ctx context.Context, stage string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if s.deps.Observer != nil {
		s.deps.Observer.RecordStage(stage, elapsed.Seconds())
	}
	if err != nil {
		s.log.Error("stage failed", "stage", stage, "duration_ms", elapsed.Milliseconds(), "error", err)
		s.observeError(stage, "run")
		return err
	}
	s.log.Info("stage complete", "stage", stage, "duration_ms", elapsed.Milliseconds())
	return nil
}

// persist writes a stage artifact through the store. Persistence failures
// are logged but do not fail the stage; the in-memory artifact remains
// authoritative for this session.
func (s *Session) persist(ctx context.Context, stage storage.Stage, records []dataset.Record) {
	if s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.Put(ctx, s.user, stage, records); err != nil {
		s.log.Warn("artifact persistence failed", "stage", stage, "error", err)
		s.observeError("storage", "put")
	}
}

func (s *Session) observeError(component, reason string) {
	if s.deps.Observer != nil {
		s.deps.Observer.RecordError(component, reason)
	}
}

func forecastRecords(points []forecast.Point) []dataset.Record {
	out := make([]dataset.Record, len(points))
	for i, p := range points {
		out[i] = dataset.Record{
			"date":             p.Date.Format(dataset.DateLayout),
			"predicted_demand": p.PredictedDemand,
			"lower_bound":      p.LowerBound,
			"upper_bound":      p.UpperBound,
		}
	}
	return out
}
