// Package exogenous supplies external signal tables (weather, holidays) for
// a date range. Providers tolerate missing data: an empty table is a valid
// result and downstream feature construction simply skips the join.
package exogenous

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// WeatherProvider returns daily weather rows covering [start, end].
type WeatherProvider interface {
	Weather(ctx context.Context, start, end time.Time, location string) (*dataset.Table, error)
}

// SimulatedWeather generates deterministic synthetic weather with a yearly
// temperature sinusoid, suitable for installations without a weather API.
type SimulatedWeather struct {
	Seed int64
}

// Weather returns one row per day in [start, end] with temperature,
// humidity, precipitation, wind_speed and location columns.
func (s *SimulatedWeather) Weather(_ context.Context, start, end time.Time, location string) (*dataset.Table, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("weather range end %s before start %s", end.Format(dataset.DateLayout), start.Format(dataset.DateLayout))
	}

	rng := rand.New(rand.NewSource(s.Seed))

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	n := len(dates)
	temperature := make([]float64, n)
	humidity := make([]float64, n)
	precipitation := make([]float64, n)
	wind := make([]float64, n)
	loc := make([]string, n)

	for i, d := range dates {
		seasonal := 10 * math.Sin(2*math.Pi*float64(d.YearDay())/365)
		temperature[i] = round1(20 + rng.NormFloat64()*10 + seasonal)
		humidity[i] = float64(40 + rng.Intn(50))
		precipitation[i] = round1(rng.ExpFloat64() * 2)
		wind[i] = round1(5 + rng.Float64()*20)
		loc[i] = location
	}

	table := dataset.NewTable(dates)
	for _, c := range []struct {
		name string
		col  []float64
	}{
		{"temperature", temperature},
		{"humidity", humidity},
		{"precipitation", precipitation},
		{"wind_speed", wind},
	} {
		if err := table.SetNumeric(c.name, c.col); err != nil {
			return nil, err
		}
	}
	if err := table.SetText("location", loc); err != nil {
		return nil, err
	}
	return table, nil
}

// HTTPWeather fetches daily weather from a JSON API. Field extraction is
// configured with gjson paths so the client works against any provider that
// returns parallel arrays of dates and measurements.
type HTTPWeather struct {
	// URL is the request URL template. It receives start date, end date and
	// location via fmt verbs, in that order.
	URL string

	// DatePath, TemperaturePath, HumidityPath, PrecipitationPath and
	// WindSpeedPath are gjson paths selecting parallel arrays from the
	// response body. DatePath and TemperaturePath are required; the rest
	// are optional.
	DatePath          string
	TemperaturePath   string
	HumidityPath      string
	PrecipitationPath string
	WindSpeedPath     string

	Client *http.Client
}

// Weather performs the HTTP request and extracts weather rows.
func (h *HTTPWeather) Weather(ctx context.Context, start, end time.Time, location string) (*dataset.Table, error) {
	if h.URL == "" {
		return nil, fmt.Errorf("weather URL not configured")
	}
	if h.DatePath == "" || h.TemperaturePath == "" {
		return nil, fmt.Errorf("weather datePath and temperaturePath are required")
	}

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	url := fmt.Sprintf(h.URL, start.Format(dataset.DateLayout), end.Format(dataset.DateLayout), location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}

	dateResults := gjson.GetBytes(body, h.DatePath).Array()
	if len(dateResults) == 0 {
		return dataset.NewTable(nil), nil
	}

	dates := make([]time.Time, 0, len(dateResults))
	for _, r := range dateResults {
		d, err := time.Parse(dataset.DateLayout, r.String())
		if err != nil {
			return nil, fmt.Errorf("weather date %q: %w", r.String(), err)
		}
		dates = append(dates, d)
	}

	table := dataset.NewTable(dates)

	extract := func(name, path string, required bool) error {
		if path == "" {
			return nil
		}
		results := gjson.GetBytes(body, path).Array()
		if len(results) != len(dates) {
			if required {
				return fmt.Errorf("weather field %q has %d values for %d dates", name, len(results), len(dates))
			}
			return nil
		}
		col := make([]float64, len(results))
		for i, r := range results {
			col[i] = r.Float()
		}
		return table.SetNumeric(name, col)
	}

	if err := extract("temperature", h.TemperaturePath, true); err != nil {
		return nil, err
	}
	if err := extract("humidity", h.HumidityPath, false); err != nil {
		return nil, err
	}
	if err := extract("precipitation", h.PrecipitationPath, false); err != nil {
		return nil, err
	}
	if err := extract("wind_speed", h.WindSpeedPath, false); err != nil {
		return nil, err
	}

	loc := make([]string, len(dates))
	for i := range loc {
		loc[i] = location
	}
	if err := table.SetText("location", loc); err != nil {
		return nil, err
	}

	return table, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
