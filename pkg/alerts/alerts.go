// Package alerts flags forecast days whose predicted demand falls below
// configured stock-risk thresholds and fans the alerts out to notifier
// sinks.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
)

// Alert types.
const (
	TypeLow      = "low"
	TypeCritical = "critical"
)

// Thresholds are the demand levels below which a day is flagged. A day
// below Critical produces a single critical alert, not a low one as well.
type Thresholds struct {
	Low      float64
	Critical float64
}

// DefaultThresholds returns the standard levels.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 100, Critical: 50}
}

// Alert flags one forecast day.
type Alert struct {
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
	Demand  float64   `json:"demand"`
	Message string    `json:"message"`
}

// Check scans the forecast and returns one alert per flagged day, in date
// order.
func Check(points []forecast.Point, th Thresholds) []Alert {
	var out []Alert
	for _, p := range points {
		switch {
		case p.PredictedDemand < th.Critical:
			out = append(out, Alert{
				Date:   p.Date,
				Type:   TypeCritical,
				Demand: p.PredictedDemand,
				Message: fmt.Sprintf("critically low demand of %.0f predicted for %s, expect stock imbalance",
					p.PredictedDemand, p.Date.Format(dataset.DateLayout)),
			})
		case p.PredictedDemand < th.Low:
			out = append(out, Alert{
				Date:   p.Date,
				Type:   TypeLow,
				Demand: p.PredictedDemand,
				Message: fmt.Sprintf("low demand of %.0f predicted for %s",
					p.PredictedDemand, p.Date.Format(dataset.DateLayout)),
			})
		}
	}
	return out
}

// Notifier delivers alerts to some sink.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// LogNotifier writes alerts to a structured logger. A nil Logger uses the
// default one.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs each alert at a level matching its type.
func (n *LogNotifier) Notify(ctx context.Context, alerts []Alert) error {
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}
	for _, a := range alerts {
		level := slog.LevelWarn
		if a.Type == TypeCritical {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "demand alert",
			slog.String("type", a.Type),
			slog.String("date", a.Date.Format(dataset.DateLayout)),
			slog.Float64("demand", a.Demand),
			slog.String("message", a.Message))
	}
	return nil
}
