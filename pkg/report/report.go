// Package report renders the pipeline outcome as a plain-text summary
// suitable for terminals and email bodies.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/alerts"
	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
	"github.com/InsaneAbhishek/inventoryai/pkg/insights"
	"github.com/InsaneAbhishek/inventoryai/pkg/models"
	"github.com/InsaneAbhishek/inventoryai/pkg/training"
)

// Input collects the artifacts a report is rendered from. Nil or empty
// fields drop their section.
type Input struct {
	GeneratedAt time.Time
	User        string
	Training    *training.Result
	Forecast    []forecast.Point
	Insights    *insights.Result
	Alerts      []alerts.Alert
}

// Render produces the text report.
func Render(in Input) string {
	var b strings.Builder

	b.WriteString("DEMAND FORECAST REPORT\n")
	b.WriteString("======================\n")
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", in.GeneratedAt.Format(time.RFC3339))
	}
	if in.User != "" {
		fmt.Fprintf(&b, "User: %s\n", in.User)
	}

	if in.Training != nil {
		b.WriteString("\nModel performance (held-out)\n----------------------------\n")
		kinds := make([]models.Kind, 0, len(in.Training.Performance))
		for k := range in.Training.Performance {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(a, b int) bool { return kinds[a] < kinds[b] })
		for _, k := range kinds {
			m := in.Training.Performance[k]
			fmt.Fprintf(&b, "%-20s MAE %.2f  RMSE %.2f  MAPE %.1f%%  R2 %.3f\n",
				k, m.MAE, m.RMSE, m.MAPE, m.R2)
			if d, ok := in.Training.Diagnostics[k]; ok {
				fmt.Fprintf(&b, "%-20s bias %+.2f  residual acf %+.2f  grade %s\n",
					"", d.Bias, d.ResidualAutocorr, d.Grade)
			}
		}
		fmt.Fprintf(&b, "Trained on %d rows, tested on %d (%d features)\n",
			in.Training.Split.TrainRows, in.Training.Split.TestRows, len(in.Training.Split.FeatureColumns))
	}

	if len(in.Forecast) > 0 {
		var sum float64
		peak := in.Forecast[0]
		for _, p := range in.Forecast {
			sum += p.PredictedDemand
			if p.PredictedDemand > peak.PredictedDemand {
				peak = p
			}
		}
		b.WriteString("\nForecast\n--------\n")
		fmt.Fprintf(&b, "Horizon: %d days (%s to %s)\n",
			len(in.Forecast),
			in.Forecast[0].Date.Format(dataset.DateLayout),
			in.Forecast[len(in.Forecast)-1].Date.Format(dataset.DateLayout))
		fmt.Fprintf(&b, "Total predicted demand: %.0f (avg %.1f/day)\n",
			sum, sum/float64(len(in.Forecast)))
		fmt.Fprintf(&b, "Peak day: %s (%.0f units)\n",
			peak.Date.Format(dataset.DateLayout), peak.PredictedDemand)
	}

	if in.Insights != nil {
		if in.Insights.Reorder != nil {
			r := in.Insights.Reorder
			b.WriteString("\nReorder economics\n-----------------\n")
			fmt.Fprintf(&b, "Safety stock:  %.0f units\n", r.SafetyStock)
			fmt.Fprintf(&b, "Reorder point: %.0f units\n", r.ReorderPoint)
			fmt.Fprintf(&b, "EOQ:           %.0f units (%.1f orders/year)\n", r.EOQ, r.OrdersPerYear)
		}
		if len(in.Insights.ABC) > 0 {
			b.WriteString("\nABC classification\n------------------\n")
			for _, e := range in.Insights.ABC {
				fmt.Fprintf(&b, "%-12s class %s  %.1f%% of revenue\n", e.ProductID, e.Class, e.RevenueShare)
			}
		}
		if len(in.Insights.Insights) > 0 {
			b.WriteString("\nRecommendations\n---------------\n")
			for _, rec := range in.Insights.Insights {
				fmt.Fprintf(&b, "[%s/%s] %s: %s\n", rec.Category, rec.Priority, rec.Title, rec.Message)
			}
		}
		if in.Insights.Summary != "" {
			fmt.Fprintf(&b, "\nSummary: %s\n", in.Insights.Summary)
		}
	}

	if len(in.Alerts) > 0 {
		b.WriteString("\nAlerts\n------\n")
		for _, a := range in.Alerts {
			fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(a.Type), a.Message)
		}
	}

	return b.String()
}
