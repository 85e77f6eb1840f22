// Package insights derives inventory decisions from a demand history and
// its forecast: ABC revenue classification, reorder economics (safety
// stock, reorder point, EOQ), trend and volatility assessment, and a flat
// list of prioritized recommendations.
//
// The groups are independent. A group that cannot be computed (for example
// ABC analysis without product identifiers) is skipped with a log line and
// the remaining groups are still returned.
package insights

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
	"github.com/InsaneAbhishek/inventoryai/pkg/forecast"
)

// Insight categories.
const (
	CategoryInventory      = "inventory"
	CategoryOrdering       = "ordering"
	CategoryPlanning       = "planning"
	CategoryRisk           = "risk"
	CategoryClassification = "classification"
)

// Insight priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Options holds the cost and service assumptions behind the reorder
// economics.
type Options struct {
	LeadTimeDays int     // supplier lead time, default 7
	OrderingCost float64 // fixed cost per order, default 50
	UnitCost     float64 // fallback unit price, default 50
	HoldingRate  float64 // annual holding cost as a fraction of unit cost, default 0.2
	ServiceZ     float64 // service-level z-score, default 1.65 (~95%)
}

// DefaultOptions returns the standard assumptions.
func DefaultOptions() Options {
	return Options{
		LeadTimeDays: 7,
		OrderingCost: 50,
		UnitCost:     50,
		HoldingRate:  0.2,
		ServiceZ:     1.65,
	}
}

func (o *Options) fillDefaults() {
	d := DefaultOptions()
	if o.LeadTimeDays <= 0 {
		o.LeadTimeDays = d.LeadTimeDays
	}
	if o.OrderingCost <= 0 {
		o.OrderingCost = d.OrderingCost
	}
	if o.UnitCost <= 0 {
		o.UnitCost = d.UnitCost
	}
	if o.HoldingRate <= 0 {
		o.HoldingRate = d.HoldingRate
	}
	if o.ServiceZ <= 0 {
		o.ServiceZ = d.ServiceZ
	}
}

// Insight is one actionable recommendation.
type Insight struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// ABCEntry classifies one product by its share of total revenue.
type ABCEntry struct {
	ProductID       string  `json:"product_id"`
	Revenue         float64 `json:"revenue"`
	RevenueShare    float64 `json:"revenue_share"`
	CumulativeShare float64 `json:"cumulative_share"`
	Class           string  `json:"class"`
}

// Reorder holds the computed reorder economics.
type Reorder struct {
	SafetyStock    float64 `json:"safety_stock"`
	LeadTimeDemand float64 `json:"lead_time_demand"`
	ReorderPoint   float64 `json:"reorder_point"`
	AnnualDemand   float64 `json:"annual_demand"`
	EOQ            float64 `json:"eoq"`
	OrdersPerYear  float64 `json:"orders_per_year"`
	OrderingCost   float64 `json:"ordering_cost"`
	HoldingCost    float64 `json:"holding_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// Trend summarizes the forecast direction by comparing its first and last
// weeks.
type Trend struct {
	Direction string  `json:"direction"` // increasing, decreasing or stable
	ChangePct float64 `json:"change_pct"`
}

// Volatility summarizes the spread of the forecast demand.
type Volatility struct {
	DemandStd float64 `json:"demand_std"`
	Level     string  `json:"level"` // low, moderate or high
}

// Result is the full insight report.
type Result struct {
	ABC        []ABCEntry  `json:"abc,omitempty"`
	Reorder    *Reorder    `json:"reorder,omitempty"`
	Trend      *Trend      `json:"trend,omitempty"`
	Volatility *Volatility `json:"volatility,omitempty"`
	Insights   []Insight   `json:"insights"`
	Summary    string      `json:"summary"`
}

// Engine computes insight reports. The zero value is ready to use.
type Engine struct {
	Logger *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Generate builds the insight report from the demand history and its
// forecast. The history feeds the ABC classification; safety stock, trend
// and volatility all read the forecast series.
func (e *Engine) Generate(history *dataset.Table, points []forecast.Point, opts Options) (*Result, error) {
	if history == nil || history.Len() == 0 {
		return nil, errors.New("insights: empty history")
	}
	if len(points) == 0 {
		return nil, errors.New("insights: empty forecast")
	}
	opts.fillDefaults()

	preds := make([]float64, len(points))
	for i, p := range points {
		preds[i] = p.PredictedDemand
	}

	log := e.logger()
	res := &Result{}

	if abc, err := classifyABC(history, opts.UnitCost); err != nil {
		log.Warn("abc classification skipped", "error", err)
	} else {
		res.ABC = abc
	}

	if ro, err := reorderEconomics(preds, opts); err != nil {
		log.Warn("reorder economics skipped", "error", err)
	} else {
		res.Reorder = ro
	}

	res.Trend = forecastTrend(points)
	res.Volatility = demandVolatility(preds)

	res.Insights = e.recommend(res)
	res.Summary = summarize(res, len(points))

	log.Info("insights generated",
		"abc_products", len(res.ABC),
		"recommendations", len(res.Insights))
	return res, nil
}

// classifyABC ranks products by revenue and assigns Pareto classes: the
// products covering the first 80% of cumulative revenue are A, up to 95%
// are B, the rest C.
func classifyABC(history *dataset.Table, defaultPrice float64) ([]ABCEntry, error) {
	ids, ok := history.Text("product_id")
	if !ok {
		// encoded tables carry product_id numerically; without textual ids
		// single-product data has nothing to classify
		return nil, errors.New("no product_id column")
	}

	demand, ok := history.Numeric("demand")
	if !ok {
		demand, _ = history.Numeric("sales")
	}
	price, hasPrice := history.Numeric("price")
	revenueCol, hasRevenue := history.Numeric("revenue")

	revenue := make(map[string]float64)
	for i, id := range ids {
		if id == "" {
			continue
		}
		switch {
		case hasRevenue && !math.IsNaN(revenueCol[i]):
			revenue[id] += revenueCol[i]
		case demand != nil && !math.IsNaN(demand[i]):
			p := defaultPrice
			if hasPrice && !math.IsNaN(price[i]) {
				p = price[i]
			}
			revenue[id] += demand[i] * p
		}
	}
	if len(revenue) == 0 {
		return nil, errors.New("no revenue could be attributed")
	}

	entries := make([]ABCEntry, 0, len(revenue))
	var total float64
	for id, rev := range revenue {
		entries = append(entries, ABCEntry{ProductID: id, Revenue: rev})
		total += rev
	}
	if total == 0 {
		return nil, errors.New("total revenue is zero")
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Revenue != entries[b].Revenue {
			return entries[a].Revenue > entries[b].Revenue
		}
		return entries[a].ProductID < entries[b].ProductID
	})

	var cum float64
	for i := range entries {
		entries[i].RevenueShare = 100 * entries[i].Revenue / total
		cum += entries[i].RevenueShare
		entries[i].CumulativeShare = cum
		switch {
		case cum <= 80:
			entries[i].Class = "A"
		case cum <= 95:
			entries[i].Class = "B"
		default:
			entries[i].Class = "C"
		}
	}
	return entries, nil
}

// reorderEconomics computes safety stock, the reorder point and the
// economic order quantity from the forecast demand series.
func reorderEconomics(preds []float64, opts Options) (*Reorder, error) {
	sigma := popStd(preds)
	safety := sigma * math.Sqrt(float64(opts.LeadTimeDays)) * opts.ServiceZ

	head := preds
	if len(head) > opts.LeadTimeDays {
		head = head[:opts.LeadTimeDays]
	}
	var headSum float64
	for _, v := range head {
		headSum += v
	}
	leadTimeDemand := headSum / float64(len(head)) * float64(opts.LeadTimeDays)

	var horizonSum float64
	for _, v := range preds {
		horizonSum += v
	}
	annual := horizonSum * 12

	holding := opts.UnitCost * opts.HoldingRate
	if annual <= 0 || holding <= 0 {
		return nil, errors.New("non-positive annual demand or holding cost")
	}
	eoq := math.Sqrt(2 * annual * opts.OrderingCost / holding)
	ordersPerYear := annual / eoq

	return &Reorder{
		SafetyStock:    math.Round(safety),
		LeadTimeDemand: math.Round(leadTimeDemand),
		ReorderPoint:   math.Round(leadTimeDemand + safety),
		AnnualDemand:   math.Round(annual),
		EOQ:            math.Round(eoq),
		OrdersPerYear:  math.Round(ordersPerYear*10) / 10,
		OrderingCost:   math.Round(ordersPerYear * opts.OrderingCost),
		HoldingCost:    math.Round(eoq / 2 * holding),
		TotalCost:      math.Round(ordersPerYear*opts.OrderingCost + eoq/2*holding),
	}, nil
}

// forecastTrend compares the first and last forecast weeks; a move beyond
// 10% either way counts as a trend.
func forecastTrend(points []forecast.Point) *Trend {
	week := 7
	if len(points) < 2*week {
		week = len(points) / 2
	}
	if week == 0 {
		return &Trend{Direction: "stable"}
	}

	var first, last float64
	for _, p := range points[:week] {
		first += p.PredictedDemand
	}
	for _, p := range points[len(points)-week:] {
		last += p.PredictedDemand
	}
	first /= float64(week)
	last /= float64(week)

	t := &Trend{}
	if first != 0 {
		t.ChangePct = (last - first) / first * 100
	}
	switch {
	case t.ChangePct > 10:
		t.Direction = "increasing"
	case t.ChangePct < -10:
		t.Direction = "decreasing"
	default:
		t.Direction = "stable"
	}
	return t
}

// demandVolatility grades the spread of the forecast demand in absolute
// units: std below 30 is low, below 50 moderate, otherwise high.
func demandVolatility(preds []float64) *Volatility {
	sigma := popStd(preds)

	v := &Volatility{DemandStd: sigma}
	switch {
	case sigma < 30:
		v.Level = "low"
	case sigma < 50:
		v.Level = "moderate"
	default:
		v.Level = "high"
	}
	return v
}

// recommend turns the computed groups into prioritized recommendations.
func (e *Engine) recommend(res *Result) []Insight {
	var out []Insight

	if res.Reorder != nil {
		out = append(out,
			Insight{
				Category: CategoryInventory,
				Priority: PriorityHigh,
				Title:    "Maintain safety stock",
				Message: fmt.Sprintf("Keep at least %.0f units of safety stock and reorder when inventory falls to %.0f units.",
					res.Reorder.SafetyStock, res.Reorder.ReorderPoint),
			},
			Insight{
				Category: CategoryOrdering,
				Priority: PriorityMedium,
				Title:    "Order in economic batches",
				Message: fmt.Sprintf("Order %.0f units per purchase (about %.1f orders per year) to minimize combined ordering and holding cost of %.0f.",
					res.Reorder.EOQ, res.Reorder.OrdersPerYear, res.Reorder.TotalCost),
			},
		)
	}

	if res.Trend != nil {
		switch res.Trend.Direction {
		case "increasing":
			out = append(out, Insight{
				Category: CategoryPlanning,
				Priority: PriorityHigh,
				Title:    "Demand is rising",
				Message: fmt.Sprintf("Forecast demand rises %.1f%% over the horizon; increase stock levels and confirm supplier capacity.",
					res.Trend.ChangePct),
			})
		case "decreasing":
			out = append(out, Insight{
				Category: CategoryPlanning,
				Priority: PriorityHigh,
				Title:    "Demand is falling",
				Message: fmt.Sprintf("Forecast demand drops %.1f%% over the horizon; reduce order volumes to avoid excess inventory.",
					res.Trend.ChangePct),
			})
		default:
			out = append(out, Insight{
				Category: CategoryPlanning,
				Priority: PriorityMedium,
				Title:    "Demand is stable",
				Message:  "Forecast demand is flat; current ordering cadence can continue.",
			})
		}
	}

	if res.Volatility != nil {
		switch res.Volatility.Level {
		case "high":
			out = append(out, Insight{
				Category: CategoryRisk,
				Priority: PriorityHigh,
				Title:    "Highly volatile demand",
				Message: fmt.Sprintf("Forecast demand varies by %.0f units day to day; carry extra buffer stock and review the forecast weekly.",
					res.Volatility.DemandStd),
			})
		case "moderate":
			out = append(out, Insight{
				Category: CategoryRisk,
				Priority: PriorityMedium,
				Title:    "Moderately volatile demand",
				Message: fmt.Sprintf("Forecast demand varies by %.0f units day to day; monitor stock-outs during demand spikes.",
					res.Volatility.DemandStd),
			})
		}
	}

	if n := countClass(res.ABC, "A"); n > 0 {
		out = append(out, Insight{
			Category: CategoryClassification,
			Priority: PriorityHigh,
			Title:    "Protect class A products",
			Message: fmt.Sprintf("%d product(s) drive 80%% of revenue; prioritize their availability and service levels.",
				n),
		})
	}
	return out
}

func summarize(res *Result, horizon int) string {
	direction := "stable"
	if res.Trend != nil {
		direction = res.Trend.Direction
	}
	s := fmt.Sprintf("Demand over the next %d days is %s", horizon, direction)
	if res.Reorder != nil {
		s += fmt.Sprintf("; reorder at %.0f units with a safety stock of %.0f", res.Reorder.ReorderPoint, res.Reorder.SafetyStock)
	}
	return s + "."
}

func countClass(entries []ABCEntry, class string) int {
	n := 0
	for _, e := range entries {
		if e.Class == class {
			n++
		}
	}
	return n
}

func popStd(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := stat.Mean(vals, nil)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}
