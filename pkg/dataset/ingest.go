package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultProductID is assigned when the source data carries no product
// identifier. Daily aggregation collapses everything to a single series.
const DefaultProductID = "P001"

// defaultStart anchors synthesized date ranges when the source has no
// date-like column at all.
var defaultStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Ingest converts raw row records into a daily demand table.
//
// It normalizes column names (lowercase, spaces to underscores), locates or
// synthesizes a date column, maps quantity to sales when sales is absent,
// synthesizes demand from sales, and aggregates to exactly one row per
// calendar day (sales and demand summed, price averaged). The result is
// sorted by ascending date.
//
// Records that cannot supply a quantity-like value after inference cause an
// error; ingestion is all-or-nothing.
func Ingest(records []Record) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to ingest")
	}

	normalized := make([]Record, len(records))
	for i, rec := range records {
		norm := make(Record, len(rec))
		for k, v := range rec {
			norm[NormalizeColumn(k)] = v
		}
		normalized[i] = norm
	}

	dateCol := findDateColumn(normalized[0])

	type daily struct {
		sales, demand float64
		priceSum      float64
		priceCount    int
	}
	byDay := make(map[time.Time]*daily)

	for i, rec := range normalized {
		var day time.Time
		if dateCol == "" {
			day = defaultStart.AddDate(0, 0, i)
		} else {
			parsed, err := parseDate(rec[dateCol])
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			day = parsed
		}
		day = day.Truncate(24 * time.Hour)

		sales, ok := quantityValue(rec)
		if !ok {
			return nil, fmt.Errorf("record %d: no sales, demand or quantity column", i)
		}

		agg := byDay[day]
		if agg == nil {
			agg = &daily{}
			byDay[day] = agg
		}
		agg.sales += sales
		if d, ok := toFloat64(rec["demand"]); ok {
			agg.demand += d
		} else {
			agg.demand += sales
		}
		if p, ok := toFloat64(rec["price"]); ok {
			agg.priceSum += p
			agg.priceCount++
		}
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	table := NewTable(days)
	sales := make([]float64, len(days))
	demand := make([]float64, len(days))
	products := make([]string, len(days))
	hasPrice := false
	price := make([]float64, len(days))

	for i, day := range days {
		agg := byDay[day]
		sales[i] = agg.sales
		demand[i] = agg.demand
		products[i] = DefaultProductID
		if agg.priceCount > 0 {
			price[i] = agg.priceSum / float64(agg.priceCount)
			hasPrice = true
		}
	}

	if err := table.SetNumeric("sales", sales); err != nil {
		return nil, err
	}
	if err := table.SetNumeric("demand", demand); err != nil {
		return nil, err
	}
	if hasPrice {
		if err := table.SetNumeric("price", price); err != nil {
			return nil, err
		}
	}
	if err := table.SetText("product_id", products); err != nil {
		return nil, err
	}

	return table, nil
}

// NormalizeColumn lowercases a column name and replaces spaces with
// underscores.
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// findDateColumn returns the first column whose name is "date" or contains
// "date" or "time", or "" when none exists.
func findDateColumn(rec Record) string {
	if _, ok := rec["date"]; ok {
		return "date"
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "date") || strings.Contains(k, "time") {
			return k
		}
	}
	return ""
}

// quantityValue resolves the quantity-like value of a record, preferring
// sales, then quantity.
func quantityValue(rec Record) (float64, bool) {
	if v, ok := toFloat64(rec["sales"]); ok {
		return v, true
	}
	if v, ok := toFloat64(rec["quantity"]); ok {
		return v, true
	}
	return 0, false
}

// toFloat64 coerces common numeric representations to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseDate accepts DateLayout strings, RFC 3339 strings, Unix seconds and
// time.Time values.
func parseDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		if t, err := time.Parse(DateLayout, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	case float64:
		return time.Unix(int64(val), 0).UTC(), nil
	case int:
		return time.Unix(int64(val), 0).UTC(), nil
	case int64:
		return time.Unix(val, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}
