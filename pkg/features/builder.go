// Package features derives model inputs from a cleaned demand table: lag
// and rolling-window statistics, calendar and cyclical encodings, exogenous
// weather/holiday joins and trend measures.
//
// Construction never filters rows. Leading rows left undefined by lag and
// window look-back are repaired afterwards with a backward fill followed by
// a forward fill, because training cannot tolerate missing values.
package features

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// Lag offsets and rolling windows applied to the demand column.
var (
	lagOffsets     = []int{1, 2, 3, 7, 14, 30}
	rollingWindows = []int{3, 7, 14, 30}
)

const ewmSpan = 7

// Options toggles feature groups.
type Options struct {
	Lags           bool
	MovingAverages bool
	DateFeatures   bool
	Weather        bool
	Holidays       bool
}

// DefaultOptions enables every feature group.
func DefaultOptions() Options {
	return Options{
		Lags:           true,
		MovingAverages: true,
		DateFeatures:   true,
		Weather:        true,
		Holidays:       true,
	}
}

// Builder constructs feature tables. The zero value is ready to use.
type Builder struct {
	Logger *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build derives features from clean into a new table. weather and holidays
// may be nil or empty; the corresponding joins are skipped. Trend features
// are always added. Row count always equals the input's.
func (b *Builder) Build(clean, weather, holidays *dataset.Table, opts Options) (*dataset.Table, error) {
	if clean == nil || clean.Len() == 0 {
		return nil, fmt.Errorf("features: empty input table")
	}

	t := clean.Clone()
	target := targetColumn(t)
	if target == "" {
		return nil, fmt.Errorf("features: no demand or sales column")
	}
	log := b.logger()

	if opts.Lags {
		if err := addLags(t, target); err != nil {
			return nil, fmt.Errorf("features: lags: %w", err)
		}
		log.Info("lag features created", "offsets", len(lagOffsets))
	}

	if opts.MovingAverages {
		if err := addRolling(t, target); err != nil {
			return nil, fmt.Errorf("features: rolling: %w", err)
		}
		log.Info("rolling features created", "windows", len(rollingWindows))
	}

	if opts.DateFeatures {
		if err := addCalendar(t); err != nil {
			return nil, fmt.Errorf("features: calendar: %w", err)
		}
		log.Info("calendar features created")
	}

	if opts.Weather && weather != nil && weather.Len() > 0 {
		if err := addWeather(t, weather); err != nil {
			return nil, fmt.Errorf("features: weather: %w", err)
		}
		log.Info("weather features merged", "weather_rows", weather.Len())
	}

	if opts.Holidays && holidays != nil && holidays.Len() > 0 {
		if err := addHolidays(t, holidays); err != nil {
			return nil, fmt.Errorf("features: holidays: %w", err)
		}
		log.Info("holiday features merged", "holiday_rows", holidays.Len())
	}

	if err := addTrend(t, target); err != nil {
		return nil, fmt.Errorf("features: trend: %w", err)
	}

	fillGaps(t)

	log.Info("feature engineering complete", "rows", t.Len(), "columns", len(t.NumericColumns()))
	return t, nil
}

func targetColumn(t *dataset.Table) string {
	if _, ok := t.Numeric("demand"); ok {
		return "demand"
	}
	if _, ok := t.Numeric("sales"); ok {
		return "sales"
	}
	return ""
}

func addLags(t *dataset.Table, target string) error {
	col, _ := t.Numeric(target)
	for _, lag := range lagOffsets {
		lagged := make([]float64, len(col))
		for i := range lagged {
			if i < lag {
				lagged[i] = math.NaN()
			} else {
				lagged[i] = col[i-lag]
			}
		}
		if err := t.SetNumeric(fmt.Sprintf("%s_lag_%d", target, lag), lagged); err != nil {
			return err
		}
	}
	return nil
}

func addRolling(t *dataset.Table, target string) error {
	col, _ := t.Numeric(target)
	for _, w := range rollingWindows {
		means := make([]float64, len(col))
		stds := make([]float64, len(col))
		for i := range col {
			window := trailingWindow(col, i, w)
			means[i] = meanOf(window)
			stds[i] = popStdOf(window)
		}
		if err := t.SetNumeric(fmt.Sprintf("%s_ma_%d", target, w), means); err != nil {
			return err
		}
		if err := t.SetNumeric(fmt.Sprintf("%s_std_%d", target, w), stds); err != nil {
			return err
		}
	}

	ema := ewm(col, ewmSpan)
	return t.SetNumeric(fmt.Sprintf("%s_ema_%d", target, ewmSpan), ema)
}

func addCalendar(t *dataset.Table) error {
	n := t.Len()
	cols := map[string][]float64{
		"year": make([]float64, n), "month": make([]float64, n),
		"day": make([]float64, n), "day_of_week": make([]float64, n),
		"day_of_year": make([]float64, n), "week_of_year": make([]float64, n),
		"quarter": make([]float64, n), "is_weekend": make([]float64, n),
		"is_month_start": make([]float64, n), "is_month_end": make([]float64, n),
		"is_quarter_start": make([]float64, n), "is_quarter_end": make([]float64, n),
		"month_sin": make([]float64, n), "month_cos": make([]float64, n),
		"day_of_week_sin": make([]float64, n), "day_of_week_cos": make([]float64, n),
	}

	for i := 0; i < n; i++ {
		c := CalendarFields(t.Date(i))
		cols["year"][i] = c.Year
		cols["month"][i] = c.Month
		cols["day"][i] = c.Day
		cols["day_of_week"][i] = c.DayOfWeek
		cols["day_of_year"][i] = c.DayOfYear
		cols["week_of_year"][i] = c.WeekOfYear
		cols["quarter"][i] = c.Quarter
		cols["is_weekend"][i] = c.IsWeekend
		cols["is_month_start"][i] = c.IsMonthStart
		cols["is_month_end"][i] = c.IsMonthEnd
		cols["is_quarter_start"][i] = c.IsQuarterStart
		cols["is_quarter_end"][i] = c.IsQuarterEnd
		cols["month_sin"][i] = c.MonthSin
		cols["month_cos"][i] = c.MonthCos
		cols["day_of_week_sin"][i] = c.DayOfWeekSin
		cols["day_of_week_cos"][i] = c.DayOfWeekCos
	}

	// fixed order keeps feature matrices deterministic
	order := []string{
		"year", "month", "day", "day_of_week", "day_of_year", "week_of_year",
		"quarter", "is_weekend", "is_month_start", "is_month_end",
		"is_quarter_start", "is_quarter_end", "month_sin", "month_cos",
		"day_of_week_sin", "day_of_week_cos",
	}
	for _, name := range order {
		if err := t.SetNumeric(name, cols[name]); err != nil {
			return err
		}
	}
	return nil
}

// Calendar holds the deterministic calendar-derived fields for one date.
// The forecaster reuses it to rebuild these fields for future dates.
type Calendar struct {
	Year, Month, Day, DayOfWeek, DayOfYear, WeekOfYear, Quarter   float64
	IsWeekend, IsMonthStart, IsMonthEnd                           float64
	IsQuarterStart, IsQuarterEnd                                  float64
	MonthSin, MonthCos, DayOfWeekSin, DayOfWeekCos                float64
}

// CalendarFields computes calendar features for a date. Day-of-week is
// Monday=0 .. Sunday=6.
func CalendarFields(d time.Time) Calendar {
	dow := float64((int(d.Weekday()) + 6) % 7)
	month := float64(d.Month())
	_, isoWeek := d.ISOWeek()
	quarter := float64((int(d.Month())-1)/3 + 1)

	var c Calendar
	c.Year = float64(d.Year())
	c.Month = month
	c.Day = float64(d.Day())
	c.DayOfWeek = dow
	c.DayOfYear = float64(d.YearDay())
	c.WeekOfYear = float64(isoWeek)
	c.Quarter = quarter

	if dow >= 5 {
		c.IsWeekend = 1
	}
	if d.Day() == 1 {
		c.IsMonthStart = 1
	}
	if d.AddDate(0, 0, 1).Day() == 1 {
		c.IsMonthEnd = 1
	}
	if d.Day() == 1 && (d.Month() == time.January || d.Month() == time.April || d.Month() == time.July || d.Month() == time.October) {
		c.IsQuarterStart = 1
	}
	if c.IsMonthEnd == 1 && (d.Month() == time.March || d.Month() == time.June || d.Month() == time.September || d.Month() == time.December) {
		c.IsQuarterEnd = 1
	}

	c.MonthSin = math.Sin(2 * math.Pi * month / 12)
	c.MonthCos = math.Cos(2 * math.Pi * month / 12)
	c.DayOfWeekSin = math.Sin(2 * math.Pi * dow / 7)
	c.DayOfWeekCos = math.Cos(2 * math.Pi * dow / 7)
	return c
}

func addWeather(t, weather *dataset.Table) error {
	if err := leftJoin(t, weather); err != nil {
		return err
	}

	if temp, ok := t.Numeric("temperature"); ok {
		squared := make([]float64, len(temp))
		category := make([]string, len(temp))
		hot := make([]float64, len(temp))
		for i, v := range temp {
			squared[i] = v * v
			category[i] = TempCategory(v)
			if v > 25 {
				hot[i] = 1
			}
		}
		if err := t.SetNumeric("temp_squared", squared); err != nil {
			return err
		}
		if err := t.SetText("temp_category", category); err != nil {
			return err
		}
		if err := t.SetNumeric("is_hot_day", hot); err != nil {
			return err
		}
	}

	if precip, ok := t.Numeric("precipitation"); ok {
		rainy := make([]float64, len(precip))
		category := make([]string, len(precip))
		for i, v := range precip {
			if v > 0 {
				rainy[i] = 1
			}
			category[i] = PrecipitationCategory(v)
		}
		if err := t.SetNumeric("is_rainy_day", rainy); err != nil {
			return err
		}
		if err := t.SetText("precipitation_category", category); err != nil {
			return err
		}
	}
	return nil
}

// TempCategory bins a temperature: cold < 10 <= cool < 20 <= warm < 30 <= hot.
func TempCategory(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case v < 10:
		return "cold"
	case v < 20:
		return "cool"
	case v < 30:
		return "warm"
	default:
		return "hot"
	}
}

// PrecipitationCategory bins daily precipitation in millimetres.
func PrecipitationCategory(v float64) string {
	switch {
	case math.IsNaN(v), v <= 0:
		return "no_rain"
	case v <= 5:
		return "light"
	case v <= 10:
		return "moderate"
	default:
		return "heavy"
	}
}

func addHolidays(t, holidays *dataset.Table) error {
	if err := leftJoin(t, holidays); err != nil {
		return err
	}

	flags, ok := t.Numeric("is_holiday")
	if !ok {
		return nil
	}

	// missing joins are treated as non-holidays
	cleaned := make([]float64, len(flags))
	for i, v := range flags {
		if math.IsNaN(v) {
			cleaned[i] = 0
		} else {
			cleaned[i] = v
		}
	}
	if err := t.SetNumeric("is_holiday", cleaned); err != nil {
		return err
	}

	n := len(cleaned)
	pre := make([]float64, n)
	post := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < n {
			pre[i] = cleaned[i+1]
		}
		if i > 0 {
			post[i] = cleaned[i-1]
		}
	}
	if err := t.SetNumeric("is_pre_holiday", pre); err != nil {
		return err
	}
	return t.SetNumeric("is_post_holiday", post)
}

func addTrend(t *dataset.Table, target string) error {
	col, _ := t.Numeric(target)
	n := len(col)

	trend := make([]float64, n)
	trendSq := make([]float64, n)
	diff := make([]float64, n)
	pct := make([]float64, n)
	for i := 0; i < n; i++ {
		trend[i] = float64(i)
		trendSq[i] = float64(i) * float64(i)
		if i == 0 {
			diff[i] = math.NaN()
			pct[i] = math.NaN()
		} else {
			diff[i] = col[i] - col[i-1]
			if col[i-1] == 0 {
				pct[i] = math.NaN()
			} else {
				pct[i] = (col[i] - col[i-1]) / col[i-1] * 100
			}
		}
	}

	vol7 := make([]float64, n)
	vol14 := make([]float64, n)
	for i := 0; i < n; i++ {
		vol7[i] = popStdOf(trailingWindow(col, i, 7))
		vol14[i] = popStdOf(trailingWindow(col, i, 14))
	}

	ma7Name := fmt.Sprintf("%s_ma_7", target)
	ma7, ok := t.Numeric(ma7Name)
	if !ok {
		// moving averages may be disabled; derive the 7-day mean locally
		derived := make([]float64, n)
		for i := 0; i < n; i++ {
			derived[i] = meanOf(trailingWindow(col, i, 7))
		}
		ma7 = derived
	}
	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		if ma7[i] == 0 || math.IsNaN(ma7[i]) {
			ratio[i] = math.NaN()
		} else {
			ratio[i] = col[i] / ma7[i]
		}
	}

	// explicit order, same reason as calendar columns
	ordered := []struct {
		name string
		vals []float64
	}{
		{"trend", trend}, {"trend_squared", trendSq},
		{"demand_change", diff}, {"demand_change_pct", pct},
		{"demand_volatility_7", vol7}, {"demand_volatility_14", vol14},
		{"demand_ma_ratio_7", ratio},
	}
	for _, c := range ordered {
		if err := t.SetNumeric(c.name, c.vals); err != nil {
			return err
		}
	}
	return nil
}

// leftJoin merges other's columns into t by exact date match. Rows of t
// without a match get NaN (numeric) or "" (text); rows of t are never
// dropped.
func leftJoin(t, other *dataset.Table) error {
	index := make(map[time.Time]int, other.Len())
	for i, d := range other.Dates() {
		index[d] = i
	}

	for _, name := range other.NumericColumns() {
		src, _ := other.Numeric(name)
		col := make([]float64, t.Len())
		for i, d := range t.Dates() {
			if j, ok := index[d]; ok {
				col[i] = src[j]
			} else {
				col[i] = math.NaN()
			}
		}
		if err := t.SetNumeric(name, col); err != nil {
			return err
		}
	}
	for _, name := range other.TextColumns() {
		src, _ := other.Text(name)
		col := make([]string, t.Len())
		for i, d := range t.Dates() {
			if j, ok := index[d]; ok {
				col[i] = src[j]
			}
		}
		if err := t.SetText(name, col); err != nil {
			return err
		}
	}
	return nil
}

// fillGaps repairs NaNs left by look-back features: backward fill first,
// then forward fill for any trailing gaps.
func fillGaps(t *dataset.Table) {
	for _, name := range t.NumericColumns() {
		col, _ := t.Numeric(name)
		filled := make([]float64, len(col))
		copy(filled, col)

		for i := len(filled) - 2; i >= 0; i-- {
			if math.IsNaN(filled[i]) && !math.IsNaN(filled[i+1]) {
				filled[i] = filled[i+1]
			}
		}
		for i := 1; i < len(filled); i++ {
			if math.IsNaN(filled[i]) && !math.IsNaN(filled[i-1]) {
				filled[i] = filled[i-1]
			}
		}
		_ = t.SetNumeric(name, filled)
	}
}

// trailingWindow returns col[max(0,i-w+1) .. i], the available portion of a
// w-wide trailing window ending at i.
func trailingWindow(col []float64, i, w int) []float64 {
	lo := i - w + 1
	if lo < 0 {
		lo = 0
	}
	return col[lo : i+1]
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func popStdOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	mean := meanOf(vals)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// ewm computes an adjusted exponentially weighted mean with the given span
// (alpha = 2/(span+1)), matching the usual adjust=true formulation.
func ewm(col []float64, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(col))
	var num, den float64
	for i, v := range col {
		num = v + (1-alpha)*num
		den = 1 + (1-alpha)*den
		out[i] = num / den
	}
	return out
}
