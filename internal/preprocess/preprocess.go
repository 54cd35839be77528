// Package preprocess cleans raw sales history and derives the temporal, lag
// and rolling features of each (date, dish) row.
package preprocess

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"kitchenplan/internal/features"
	"kitchenplan/internal/models"
)

// ErrNoUsableRows is returned when nothing survives cleaning or lag trimming
var ErrNoUsableRows = errors.New("no usable sales rows")

// Preprocessor holds the lag and window sizes used for every dish
type Preprocessor struct {
	Lags    []int
	Windows []int
	// StdWindow is the trailing window of the rolling standard deviation
	StdWindow int
}

// New creates a preprocessor with lags of 1, 7 and 14 days and trailing means
// over 7, 14 and 30 days
func New() *Preprocessor {
	return &Preprocessor{
		Lags:      []int{1, 7, 14},
		Windows:   []int{7, 14, 30},
		StdWindow: 7,
	}
}

// Clean drops records without a date, dish or quantity and records with a
// negative quantity, fills missing prices with the median of the remaining
// records, and sorts by date. Callers rely on the output being sorted.
func (p *Preprocessor) Clean(records []models.SalesRecord) []models.SalesRecord {
	kept := make([]models.SalesRecord, 0, len(records))
	for _, rec := range records {
		if rec.Date == nil || rec.DishName == "" || rec.QuantitySold == nil {
			continue
		}
		if *rec.QuantitySold < 0 {
			continue
		}
		kept = append(kept, rec)
	}

	sellingMedian, hasSelling := features.Median(collect(kept, func(r models.SalesRecord) *float64 { return r.SellingPrice }))
	costMedian, hasCost := features.Median(collect(kept, func(r models.SalesRecord) *float64 { return r.CostPrice }))
	for i := range kept {
		if kept[i].SellingPrice == nil && hasSelling {
			kept[i].SellingPrice = models.Float(sellingMedian)
		}
		if kept[i].CostPrice == nil && hasCost {
			kept[i].CostPrice = models.Float(costMedian)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Day().Before(kept[j].Day())
	})
	return kept
}

// AddTemporalFeatures derives calendar features from the row date
func (p *Preprocessor) AddTemporalFeatures(r features.Row) features.Row {
	out := r.Clone()
	setCalendar(&out, r.Date)
	return out
}

// AddLagAndRolling derives lag and trailing-window features for one dish.
// series must be a single dish sorted by date. Lags are undefined for the
// first k rows; trailing windows include the current row and shrink near the
// start of the series.
func (p *Preprocessor) AddLagAndRolling(series []features.Row) []features.Row {
	qty := make([]float64, len(series))
	for i, r := range series {
		qty[i] = r.Values[features.QuantitySold]
	}

	out := make([]features.Row, len(series))
	for i, r := range series {
		row := r.Clone()
		for _, k := range p.Lags {
			if i-k >= 0 {
				row.Set(features.LagName(k), qty[i-k])
			}
		}
		for _, n := range p.Windows {
			row.Set(features.AvgName(n), stat.Mean(trailing(qty, i+1, n), nil))
		}
		row.Set(features.StdLast7, sampleStd(trailing(qty, i+1, p.StdWindow)))
		out[i] = row
	}
	return out
}

// PrepareTrainingRows runs the full training preparation: clean, temporal
// features, per-dish lag and rolling features, then drops rows whose lags are
// still undefined. A dish needs more than max(lags) days of history to
// contribute any row.
func (p *Preprocessor) PrepareTrainingRows(records []models.SalesRecord) ([]features.Row, error) {
	cleaned := p.Clean(records)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: every record lacks a date, dish_name or valid quantity_sold", ErrNoUsableRows)
	}

	order := make([]string, 0)
	byDish := make(map[string][]features.Row)
	for _, rec := range cleaned {
		if _, seen := byDish[rec.DishName]; !seen {
			order = append(order, rec.DishName)
		}
		byDish[rec.DishName] = append(byDish[rec.DishName], p.AddTemporalFeatures(toRow(rec)))
	}

	lagNames := make([]string, len(p.Lags))
	for i, k := range p.Lags {
		lagNames[i] = features.LagName(k)
	}

	rows := make([]features.Row, 0, len(cleaned))
	for _, dish := range order {
		for _, r := range p.AddLagAndRolling(byDish[dish]) {
			if r.Has(lagNames...) {
				rows = append(rows, r)
			}
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no dish has more than %d days of history", ErrNoUsableRows, p.maxLag())
	}
	return rows, nil
}

// PrepareInferenceRow builds the single feature row used to forecast dish on
// target. ok is false when history holds nothing for the dish; the caller
// then forecasts 0 without consulting a model. Lags longer than the available
// history fall back to the mean of all observed quantities rather than zero.
func (p *Preprocessor) PrepareInferenceRow(history []models.SalesRecord, dish string, target time.Time) (row features.Row, ok bool) {
	series := make([]models.SalesRecord, 0)
	for _, rec := range history {
		if rec.DishName == dish && rec.QuantitySold != nil {
			series = append(series, rec)
		}
	}
	if len(series) == 0 {
		return features.Row{}, false
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Day().Before(series[j].Day())
	})

	qty := make([]float64, len(series))
	for i, rec := range series {
		qty[i] = *rec.QuantitySold
	}
	mean := stat.Mean(qty, nil)

	row = features.NewRow(target, dish)
	setCalendar(&row, target)
	for _, k := range p.Lags {
		if k <= len(qty) {
			row.Set(features.LagName(k), qty[len(qty)-k])
		} else {
			row.Set(features.LagName(k), mean)
		}
	}
	for _, n := range p.Windows {
		row.Set(features.AvgName(n), stat.Mean(trailing(qty, len(qty), n), nil))
	}
	row.Set(features.StdLast7, sampleStd(trailing(qty, len(qty), p.StdWindow)))

	last := series[len(series)-1]
	if last.SellingPrice != nil {
		row.Set(features.SellingPrice, *last.SellingPrice)
	}
	if last.CostPrice != nil {
		row.Set(features.CostPrice, *last.CostPrice)
	}
	return row, true
}

// HistoricalMean is the mean quantity sold for dish, or 0 without history.
// It is the forecast of last resort when the estimator fails and expects
// cleaned history.
func HistoricalMean(history []models.SalesRecord, dish string) float64 {
	qty := make([]float64, 0)
	for _, rec := range history {
		if rec.DishName == dish && rec.QuantitySold != nil {
			qty = append(qty, rec.Quantity())
		}
	}
	if len(qty) == 0 {
		return 0
	}
	return stat.Mean(qty, nil)
}

func (p *Preprocessor) maxLag() int {
	m := 0
	for _, k := range p.Lags {
		m = max(m, k)
	}
	return m
}

func setCalendar(r *features.Row, date time.Time) {
	dow := (int(date.Weekday()) + 6) % 7 // Monday = 0
	_, week := date.ISOWeek()
	month := int(date.Month())

	weekend := 0.0
	if dow >= 5 {
		weekend = 1
	}

	r.Set(features.DayOfWeek, float64(dow))
	r.Set(features.IsWeekend, weekend)
	r.Set(features.DayOfMonth, float64(date.Day()))
	r.Set(features.Month, float64(month))
	r.Set(features.Quarter, float64((month-1)/3+1))
	r.Set(features.WeekOfYear, float64(week))
}

func toRow(rec models.SalesRecord) features.Row {
	r := features.NewRow(rec.Day(), rec.DishName)
	r.Set(features.QuantitySold, *rec.QuantitySold)
	if rec.SellingPrice != nil {
		r.Set(features.SellingPrice, *rec.SellingPrice)
	}
	if rec.CostPrice != nil {
		r.Set(features.CostPrice, *rec.CostPrice)
	}
	return r
}

// trailing returns up to n values ending just before index end
func trailing(values []float64, end, n int) []float64 {
	start := max(0, end-n)
	return values[start:end]
}

// sampleStd is the n-1 standard deviation, 0 for fewer than two values
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func collect(records []models.SalesRecord, field func(models.SalesRecord) *float64) []float64 {
	out := make([]float64, 0, len(records))
	for _, rec := range records {
		if v := field(rec); v != nil {
			out = append(out, *v)
		}
	}
	return out
}
