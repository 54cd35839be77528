package features

import (
	"fmt"
	"math"
	"sort"
)

// DerivePriceFeatures adds profit_margin, profit_margin_pct and is_premium to
// every row that carries both prices. is_premium compares each selling price
// with the median selling price across those rows.
func DerivePriceFeatures(rows []Row) []Row {
	out := cloneRows(rows)

	prices := make([]float64, 0, len(out))
	for _, r := range out {
		if r.Has(SellingPrice, CostPrice) {
			prices = append(prices, r.Values[SellingPrice])
		}
	}
	median, ok := Median(prices)
	if !ok {
		return out
	}

	for i := range out {
		r := &out[i]
		if !r.Has(SellingPrice, CostPrice) {
			continue
		}
		sp, cp := r.Values[SellingPrice], r.Values[CostPrice]
		margin := sp - cp
		r.Set(ProfitMargin, margin)

		// A free dish has no meaningful margin percentage
		pct := 0.0
		if sp != 0 {
			pct = margin / sp * 100
		}
		r.Set(ProfitMarginPct, pct)

		premium := 0.0
		if sp > median {
			premium = 1
		}
		r.Set(IsPremium, premium)
	}
	return out
}

// DeriveDemandFeatures adds demand_volatility, demand_trend and momentum. The
// +1 in each denominator keeps zero-demand dishes finite and must stay 1 for
// parity with trained models.
func DeriveDemandFeatures(r Row) Row {
	out := r.Clone()
	avg7, ok := out.Get(AvgLast7)
	if !ok {
		return out
	}
	std7, ok := out.Get(StdLast7)
	if !ok || math.IsNaN(std7) {
		std7 = 0
		out.Set(StdLast7, 0)
	}

	out.Set(DemandVolatility, std7/(avg7+1))
	if avg14, ok := out.Get(AvgLast14); ok {
		out.Set(DemandTrend, (avg7-avg14)/(avg14+1))
	}
	if lag1, ok := out.Get(Lag1); ok {
		out.Set(Momentum, (lag1-avg7)/(avg7+1))
	}
	return out
}

// DeriveCyclicFeatures encodes day of week and month on the unit circle so
// that Sunday sits next to Monday and December next to January
func DeriveCyclicFeatures(r Row) Row {
	out := r.Clone()
	if dow, ok := out.Get(DayOfWeek); ok {
		out.Set(DayOfWeekSin, math.Sin(2*math.Pi*dow/7))
		out.Set(DayOfWeekCos, math.Cos(2*math.Pi*dow/7))
	}
	if month, ok := out.Get(Month); ok {
		out.Set(MonthSin, math.Sin(2*math.Pi*month/12))
		out.Set(MonthCos, math.Cos(2*math.Pi*month/12))
	}
	return out
}

// Engineer applies every derivation whose inputs are present. Each stage is
// skipped independently, and the result only depends on base columns, so
// engineering an engineered batch changes nothing.
func Engineer(rows []Row) []Row {
	out := DerivePriceFeatures(rows)
	for i, r := range out {
		if r.Has(AvgLast7) {
			r = DeriveDemandFeatures(r)
		}
		if r.Has(DayOfWeek, Month) {
			r = DeriveCyclicFeatures(r)
		}
		out[i] = r
	}
	return out
}

// SelectColumns returns the canonical features defined in every row, in
// canonical order. The result is the column contract stored with a model.
func SelectColumns(rows []Row) []string {
	if len(rows) == 0 {
		return nil
	}
	columns := make([]string, 0, len(Canonical))
	for _, name := range Canonical {
		present := true
		for _, r := range rows {
			if _, ok := r.Values[name]; !ok {
				present = false
				break
			}
		}
		if present {
			columns = append(columns, name)
		}
	}
	return columns
}

// SelectFeatureVector projects the row onto columns, in order. The target
// (quantity_sold) is returned when the row carries it.
func SelectFeatureVector(r Row, columns []string) (vector []float64, target float64, hasTarget bool, err error) {
	vector = make([]float64, len(columns))
	for i, name := range columns {
		v, ok := r.Values[name]
		if !ok {
			return nil, 0, false, fmt.Errorf("%w: row for %q lacks %q", ErrConfigMismatch, r.DishName, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, false, fmt.Errorf("%w: %q is not finite for %q", ErrConfigMismatch, name, r.DishName)
		}
		vector[i] = v
	}
	target, hasTarget = r.Values[QuantitySold]
	return vector, target, hasTarget, nil
}

// Matrix projects every row and returns the design matrix and targets. Rows
// without a target are rejected.
func Matrix(rows []Row, columns []string) ([][]float64, []float64, error) {
	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, r := range rows {
		vec, target, ok, err := SelectFeatureVector(r, columns)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("row for %q on %s has no %s", r.DishName, r.Date.Format("2006-01-02"), QuantitySold)
		}
		x = append(x, vec)
		y = append(y, target)
	}
	return x, y, nil
}

// Median returns the middle value, averaging the two middle values for an
// even count. ok is false for an empty input.
func Median(values []float64) (median float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
