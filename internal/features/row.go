// Package features derives price, demand and cyclic features from
// preprocessed sales rows and projects rows onto the ordered feature vector
// consumed by the demand estimator.
package features

import (
	"errors"
	"fmt"
	"time"
)

// Base and derived column names
const (
	DayOfWeek    = "day_of_week"
	IsWeekend    = "is_weekend"
	DayOfMonth   = "day_of_month"
	Month        = "month"
	Quarter      = "quarter"
	WeekOfYear   = "week_of_year"
	DayOfWeekSin = "day_of_week_sin"
	DayOfWeekCos = "day_of_week_cos"
	MonthSin     = "month_sin"
	MonthCos     = "month_cos"

	Lag1  = "lag_1_days"
	Lag7  = "lag_7_days"
	Lag14 = "lag_14_days"

	AvgLast7  = "avg_last_7_days"
	AvgLast14 = "avg_last_14_days"
	AvgLast30 = "avg_last_30_days"
	StdLast7  = "std_last_7_days"

	SellingPrice     = "selling_price"
	CostPrice        = "cost_price"
	ProfitMargin     = "profit_margin"
	ProfitMarginPct  = "profit_margin_pct"
	IsPremium        = "is_premium"
	DemandVolatility = "demand_volatility"
	DemandTrend      = "demand_trend"
	Momentum         = "momentum"

	// QuantitySold is the training target
	QuantitySold = "quantity_sold"
)

// ErrConfigMismatch is returned when a row cannot be projected onto the
// feature columns a model was trained with
var ErrConfigMismatch = errors.New("feature columns do not match the trained model")

// Canonical is the fixed order of every feature the estimator may consume
var Canonical = []string{
	// Temporal
	DayOfWeek, IsWeekend, DayOfMonth, Month, Quarter,
	DayOfWeekSin, DayOfWeekCos, MonthSin, MonthCos,

	// Lags
	Lag1, Lag7, Lag14,

	// Rolling
	AvgLast7, AvgLast14, AvgLast30, StdLast7,

	// Price
	SellingPrice, CostPrice, ProfitMargin, ProfitMarginPct, IsPremium,

	// Demand
	DemandVolatility, DemandTrend, Momentum,
}

// LagName returns the column name of the k-day lag
func LagName(k int) string {
	return fmt.Sprintf("lag_%d_days", k)
}

// AvgName returns the column name of the N-day trailing mean
func AvgName(n int) string {
	return fmt.Sprintf("avg_last_%d_days", n)
}

// Row is one (date, dish) observation with its named numeric values. A name
// missing from Values is undefined.
type Row struct {
	Date     time.Time
	DishName string
	Values   map[string]float64
}

// NewRow creates an empty row for the dish on date
func NewRow(date time.Time, dish string) Row {
	return Row{
		Date:     date,
		DishName: dish,
		Values:   make(map[string]float64),
	}
}

// Get returns the named value and whether it is defined
func (r Row) Get(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Has reports whether every name is defined
func (r Row) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := r.Values[name]; !ok {
			return false
		}
	}
	return true
}

// Set defines the named value
func (r *Row) Set(name string, v float64) {
	if r.Values == nil {
		r.Values = make(map[string]float64)
	}
	r.Values[name] = v
}

// Clone returns a deep copy of the row
func (r Row) Clone() Row {
	out := Row{Date: r.Date, DishName: r.DishName, Values: make(map[string]float64, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}
