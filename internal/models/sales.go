package models

import "time"

// SalesRecord is one day of sales for one dish. Every field is optional on
// the wire; a nil pointer means the value was missing, which is not the same
// as zero.
type SalesRecord struct {
	Date         *Date    `json:"date" yaml:"date"`
	DishName     string   `json:"dish_name" yaml:"dish_name"`
	QuantitySold *float64 `json:"quantity_sold" yaml:"quantity_sold"`
	SellingPrice *float64 `json:"selling_price" yaml:"selling_price"`
	CostPrice    *float64 `json:"cost_price" yaml:"cost_price"`
}

// NewSalesRecord builds a fully populated record
func NewSalesRecord(date time.Time, dish string, qty, sellingPrice, costPrice float64) SalesRecord {
	return SalesRecord{
		Date:         NewDate(date),
		DishName:     dish,
		QuantitySold: Float(qty),
		SellingPrice: Float(sellingPrice),
		CostPrice:    Float(costPrice),
	}
}

// Day returns the record date, or the zero time when missing
func (r SalesRecord) Day() time.Time {
	if r.Date == nil {
		return time.Time{}
	}
	return r.Date.Time
}

// Quantity returns quantity_sold, or 0 when missing
func (r SalesRecord) Quantity() float64 {
	if r.QuantitySold == nil {
		return 0
	}
	return *r.QuantitySold
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
