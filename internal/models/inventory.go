package models

import (
	"math"
	"strings"
	"time"
)

// InventoryStatus represents the freshness status of an inventory record
type InventoryStatus string

const (
	// Inventory statuses
	StatusGood       InventoryStatus = "Good"
	StatusNearExpiry InventoryStatus = "Near Expiry"
	StatusCritical   InventoryStatus = "Critical"
	StatusUnknown    InventoryStatus = "Unknown"
)

// IsPerishing reports whether stock with this status must be used right away
func (s InventoryStatus) IsPerishing() bool {
	return s == StatusCritical || s == StatusNearExpiry
}

// InventoryRecord is one line of the kitchen inventory. Older clients send the
// key as "ingredient", newer ones as "itemName".
type InventoryRecord struct {
	Ingredient string          `json:"ingredient,omitempty" yaml:"ingredient,omitempty"`
	ItemName   string          `json:"itemName,omitempty" yaml:"itemName,omitempty"`
	Status     InventoryStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Quantity   float64         `json:"quantity" yaml:"quantity"`
	Unit       string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	ExpiryDate *Date           `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
}

// Key returns the name used to match the record against dishes
func (r InventoryRecord) Key() string {
	if r.Ingredient != "" {
		return r.Ingredient
	}
	return r.ItemName
}

// ResolveStatus returns the explicit status, or derives one from the expiry
// date: one day or less is Critical, three days or less is Near Expiry.
func (r InventoryRecord) ResolveStatus(now time.Time) InventoryStatus {
	if r.Status != "" {
		return r.Status
	}
	if r.ExpiryDate == nil {
		return StatusGood
	}
	days := math.Ceil(r.ExpiryDate.Sub(now).Hours() / 24)
	switch {
	case days <= 1:
		return StatusCritical
	case days <= 3:
		return StatusNearExpiry
	default:
		return StatusGood
	}
}

// MatchesDish reports whether the record key and dish name contain one another,
// ignoring case. Empty keys never match.
func (r InventoryRecord) MatchesDish(dish string) bool {
	key := strings.ToLower(r.Key())
	if key == "" {
		return false
	}
	name := strings.ToLower(dish)
	return strings.Contains(name, key) || strings.Contains(key, name)
}
