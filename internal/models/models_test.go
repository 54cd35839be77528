package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-02-22", "2024-02-22T00:00:00Z", "2024-02-22T00:00:00", "2024-02-22 00:00:00"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, 22, d.Day())
		assert.Equal(t, time.February, d.Month())
	}

	_, err := ParseDate("22/02/2024")
	assert.Error(t, err)
}

func TestSalesRecordMissingFields(t *testing.T) {
	var rec SalesRecord
	err := json.Unmarshal([]byte(`{"date":"2024-01-01","dish_name":"Dosa","quantity_sold":12}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "Dosa", rec.DishName)
	assert.Equal(t, 12.0, rec.Quantity())
	assert.Nil(t, rec.SellingPrice)
	assert.Nil(t, rec.CostPrice)

	var empty SalesRecord
	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &empty))
	assert.Nil(t, empty.Date)
	assert.True(t, empty.Day().IsZero())
}

func TestInventoryRecordKeyAndMatch(t *testing.T) {
	legacy := InventoryRecord{Ingredient: "Rice"}
	current := InventoryRecord{ItemName: "paneer"}

	assert.Equal(t, "Rice", legacy.Key())
	assert.Equal(t, "paneer", current.Key())

	assert.True(t, current.MatchesDish("Paneer Butter Masala"))
	assert.True(t, InventoryRecord{ItemName: "Dal Makhani Base"}.MatchesDish("dal makhani"))
	assert.False(t, legacy.MatchesDish("Biryani"))
	assert.False(t, InventoryRecord{}.MatchesDish("Biryani"))
}

func TestInventoryRecordResolveStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record InventoryRecord
		want   InventoryStatus
	}{
		{"explicit", InventoryRecord{Status: StatusNearExpiry}, StatusNearExpiry},
		{"no expiry", InventoryRecord{}, StatusGood},
		{"expires tomorrow", InventoryRecord{ExpiryDate: NewDate(now.Add(20 * time.Hour))}, StatusCritical},
		{"expires in three days", InventoryRecord{ExpiryDate: NewDate(now.Add(60 * time.Hour))}, StatusNearExpiry},
		{"expires next week", InventoryRecord{ExpiryDate: NewDate(now.AddDate(0, 0, 7))}, StatusGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.ResolveStatus(now))
		})
	}
}

func TestMenuIndexFirstWins(t *testing.T) {
	index := MenuIndex([]MenuItem{
		{Name: "Dosa", Price: 80, Stock: 10},
		{Name: "Dosa", Price: 99, Stock: 1},
	})
	assert.Equal(t, 80.0, index["Dosa"].Price)

	assert.Error(t, ValidateMenuItem(&MenuItem{}))
	assert.Error(t, ValidateMenuItem(&MenuItem{Name: "x", Price: -1}))
	assert.NoError(t, ValidateMenuItem(&MenuItem{Name: "x"}))
}
