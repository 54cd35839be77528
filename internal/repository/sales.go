// Package repository stores sales history and archived production plans.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"kitchenplan/internal/database"
	"kitchenplan/internal/models"
)

// ErrInvalidRecord is returned when a sales record cannot be stored
var ErrInvalidRecord = errors.New("invalid sales record")

// SaleRecord is one stored row of sales history
type SaleRecord struct {
	gorm.Model
	Date         time.Time `gorm:"index"`
	DishName     string    `gorm:"index"`
	QuantitySold float64
	SellingPrice *float64
	CostPrice    *float64
}

// TableName specifies the table name for SaleRecord
func (SaleRecord) TableName() string {
	return "sales"
}

// SalesFilter narrows a history query. Zero values match everything.
type SalesFilter struct {
	Dish  string
	Since time.Time
}

// SalesRepository persists sales history
type SalesRepository struct {
	db *gorm.DB
}

// NewSalesRepository migrates the sales table and returns the repository
func NewSalesRepository(db *gorm.DB) (*SalesRepository, error) {
	if err := database.Migrate(db, &SaleRecord{}); err != nil {
		return nil, err
	}
	return &SalesRepository{db: db}, nil
}

// Insert stores records in one transaction. Records need a date, a dish and
// a non-negative quantity.
func (r *SalesRepository) Insert(ctx context.Context, records []models.SalesRecord) (int, error) {
	rows := make([]SaleRecord, 0, len(records))
	for i, rec := range records {
		if rec.Date == nil || rec.DishName == "" || rec.QuantitySold == nil || *rec.QuantitySold < 0 {
			return 0, fmt.Errorf("%w: record %d needs date, dish_name and a non-negative quantity_sold", ErrInvalidRecord, i)
		}
		rows = append(rows, SaleRecord{
			Date:         rec.Date.Time.UTC(),
			DishName:     rec.DishName,
			QuantitySold: *rec.QuantitySold,
			SellingPrice: rec.SellingPrice,
			CostPrice:    rec.CostPrice,
		})
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx := r.db.Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	for i := range rows {
		if err := tx.Create(&rows[i]).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert sales record: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("failed to commit sales records: %w", err)
	}
	return len(rows), nil
}

// List returns stored history ordered by date
func (r *SalesRepository) List(ctx context.Context, filter SalesFilter) ([]models.SalesRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.Model(&SaleRecord{})
	if filter.Dish != "" {
		query = query.Where("dish_name = ?", filter.Dish)
	}
	if !filter.Since.IsZero() {
		query = query.Where("date >= ?", filter.Since.UTC())
	}

	var rows []SaleRecord
	if err := query.Order("date asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	out := make([]models.SalesRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.SalesRecord{
			Date:         models.NewDate(row.Date),
			DishName:     row.DishName,
			QuantitySold: models.Float(row.QuantitySold),
			SellingPrice: row.SellingPrice,
			CostPrice:    row.CostPrice,
		})
	}
	return out, nil
}
