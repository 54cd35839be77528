package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenplan/internal/database"
	"kitchenplan/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestSalesRepositoryInsertAndList(t *testing.T) {
	repo, err := NewSalesRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	records := []models.SalesRecord{
		models.NewSalesRecord(day(2), "Biryani", 30, 250, 150),
		models.NewSalesRecord(day(0), "Biryani", 20, 250, 150),
		models.NewSalesRecord(day(1), "Dosa", 12, 90, 40),
		{Date: models.NewDate(day(3)), DishName: "Dosa", QuantitySold: models.Float(15)},
	}
	n, err := repo.Insert(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := repo.List(ctx, SalesFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].Day().Equal(day(0)))
	assert.True(t, all[3].Day().Equal(day(3)))
	assert.Nil(t, all[3].SellingPrice)

	dosa, err := repo.List(ctx, SalesFilter{Dish: "Dosa"})
	require.NoError(t, err)
	require.Len(t, dosa, 2)
	assert.Equal(t, 12.0, dosa[0].Quantity())

	recent, err := repo.List(ctx, SalesFilter{Since: day(2)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSalesRepositoryRejectsInvalidBatch(t *testing.T) {
	repo, err := NewSalesRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Insert(ctx, []models.SalesRecord{
		models.NewSalesRecord(day(0), "Biryani", 20, 250, 150),
		{DishName: "Biryani", QuantitySold: models.Float(3)},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	all, err := repo.List(ctx, SalesFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func samplePlan(dishes ...string) models.ProductionPlan {
	plan := models.ProductionPlan{Timestamp: day(10)}
	for i, d := range dishes {
		plan.Predictions = append(plan.Predictions, models.DishPlan{
			DishName:              d,
			PredictedDemand:       float64(10 * (i + 1)),
			RecommendedProduction: float64(12 * (i + 1)),
			Priority:              models.PriorityMedium,
		})
	}
	plan.Summary.TotalDishes = len(dishes)
	return plan
}

func TestPlanRepositoryArchiveAndRecent(t *testing.T) {
	repo, err := NewPlanRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 9; i++ {
		id, err := repo.Archive(ctx, samplePlan("Biryani", fmt.Sprintf("Dish %d", i)), day(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	plans, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, plans, DefaultPlanLimit)
	assert.Equal(t, ids[8], plans[0].ID)
	assert.True(t, plans[0].PredictionDate.Equal(day(8)))

	items := plans[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "Biryani", items[0].DishName)
	assert.Equal(t, "Dish 8", items[1].DishName)
	assert.Equal(t, 24.0, items[1].RecommendedProduction)

	two, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
