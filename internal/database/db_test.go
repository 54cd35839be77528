package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint        `gorm:"primary_key"`
	Tags StringSlice `gorm:"type:text"`
}

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, &widget{}))
	require.NoError(t, db.Create(&widget{Tags: StringSlice{"lag_1_days", "month"}}).Error)

	var got widget
	require.NoError(t, db.First(&got).Error)
	assert.Equal(t, StringSlice{"lag_1_days", "month"}, got.Tags)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestStringSliceScan(t *testing.T) {
	var s StringSlice
	require.NoError(t, s.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringSlice{"a", "b"}, s)

	require.NoError(t, s.Scan(nil))
	assert.Empty(t, s)

	assert.Error(t, s.Scan(42))

	v, err := StringSlice(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
