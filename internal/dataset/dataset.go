// Package dataset reads sales history, menus and inventory from files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kitchenplan/internal/models"
)

// SalesColumns is the expected CSV header
var SalesColumns = []string{"date", "dish_name", "quantity_sold", "selling_price", "cost_price"}

// LoadSalesFile reads a sales CSV file
func LoadSalesFile(path string) ([]models.SalesRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sales file: %w", err)
	}
	defer file.Close()
	return ReadSales(file)
}

// ReadSales parses sales CSV. Columns are matched by header name and empty
// cells become missing values.
func ReadSales(r io.Reader) ([]models.SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("sales file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sales header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range SalesColumns[:3] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("sales file is missing column %q", required)
		}
	}

	var records []models.SalesRecord
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseSale(fields, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseSale(fields []string, index map[string]int) (models.SalesRecord, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	var rec models.SalesRecord
	if s := cell("date"); s != "" {
		t, err := models.ParseDate(s)
		if err != nil {
			return rec, err
		}
		rec.Date = models.NewDate(t)
	}
	rec.DishName = cell("dish_name")

	var err error
	if rec.QuantitySold, err = parseNumber(cell("quantity_sold")); err != nil {
		return rec, fmt.Errorf("quantity_sold: %w", err)
	}
	if rec.SellingPrice, err = parseNumber(cell("selling_price")); err != nil {
		return rec, fmt.Errorf("selling_price: %w", err)
	}
	if rec.CostPrice, err = parseNumber(cell("cost_price")); err != nil {
		return rec, fmt.Errorf("cost_price: %w", err)
	}
	return rec, nil
}

func parseNumber(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadMenu reads a YAML (or JSON) list of menu items
func LoadMenu(path string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := loadYAML(path, &items); err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	for i := range items {
		if err := models.ValidateMenuItem(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// LoadInventory reads a YAML (or JSON) list of inventory records
func LoadInventory(path string) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	if err := loadYAML(path, &records); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return records, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
