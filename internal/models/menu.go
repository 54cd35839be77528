package models

import "fmt"

// MenuItem represents a dish on the menu together with what is already cooked.
// Price and Stock default to 0 when the client omits them.
type MenuItem struct {
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
	Stock float64 `json:"stock" yaml:"stock"`
}

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if item.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price < 0 {
		return fmt.Errorf("menu item %q price must not be negative", item.Name)
	}
	if item.Stock < 0 {
		return fmt.Errorf("menu item %q stock must not be negative", item.Name)
	}
	return nil
}

// MenuIndex maps dish names to menu items; the first entry for a name wins
func MenuIndex(items []MenuItem) map[string]MenuItem {
	index := make(map[string]MenuItem, len(items))
	for _, item := range items {
		if _, exists := index[item.Name]; !exists {
			index[item.Name] = item
		}
	}
	return index
}
