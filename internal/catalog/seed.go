package catalog

import "github.com/shopspring/decimal"

// DemoItems is the catalog an in-memory deployment starts with.
func DemoItems() []Item {
	return []Item{
		{ID: 1, SKU: "TECH001", Name: "Wireless Mouse", Brand: "Logi", Category: "Accessories", Price: decimal.RequireFromString("24.99"), Quantity: 10, Description: "Two-button wireless mouse with USB receiver."},
		{ID: 2, SKU: "TECH002", Name: "Mechanical Keyboard", Brand: "Keychron", Category: "Accessories", Price: decimal.RequireFromString("89.00"), Quantity: 5, Description: "Hot-swappable 75% keyboard."},
		{ID: 3, SKU: "TECH003", Name: "4K Monitor", Brand: "Dell", Category: "Displays", Price: decimal.RequireFromString("329.50"), Quantity: 0, Description: "27 inch IPS panel."},
		{ID: 4, SKU: "TECH004", Name: "USB-C Hub", Brand: "Anker", Category: "Accessories", Price: decimal.RequireFromString("39.90"), Quantity: 25, Description: "7-in-1 hub with HDMI and card reader."},
		{ID: 5, SKU: "TECH005", Name: "Noise Cancelling Headphones", Brand: "Sony", Category: "Audio", Price: decimal.RequireFromString("249.00"), Quantity: 8, Description: "Over-ear, 30 hour battery."},
	}
}
