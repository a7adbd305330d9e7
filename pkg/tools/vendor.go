package tools

import (
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// VendorTool serves the optional vendor flow from a small local
// catalogue. No external vendor service exists; the catalogue is enough
// to exercise the show_vendors and order_booking paths.
type VendorTool struct {
	catalogue map[string][]state.Vendor
}

// NewVendorTool builds the tool with the built-in catalogue.
func NewVendorTool() *VendorTool {
	return &VendorTool{
		catalogue: map[string][]state.Vendor{
			"organic": {
				{Name: "GreenGrow Organics", Location: "Bengaluru", Price: "₹450 per liter", Rating: 4.5, Contact: "080-4455-2211"},
				{Name: "Krishi Naturals", Location: "Pune", Price: "₹390 per liter", Rating: 4.2, Contact: "020-6677-8899"},
			},
			"chemical": {
				{Name: "AgroChem Supplies", Location: "Hyderabad", Price: "₹620 per liter", Rating: 4.4, Contact: "040-2233-4455"},
				{Name: "FarmShield Distributors", Location: "Nagpur", Price: "₹580 per liter", Rating: 4.1, Contact: "0712-555-0192"},
				{Name: "Bharat Crop Care", Location: "Lucknow", Price: "₹540 per liter", Rating: 3.9, Contact: "0522-444-7788"},
			},
		},
	}
}

// Lookup returns vendors carrying products matching the treatment type.
// Unknown types fall back to the chemical list.
func (t *VendorTool) Lookup(treatmentType string) []state.Vendor {
	key := strings.ToLower(treatmentType)
	if vendors, ok := t.catalogue[key]; ok {
		return append([]state.Vendor(nil), vendors...)
	}
	return append([]state.Vendor(nil), t.catalogue["chemical"]...)
}
