package db

import (
	"database/sql"
	"fmt"
)

// templateItem mirrors one row of checklist_items for seeding.
type templateItem struct {
	id       string
	title    string
	typ      string
	order    int
	required int
	section  string
}

// auditTemplate is the field-visit checklist. Grouped by section; the first
// block is desk pre-work (pull the numbers before walking the floor), the
// rest is on-site verification. Status items are the traffic-light readout
// next to their metric.
var auditTemplate = []templateItem{
	// 1. Pre-work: guest satisfaction indicators
	{"c1-1", "OSAT (overall satisfaction): current value (%)", "percentage", 1, 1, "1. Pre-work: Satisfaction"},
	{"c1-1t", "OSAT: target (e.g. 85%)", "text", 2, 0, "1. Pre-work: Satisfaction"},
	{"c1-1s", "OSAT status", "status", 3, 0, "1. Pre-work: Satisfaction"},
	{"c1-2", "Speed of service perception: current value (%)", "percentage", 4, 0, "1. Pre-work: Satisfaction"},
	{"c1-2s", "Speed of service status", "status", 5, 0, "1. Pre-work: Satisfaction"},
	{"c1-3", "Open guest complaints (>24h): current count", "number", 6, 0, "1. Pre-work: Satisfaction"},
	// 2. Pre-work: cost and control
	{"c2-1", "Inventory variance ($): current value", "number", 7, 0, "2. Pre-work: Cost & Control"},
	{"c2-1s", "Inventory variance status", "status", 8, 0, "2. Pre-work: Cost & Control"},
	{"c2-2", "Cost of sales, actual vs theoretical (%)", "percentage", 9, 0, "2. Pre-work: Cost & Control"},
	{"c2-3", "Top 3 shortage items (shrink/waste)", "text", 10, 0, "2. Pre-work: Cost & Control"},
	// 3. Financial validation on site
	{"c3-1", "Critical shortages verified on site (count the reported item now)", "boolean", 11, 1, "3. Financial Validation"},
	{"c3-2", "Waste is weighed/counted, not just keyed in", "boolean", 12, 1, "3. Financial Validation"},
	{"c3-3", "Portion control verified (ice cream weight, fry counts)", "boolean", 13, 1, "3. Financial Validation"},
	{"c3-4", "Storage security: cold/dry room key held by manager only", "boolean", 14, 1, "3. Financial Validation"},
	// 4. Quality and guest experience
	{"c4-1", "Product temperature checked at the line", "boolean", 15, 1, "4. Quality & Experience"},
	{"c4-2", "Patty temperature (°C)", "number", 16, 0, "4. Quality & Experience"},
	{"c4-3", "Restrooms and dining room clean", "boolean", 17, 1, "4. Quality & Experience"},
	{"c4-4", "Order accuracy: 5 bags checked, complete with napkins", "boolean", 18, 1, "4. Quality & Experience"},
	// 5. Maintenance and image
	{"c5-1", "Critical equipment at 100% (broiler, fryers, ice cream)", "boolean", 19, 1, "5. Maintenance & Image"},
	{"c5-2", "Exterior image: lighting and cleanliness invite guests in", "boolean", 20, 1, "5. Maintenance & Image"},
	// 6. Delivery aggregators
	{"c6-1", "All aggregator tablets on and receiving orders", "boolean", 21, 1, "6. Delivery"},
	{"c6-2", "Suspicious manual cancellations today (count)", "number", 22, 0, "6. Delivery"},
	// Evidence and closing
	{"c9-1", "Photo evidence", "photo", 23, 0, ""},
	{"c9-2", "General observations", "text", 24, 0, ""},
}

// Seed loads the checklist template and a small org hierarchy. Safe to call
// multiple times: every insert is INSERT OR IGNORE keyed on stable ids, so
// reseeding an existing database is a no-op. Template items added in a later
// release are picked up by the same pass.
func Seed(db *sql.DB) error {
	for _, it := range auditTemplate {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO checklist_items (id, title, type, sort_order, required, section)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			it.id, it.title, it.typ, it.order, it.required, it.section,
		); err != nil {
			return fmt.Errorf("seed checklist item %s: %w", it.id, err)
		}
	}

	regions := [][2]string{
		{"reg-01", "Region 01 - North"},
		{"reg-02", "Region 02 - Pacific"},
	}
	for _, r := range regions {
		if _, err := db.Exec(`INSERT OR IGNORE INTO regions (id, name) VALUES (?, ?)`, r[0], r[1]); err != nil {
			return fmt.Errorf("seed region %s: %w", r[0], err)
		}
	}

	districts := [][3]string{
		{"dist-01", "reg-01", "District 01 - Tijuana / Tecate"},
		{"dist-02", "reg-01", "District 02 - Mexicali"},
		{"dist-03", "reg-02", "District 03 - Culiacan / Mazatlan"},
	}
	for _, d := range districts {
		if _, err := db.Exec(`INSERT OR IGNORE INTO districts (id, region_id, name) VALUES (?, ?, ?)`,
			d[0], d[1], d[2]); err != nil {
			return fmt.Errorf("seed district %s: %w", d[0], err)
		}
	}

	stores := []struct {
		id, district, name, format string
	}{
		{"st-001", "dist-01", "Store Tijuana 1", "free_standing"},
		{"st-002", "dist-01", "Store Tijuana 2", "food_court"},
		{"st-003", "dist-01", "Store Tecate 1", "in_line"},
		{"st-004", "dist-02", "Store Mexicali 1", "free_standing"},
		{"st-005", "dist-02", "Store Mexicali 2", "free_standing"},
		{"st-006", "dist-03", "Store Culiacan 1", "food_court"},
		{"st-007", "dist-03", "Store Mazatlan 1", "free_standing"},
	}
	for _, s := range stores {
		if _, err := db.Exec(`INSERT OR IGNORE INTO stores (id, district_id, name, format) VALUES (?, ?, ?, ?)`,
			s.id, s.district, s.name, s.format); err != nil {
			return fmt.Errorf("seed store %s: %w", s.id, err)
		}
	}
	return nil
}
