package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	var tenantID string
	err = db.QueryRow(`
		INSERT INTO tenants (name, slug, vat_payer, currency) VALUES ('Demo Events', 'demo', TRUE, 'RON')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`).Scan(&tenantID)
	if err != nil {
		log.Fatalf("Failed to create demo tenant: %v", err)
	}
	log.Printf("Using Tenant ID: %s", tenantID)

	seedCoupons(db, tenantID)
	seedGiftCards(db, tenantID)
	seedTaxes(db, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedCoupons(db *sql.DB, tenantID string) {
	coupons := []struct {
		Code        string
		Type        string
		Value       string
		MinPurchase int64
		AppliesTo   string
		ValidTo     *string
	}{
		{"SPRING10", "percentage", "10", 0, "tickets", nil},
		{"MERCH500", "fixed", "500", 5000, "shop", nil},
		{"WELCOME15", "percentage", "15", 10000, "both", nil},
		{"EXPIRED5", "percentage", "5", 0, "both", strPtr("2020-12-31")},
	}

	log.Println("Seeding coupons...")
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons (tenant_id, code, discount_type, discount_value, min_purchase, currency, applies_to, valid_to)
			VALUES ($1, $2, $3, $4, $5, 'RON', $6, $7)
			ON CONFLICT (tenant_id, code) DO UPDATE SET
				discount_type = EXCLUDED.discount_type,
				discount_value = EXCLUDED.discount_value,
				min_purchase = EXCLUDED.min_purchase,
				applies_to = EXCLUDED.applies_to,
				valid_to = EXCLUDED.valid_to
		`, tenantID, c.Code, c.Type, c.Value, c.MinPurchase, c.AppliesTo, c.ValidTo)
		if err != nil {
			log.Printf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}

func seedGiftCards(db *sql.DB, tenantID string) {
	cards := []struct {
		Code     string
		Currency string
		Balance  int64
		Active   bool
	}{
		{"GC-DEMO-50", "RON", 5000, true},
		{"GC-DEMO-EUR", "EUR", 2000, true},
		{"GC-BLOCKED", "RON", 10000, false},
	}

	log.Println("Seeding gift cards...")
	for _, g := range cards {
		_, err := db.Exec(`
			INSERT INTO gift_cards (tenant_id, code, currency, balance, active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tenant_id, code) DO UPDATE SET
				currency = EXCLUDED.currency,
				balance = EXCLUDED.balance,
				active = EXCLUDED.active
		`, tenantID, g.Code, g.Currency, g.Balance, g.Active)
		if err != nil {
			log.Printf("Failed to seed gift card %s: %v", g.Code, err)
		}
	}
}

// seedTaxes replaces the demo tenant's general taxes and the RO local taxes.
func seedTaxes(db *sql.DB, tenantID string) {
	log.Println("Seeding taxes...")
	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin tax seed: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM general_taxes WHERE tenant_id = $1`, tenantID); err != nil {
		log.Fatalf("Failed to clear general taxes: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM local_taxes WHERE upper(country) = 'RO'`); err != nil {
		log.Fatalf("Failed to clear local taxes: %v", err)
	}

	general := []struct {
		Name         string
		Value        string
		ValueType    string
		Priority     int
		AddedToPrice bool
		IsVAT        bool
	}{
		{"TVA", "19", "percent", 100, false, true},
		{"Timbru muzical", "2", "percent", 50, true, false},
		{"Booking fee", "150", "fixed", 10, true, false},
	}
	for _, g := range general {
		_, err := tx.Exec(`
			INSERT INTO general_taxes (tenant_id, name, value, value_type, priority, added_to_price, is_vat)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, tenantID, g.Name, g.Value, g.ValueType, g.Priority, g.AddedToPrice, g.IsVAT)
		if err != nil {
			log.Fatalf("Failed to seed general tax %s: %v", g.Name, err)
		}
	}

	local := []struct {
		County string
		City   string
		Name   string
		Value  string
	}{
		{"", "", "National culture fund", "1"},
		{"Cluj", "", "County events levy", "0.5"},
		{"Cluj", "Cluj-Napoca", "City tourism tax", "1.5"},
	}
	for _, l := range local {
		_, err := tx.Exec(`
			INSERT INTO local_taxes (country, county, city, name, value, priority)
			VALUES ('RO', NULLIF($1, ''), NULLIF($2, ''), $3, $4, 0)
		`, l.County, l.City, l.Name, l.Value)
		if err != nil {
			log.Fatalf("Failed to seed local tax %s: %v", l.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit taxes: %v", err)
	}
}

func strPtr(s string) *string { return &s }
