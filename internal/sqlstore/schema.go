package sqlstore

import (
	"context"
	"fmt"
	"log"
	"time"
)

const createProductsTable = `
CREATE TABLE IF NOT EXISTS products (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       REAL NOT NULL DEFAULT 0,
	stock       INTEGER NOT NULL DEFAULT 0,
	category    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	brand       TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1,
	is_deleted  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products(updated_at);
`

// InitSchema creates the products table if it does not exist yet
func (s *Store) InitSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createProductsTable); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

// fixtureProducts is the demo catalog inserted on first run
var fixtureProducts = []Product{
	{Name: "MacBook Pro 16 M3", Description: "Professional laptop with the Apple M3 chip, 16GB RAM and 512GB SSD", Price: 4999.99, Stock: 15, Category: "Laptops", Tags: "laptop,apple,m3,professional", Brand: "Apple", Model: "MacBook Pro 16"},
	{Name: "Dell XPS 15", Description: "High-end laptop with Intel Core i7, 16GB RAM and 1TB SSD", Price: 2499.99, Stock: 25, Category: "Laptops", Tags: "laptop,dell,intel,windows", Brand: "Dell", Model: "XPS 15"},
	{Name: "iPhone 15 Pro Max", Description: "Latest iPhone with the A17 Pro chip, 256GB, titanium design", Price: 2799.99, Stock: 50, Category: "Smartphones", Tags: "smartphone,apple,ios,titanium", Brand: "Apple", Model: "iPhone 15 Pro Max"},
	{Name: "Samsung Galaxy S24 Ultra", Description: "Flagship smartphone with Snapdragon 8 Gen 3 and 512GB storage", Price: 2399.99, Stock: 35, Category: "Smartphones", Tags: "smartphone,samsung,android,flagship", Brand: "Samsung", Model: "Galaxy S24 Ultra"},
	{Name: "Sony WH-1000XM5", Description: "Premium wireless headphones with industry leading noise cancellation", Price: 399.99, Stock: 100, Category: "Audio", Tags: "headphones,sony,wireless,noise-cancelling", Brand: "Sony", Model: "WH-1000XM5"},
	{Name: "iPad Pro 12.9 M2", Description: "Powerful tablet with the M2 chip, 256GB and a Liquid Retina XDR display", Price: 1899.99, Stock: 20, Category: "Tablets", Tags: "tablet,apple,m2", Brand: "Apple", Model: "iPad Pro 12.9"},
	{Name: "LG 55 OLED C3", Description: "Premium 4K OLED television with 120Hz panel and WebOS", Price: 1799.99, Stock: 12, Category: "TVs", Tags: "tv,lg,oled,4k", Brand: "LG", Model: "OLED55C3"},
	{Name: "Logitech MX Master 3S", Description: "Ergonomic wireless mouse for professionals", Price: 99.99, Stock: 150, Category: "Accessories", Tags: "mouse,logitech,wireless,ergonomic", Brand: "Logitech", Model: "MX Master 3S"},
}

// Seed inserts the fixture catalog when the table is empty.
// Returns the number of rows inserted (zero when already seeded).
func (s *Store) Seed(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		log.Printf("Products table already seeded (%d rows)", count)
		return 0, nil
	}

	now := FormatTime(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range fixtureProducts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (name, description, price, stock, category, tags, brand, model, created_at, updated_at, is_active, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0)`,
			p.Name, p.Description, p.Price, p.Stock, p.Category, p.Tags, p.Brand, p.Model, now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert fixture %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	log.Printf("Seeded %d products", len(fixtureProducts))
	return len(fixtureProducts), nil
}
