package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/davidschrooten/catalog-search-sync/config"
)

// Product is a row of the products table, the system of record
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	Stock       int
	Category    string
	Tags        string
	Brand       string
	Model       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsActive    bool
	IsDeleted   bool
}

// ProductChange is the minimal projection used for change detection
type ProductChange struct {
	ID        int64
	UpdatedAt time.Time
	CreatedAt time.Time
	IsDeleted bool
}

// Store wraps the relational connection with query helpers
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// NewStore opens the catalog database
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection before handing the store out
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout)*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:      db,
		timeout: time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, description, price, stock, category, tags, brand, model, created_at, updated_at, is_active, is_deleted`

// FetchActiveProducts returns every active, non-deleted product
func (s *Store) FetchActiveProducts(ctx context.Context) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE is_active = 1 AND is_deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active products: %w", err)
	}

	return products, nil
}

// FetchChangesSince returns every product whose updated_at strictly exceeds
// the given watermark, including soft-deleted rows
func (s *Store) FetchChangesSince(ctx context.Context, since time.Time) ([]ProductChange, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, updated_at, created_at, is_deleted FROM products WHERE updated_at > ? ORDER BY updated_at`,
		FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed products: %w", err)
	}
	defer rows.Close()

	var changes []ProductChange
	for rows.Next() {
		var c ProductChange
		var updatedAt, createdAt string
		if err := rows.Scan(&c.ID, &updatedAt, &createdAt, &c.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan change row: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read changed products: %w", err)
	}

	return changes, nil
}

// FetchProductByID returns the full product row, or nil when the id does not exist
func (s *Store) FetchProductByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category,
		&p.Tags, &p.Brand, &p.Model, &createdAt, &updatedAt, &p.IsActive, &p.IsDeleted)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan product row: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return p, err
	}
	return p, nil
}

// timeLayout is fixed-width so that lexicographic comparison inside SQLite
// matches chronological order
const timeLayout = "2006-01-02 15:04:05.000"

// FormatTime renders a timestamp the way the products table stores it
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
