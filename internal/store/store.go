package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pterodactyl-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetPackageByID retrieves a package by ID
func (s *Store) GetPackageByID(ctx context.Context, id int64) (*models.Package, error) {
	var pkg models.Package
	err := s.db.GetContext(ctx, &pkg, "SELECT * FROM packages WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetLocationByID retrieves a location by ID
func (s *Store) GetLocationByID(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	err := s.db.GetContext(ctx, &loc, "SELECT * FROM locations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("location not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetLocationsByIDs retrieves multiple locations in ascending ID order
func (s *Store) GetLocationsByIDs(ctx context.Context, ids []int64) ([]models.Location, error) {
	if len(ids) == 0 {
		return []models.Location{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM locations WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var locations []models.Location
	err = s.db.SelectContext(ctx, &locations, query, args...)
	return locations, err
}

// GetLocations retrieves all locations in ascending ID order
func (s *Store) GetLocations(ctx context.Context) ([]models.Location, error) {
	var locations []models.Location
	err := s.db.SelectContext(ctx, &locations, "SELECT * FROM locations ORDER BY id")
	return locations, err
}

// FirstLocationInStock returns the lowest-ID location with remaining stock.
// Ascending-ID order keeps automatic selection reproducible.
func (s *Store) FirstLocationInStock(ctx context.Context) (*models.Location, error) {
	var loc models.Location
	err := s.db.GetContext(ctx, &loc,
		"SELECT * FROM locations WHERE stock != 0 ORDER BY id LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no location in stock")
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// ReserveLocationStockTx takes one unit of stock within a transaction
// (FOR UPDATE lock). Unlimited stock (-1) is left untouched.
func (s *Store) ReserveLocationStockTx(ctx context.Context, locationID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stock int
	err = tx.GetContext(ctx, &stock,
		"SELECT stock FROM locations WHERE id = $1 FOR UPDATE", locationID)
	if err != nil {
		return fmt.Errorf("failed to lock location: %w", err)
	}

	if stock == -1 {
		return tx.Commit()
	}
	if stock <= 0 {
		return fmt.Errorf("location out of stock: %d", locationID)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE locations SET stock = stock - 1 WHERE id = $1", locationID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	return tx.Commit()
}

// ReleaseLocationStock returns one unit of stock (compensation).
// Unlimited stock is left untouched.
func (s *Store) ReleaseLocationStock(ctx context.Context, locationID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE locations SET stock = stock + 1 WHERE id = $1 AND stock != -1", locationID)
	return err
}

// GetNodesByLocationID retrieves all nodes within a location
func (s *Store) GetNodesByLocationID(ctx context.Context, locationID int64) ([]models.Node, error) {
	var nodes []models.Node
	err := s.db.SelectContext(ctx, &nodes,
		"SELECT * FROM nodes WHERE location_id = $1 ORDER BY id", locationID)
	return nodes, err
}
