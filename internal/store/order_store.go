package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bencai/orderwatch/internal/model"
)

// ScrapeRun records one completed scrape invocation.
type ScrapeRun struct {
	ID         string    `db:"id" json:"id"`
	Vendor     string    `db:"vendor" json:"vendor"`
	Folder     string    `db:"folder" json:"folder"`
	Scanned    int       `db:"scanned" json:"scanned"`
	Failed     int       `db:"failed" json:"failed"`
	Total      int       `db:"total" json:"total"`
	Confirmed  int       `db:"confirmed" json:"confirmed"`
	Shipped    int       `db:"shipped" json:"shipped"`
	Delivered  int       `db:"delivered" json:"delivered"`
	Cancelled  int       `db:"cancelled" json:"cancelled"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// SaveRun persists one scrape run and its merged orders atomically.
// Generates a UUID when the run has no ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run ScrapeRun, orders []model.Order) (ScrapeRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrape_runs (
			id, vendor, folder, scanned, failed,
			total, confirmed, shipped, delivered, cancelled,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Vendor, run.Folder, run.Scanned, run.Failed,
		run.Total, run.Confirmed, run.Shipped, run.Delivered, run.Cancelled,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return run, fmt.Errorf("inserting scrape run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO orders (
			run_id, order_number, status, products,
			tracking_number, order_date, position
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return run, fmt.Errorf("preparing order insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range orders {
		products, err := json.Marshal(o.Products)
		if err != nil {
			return run, fmt.Errorf("encoding products for %s: %w", o.OrderNumber, err)
		}

		var orderDate *time.Time
		if !o.OrderDate.IsZero() {
			d := o.OrderDate.UTC()
			orderDate = &d
		}

		_, err = stmt.ExecContext(ctx,
			run.ID, o.OrderNumber, string(o.Status), string(products),
			o.TrackingNumber, orderDate, i,
		)
		if err != nil {
			return run, fmt.Errorf("inserting order %s: %w", o.OrderNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("committing scrape run: %w", err)
	}
	return run, nil
}

// Runs returns the most recent scrape runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []ScrapeRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, vendor, folder, scanned, failed,
		       total, confirmed, shipped, delivered, cancelled,
		       started_at, finished_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scrape runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run for a vendor, or nil when the
// vendor has never been scraped.
func (s *SQLiteStore) LatestRun(ctx context.Context, vendor string) (*ScrapeRun, error) {
	var run ScrapeRun
	err := s.db.GetContext(ctx, &run, `
		SELECT id, vendor, folder, scanned, failed,
		       total, confirmed, shipped, delivered, cancelled,
		       started_at, finished_at
		FROM scrape_runs
		WHERE vendor = ?
		ORDER BY started_at DESC
		LIMIT 1`, vendor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest run for %s: %w", vendor, err)
	}
	return &run, nil
}

// OrdersForRun returns a run's merged orders in their stored position.
func (s *SQLiteStore) OrdersForRun(ctx context.Context, runID string) ([]model.Order, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT order_number, status, products, tracking_number, order_date
		FROM orders
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for run %s: %w", runID, err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			o         model.Order
			status    string
			products  string
			orderDate sql.NullTime
		)
		if err := rows.Scan(&o.OrderNumber, &status, &products, &o.TrackingNumber, &orderDate); err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}

		o.Status = model.Status(status)
		if err := json.Unmarshal([]byte(products), &o.Products); err != nil {
			o.Products = []string{}
		}
		if o.Products == nil {
			o.Products = []string{}
		}
		if orderDate.Valid {
			o.OrderDate = orderDate.Time
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
