// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/models"
)

// schema holds the analytical tables. Recommendation items are stored as a
// JSON column: the list is only ever read and written whole, and DuckDB's
// JSON type keeps the rows inspectable from the CLI.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         VARCHAR PRIMARY KEY,
		category   VARCHAR NOT NULL DEFAULT '',
		attributes JSON    NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id            VARCHAR PRIMARY KEY,
		contragent_id VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		product_id VARCHAR   NOT NULL,
		version    VARCHAR   NOT NULL,
		algorithm  VARCHAR   NOT NULL,
		batch_id   VARCHAR   NOT NULL,
		items      JSON      NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (product_id, version, algorithm)
	)`,
}

// DuckDB implements Repository on an embedded DuckDB database.
type DuckDB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// NewDuckDB opens (or creates) the database at path and ensures the schema.
// An empty path opens an in-memory database.
func NewDuckDB(path string, logger zerolog.Logger) (*DuckDB, error) {
	if dir := filepath.Dir(path); path != "" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}

	// The embedded engine serialises writers internally; a single
	// connection avoids transaction conflicts between batch jobs.
	conn.SetMaxOpenConns(1)

	db := &DuckDB{
		conn:   conn,
		logger: logger.With().Str("component", "repository").Logger(),
	}
	if err := db.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DuckDB) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DuckDB) Close() error {
	return d.conn.Close()
}

// UpsertProducts loads catalog rows, replacing existing ids.
func (d *DuckDB) UpsertProducts(ctx context.Context, products []models.Product) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin products tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, category, attributes) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET category = excluded.category, attributes = excluded.attributes`)
	if err != nil {
		return fmt.Errorf("prepare products upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range products {
		attrs, err := json.Marshal(p.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Category, string(attrs)); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// InsertOrders loads order rows with their items. Duplicate order ids are
// replaced wholesale.
func (d *DuckDB) InsertOrders(ctx context.Context, orders []models.Order) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin orders tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	orderStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orders (id, contragent_id) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET contragent_id = excluded.contragent_id`)
	if err != nil {
		return fmt.Errorf("prepare orders insert: %w", err)
	}
	defer func() { _ = orderStmt.Close() }()

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, product_id) VALUES (?, ?)
		ON CONFLICT (order_id, product_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare order items insert: %w", err)
	}
	defer func() { _ = itemStmt.Close() }()

	for _, o := range orders {
		if _, err := orderStmt.ExecContext(ctx, o.ID, o.ContragentID); err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
		for _, pid := range o.ProductIDs {
			if _, err := itemStmt.ExecContext(ctx, o.ID, pid); err != nil {
				return fmt.Errorf("insert order item %s/%s: %w", o.ID, pid, err)
			}
		}
	}
	return tx.Commit()
}

// ListOrders returns the full order history.
func (d *DuckDB) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT o.id, o.contragent_id, i.product_id
		FROM orders o JOIN order_items i ON i.order_id = o.id
		ORDER BY o.id, i.product_id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out     []models.Order
		current *models.Order
	)
	for rows.Next() {
		var id, contragent, product string
		if err := rows.Scan(&id, &contragent, &product); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		if current == nil || current.ID != id {
			out = append(out, models.Order{ID: id, ContragentID: contragent})
			current = &out[len(out)-1]
		}
		current.ProductIDs = append(current.ProductIDs, product)
	}
	return out, rows.Err()
}

// OrderCount returns the total number of orders.
func (d *DuckDB) OrderCount(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// ProductFrequencies returns per-product distinct-order counts.
func (d *DuckDB) ProductFrequencies(ctx context.Context) (map[string]int, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT product_id, COUNT(DISTINCT order_id)
		FROM order_items
		GROUP BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("product frequencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	freq := make(map[string]int)
	for rows.Next() {
		var pid string
		var n int
		if err := rows.Scan(&pid, &n); err != nil {
			return nil, fmt.Errorf("scan frequency row: %w", err)
		}
		freq[pid] = n
	}
	return freq, rows.Err()
}

// CoOccurrencePairs counts, per directed pair, the orders containing both
// products. The self-join stays inside the engine; only surviving pairs
// cross into Go.
func (d *DuckDB) CoOccurrencePairs(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT a.product_id, b.product_id, COUNT(*)
		FROM order_items a
		JOIN order_items b ON a.order_id = b.order_id AND a.product_id <> b.product_id
		GROUP BY a.product_id, b.product_id`)
	if err != nil {
		return nil, fmt.Errorf("cooccurrence pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	co := make(map[string]map[string]int)
	for rows.Next() {
		var a, b string
		var n int
		if err := rows.Scan(&a, &b, &n); err != nil {
			return nil, fmt.Errorf("scan cooccurrence row: %w", err)
		}
		row, ok := co[a]
		if !ok {
			row = make(map[string]int)
			co[a] = row
		}
		row[b] = n
	}
	return co, rows.Err()
}

// ListCatalog returns all products.
func (d *DuckDB) ListCatalog(ctx context.Context) ([]models.Product, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, category, attributes::VARCHAR FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		var attrs string
		if err := rows.Scan(&p.ID, &p.Category, &attrs); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes for %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CatalogSize returns the number of products.
func (d *DuckDB) CatalogSize(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("catalog size: %w", err)
	}
	return n, nil
}

// BulkUpsert writes a record set inside one transaction.
func (d *DuckDB) BulkUpsert(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (product_id, version, algorithm, batch_id, items, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id, version, algorithm) DO UPDATE SET
			batch_id = excluded.batch_id,
			items = excluded.items,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare recommendations upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range recs {
		rec := &recs[i]
		items, err := json.Marshal(rec.Items)
		if err != nil {
			return fmt.Errorf("marshal items for %s: %w", rec.ProductID, err)
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, rec.ProductID, rec.Version, string(rec.Algorithm),
			rec.BatchID, string(items), createdAt); err != nil {
			return fmt.Errorf("upsert recommendation %s: %w", rec.ProductID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}

	d.logger.Debug().Int("records", len(recs)).Str("version", recs[0].Version).Msg("bulk upsert committed")
	return nil
}

// FindRecommendation returns one product's record under a version,
// preferring hybrid, then collaborative, then association.
func (d *DuckDB) FindRecommendation(ctx context.Context, productID, version string) (models.Recommendation, error) {
	for _, algorithm := range algorithmPreference {
		rec, err := d.findOne(ctx, productID, version, algorithm)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return rec, err
	}
	return models.Recommendation{}, ErrNotFound
}

func (d *DuckDB) findOne(ctx context.Context, productID, version string, algorithm models.Algorithm) (models.Recommendation, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT product_id, version, algorithm, batch_id, items::VARCHAR, created_at
		FROM recommendations
		WHERE product_id = ? AND version = ? AND algorithm = ?`,
		productID, version, string(algorithm))

	rec, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recommendation{}, ErrNotFound
	}
	return rec, err
}

// FindByVersion returns one algorithm's records under a version, ordered by
// product id.
func (d *DuckDB) FindByVersion(ctx context.Context, version string, algorithm models.Algorithm) ([]models.Recommendation, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT product_id, version, algorithm, batch_id, items::VARCHAR, created_at
		FROM recommendations
		WHERE version = ? AND algorithm = ?
		ORDER BY product_id`,
		version, string(algorithm))
	if err != nil {
		return nil, fmt.Errorf("find by version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByVersion returns the record count under a version.
func (d *DuckDB) CountByVersion(ctx context.Context, version string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE version = ?`, version).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by version: %w", err)
	}
	return n, nil
}

// DeleteByVersion removes a version's records.
func (d *DuckDB) DeleteByVersion(ctx context.Context, version string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM recommendations WHERE version = ?`, version)
	if err != nil {
		return fmt.Errorf("delete by version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		d.logger.Debug().Str("version", version).Int64("records", n).Msg("version records deleted")
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for record hydration.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(s scanner) (models.Recommendation, error) {
	var (
		rec       models.Recommendation
		algorithm string
		items     string
	)
	if err := s.Scan(&rec.ProductID, &rec.Version, &algorithm, &rec.BatchID, &items, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan recommendation: %w", err)
	}
	rec.Algorithm = models.Algorithm(algorithm)
	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return rec, fmt.Errorf("unmarshal items for %s: %w", rec.ProductID, err)
	}
	return rec, nil
}
