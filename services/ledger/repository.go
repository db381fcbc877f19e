package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductRepository defines the storage surface of the stock ledger.
type ProductRepository interface {
	CreateTable(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Insert(ctx context.Context, name string, price decimal.Decimal, quantity int) (*Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetForUpdate(ctx context.Context, tx Tx, id int64) (*Product, error)
	GetByNameForUpdate(ctx context.Context, tx Tx, name string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	AdjustQuantity(ctx context.Context, tx Tx, id int64, delta int) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]Product, error)
	PurgeInvalid(ctx context.Context) (int64, error)
}

// SaleRepository defines the storage surface of the sale recorder.
type SaleRepository interface {
	CreateTable(ctx context.Context) error
	InsertEvent(ctx context.Context, tx Tx, p *Product) error
	ListEvents(ctx context.Context, search string) ([]SaleEvent, error)
	DeleteNewestByName(ctx context.Context, tx Tx, name string, n int) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// PostgresProductRepository implementa ProductRepository usando PostgreSQL
type PostgresProductRepository struct {
	db *pgxpool.Pool
}

// NewProductRepository cria uma nova instância de PostgresProductRepository
func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &PostgresProductRepository{
		db: db,
	}
}

// CreateTable creates the products table. Safe to call on every startup.
func (r *PostgresProductRepository) CreateTable(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			price NUMERIC(12,2) NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

// BeginTx inicia uma nova transação
func (r *PostgresProductRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// Insert creates a product with a fresh identity. Input validation happens in
// the use case before this is called.
func (r *PostgresProductRepository) Insert(ctx context.Context, name string, price decimal.Decimal, quantity int) (*Product, error) {
	p := &Product{Name: name, Price: price, Quantity: quantity}

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, price, quantity)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, price, quantity).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	return p, nil
}

// GetByID busca um produto pelo id
func (r *PostgresProductRepository) GetByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `
		SELECT id, name, price, quantity
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// GetForUpdate obtém o produto com lock pessimista (FOR UPDATE)
func (r *PostgresProductRepository) GetForUpdate(ctx context.Context, tx Tx, id int64) (*Product, error) {
	pgTx := tx.(*PostgresTx).tx

	var p Product
	err := pgTx.QueryRow(ctx, `
		SELECT id, name, price, quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product with lock: %w", err)
	}

	return &p, nil
}

// GetByNameForUpdate resolves a live product by exact name with a pessimistic
// lock. The aggregated sales view is keyed by name, so reconciliation resolves
// its target the same way.
func (r *PostgresProductRepository) GetByNameForUpdate(ctx context.Context, tx Tx, name string) (*Product, error) {
	pgTx := tx.(*PostgresTx).tx

	var p Product
	err := pgTx.QueryRow(ctx, `
		SELECT id, name, price, quantity
		FROM products
		WHERE name = $1
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE
	`, name).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by name with lock: %w", err)
	}

	return &p, nil
}

// Update fully replaces name, price and quantity of an existing product.
func (r *PostgresProductRepository) Update(ctx context.Context, p *Product) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET name = $1, price = $2, quantity = $3
		WHERE id = $4
	`, p.Name, p.Price, p.Quantity, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AdjustQuantity moves stock by delta. The caller holds the row lock and has
// already verified the result stays non-negative.
func (r *PostgresProductRepository) AdjustQuantity(ctx context.Context, tx Tx, id int64, delta int) error {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $1
		WHERE id = $2
	`, delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes the product. Historical sale rows keep their name and price
// snapshots and are not touched.
func (r *PostgresProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// List returns products ordered by name ascending, optionally filtered by a
// case-insensitive name substring.
func (r *PostgresProductRepository) List(ctx context.Context, search string) ([]Product, error) {
	query := `
		SELECT id, name, price, quantity
		FROM products
		ORDER BY name ASC
	`
	args := []any{}
	if search != "" {
		query = `
			SELECT id, name, price, quantity
			FROM products
			WHERE name ILIKE '%' || $1 || '%'
			ORDER BY name ASC
		`
		args = append(args, search)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return products, nil
}

// PurgeInvalid deletes products with an empty name, zero price or zero
// quantity. Zero quantity also matches legitimately sold-out products; the
// policy is kept as is.
func (r *PostgresProductRepository) PurgeInvalid(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM products
		WHERE name = '' OR price = 0 OR quantity = 0
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge invalid products: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PostgresSaleRepository implementa SaleRepository usando PostgreSQL
type PostgresSaleRepository struct {
	db *pgxpool.Pool
}

// NewSaleRepository cria uma nova instância de PostgresSaleRepository
func NewSaleRepository(db *pgxpool.Pool) SaleRepository {
	return &PostgresSaleRepository{
		db: db,
	}
}

// CreateTable creates the sales table. Safe to call on every startup.
func (r *PostgresSaleRepository) CreateTable(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sales table: %w", err)
	}
	return nil
}

// InsertEvent appends one sold-unit row snapshotting the product's current
// name and price. Each row gets its own timestamp.
func (r *PostgresSaleRepository) InsertEvent(ctx context.Context, tx Tx, p *Product) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO sales (product_id, name, price, created_at)
		VALUES ($1, $2, $3, now())
	`, p.ID, p.Name, p.Price)
	if err != nil {
		return fmt.Errorf("failed to insert sale event: %w", err)
	}
	return nil
}

// ListEvents returns sale events newest first, optionally filtered by a
// case-insensitive name substring. Ties on created_at break by identity so the
// order stays stable for same-sale rows.
func (r *PostgresSaleRepository) ListEvents(ctx context.Context, search string) ([]SaleEvent, error) {
	query := `
		SELECT id, product_id, name, price, created_at
		FROM sales
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if search != "" {
		query = `
			SELECT id, product_id, name, price, created_at
			FROM sales
			WHERE name ILIKE '%' || $1 || '%'
			ORDER BY created_at DESC, id DESC
		`
		args = append(args, search)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale events: %w", err)
	}
	defer rows.Close()

	events := []SaleEvent{}
	for rows.Next() {
		var ev SaleEvent
		if err := rows.Scan(&ev.ID, &ev.ProductID, &ev.Name, &ev.Price, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sale events: %w", err)
	}

	return events, nil
}

// DeleteNewestByName removes the n most recently recorded rows for a product
// name. Newest first models undo semantics for the latest sales.
func (r *PostgresSaleRepository) DeleteNewestByName(ctx context.Context, tx Tx, name string, n int) (int64, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		DELETE FROM sales
		WHERE id IN (
			SELECT id FROM sales
			WHERE name = $1
			ORDER BY id DESC
			LIMIT $2
		)
	`, name, n)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sale events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearAll deletes every sale row. The confirmation gate lives at the boundary.
func (r *PostgresSaleRepository) ClearAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sales`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sales: %w", err)
	}
	return tag.RowsAffected(), nil
}
