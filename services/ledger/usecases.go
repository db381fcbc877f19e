package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// StockUseCase contém a lógica de negócio do stock ledger
type StockUseCase struct {
	products ProductRepository
	tracer   trace.Tracer
}

// NewStockUseCase cria uma nova instância de StockUseCase
func NewStockUseCase(products ProductRepository, tracer trace.Tracer) *StockUseCase {
	return &StockUseCase{
		products: products,
		tracer:   tracer,
	}
}

// InsertProduct validates user input and creates a product with a fresh
// identity.
func (uc *StockUseCase) InsertProduct(ctx context.Context, name string, price decimal.Decimal, quantity int) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "stock.insert")
	defer span.End()

	p, err := NewProduct(name, price, quantity)
	if err != nil {
		return nil, err
	}

	created, err := uc.products.Insert(ctx, p.Name, p.Price, p.Quantity)
	if err != nil {
		log.Errorf("❌ [INSERT PRODUCT] Name: %s | %v", name, err)
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	log.Infof("✅ [INSERT PRODUCT] ID: %d | Name: %s | Quantity: %d", created.ID, created.Name, created.Quantity)
	return created, nil
}

// UpdateProduct fully replaces name, price and quantity for an existing id.
func (uc *StockUseCase) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "stock.update")
	defer span.End()

	validated, err := NewProduct(p.Name, p.Price, p.Quantity)
	if err != nil {
		return nil, err
	}
	validated.ID = p.ID

	if err := uc.products.Update(ctx, validated); err != nil {
		return nil, err
	}

	log.Infof("✅ [UPDATE PRODUCT] ID: %d | Name: %s | Quantity: %d", validated.ID, validated.Name, validated.Quantity)
	return validated, nil
}

// AdjustQuantity moves stock by delta under a row lock. A delta that would
// drive the quantity below zero fails before any mutation.
func (uc *StockUseCase) AdjustQuantity(ctx context.Context, id int64, delta int) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "stock.adjust_quantity")
	defer span.End()

	tx, err := uc.products.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := uc.products.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if p.Quantity+delta < 0 {
		log.Warnf("⚠️ [ADJUST QUANTITY] ID: %d | Delta: %d | only %d on hand", id, delta, p.Quantity)
		return nil, fmt.Errorf("%w: product %d has %d on hand", ErrInsufficientStock, id, p.Quantity)
	}

	if err := uc.products.AdjustQuantity(ctx, tx, id, delta); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}

	p.Quantity += delta
	log.Infof("✅ [ADJUST QUANTITY] ID: %d | Delta: %+d | Quantity: %d", id, delta, p.Quantity)
	return p, nil
}

// DeleteProduct removes the product. Sale history keeps its snapshots.
func (uc *StockUseCase) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := uc.tracer.Start(ctx, "stock.delete")
	defer span.End()

	if err := uc.products.Delete(ctx, id); err != nil {
		return err
	}

	log.Infof("✅ [DELETE PRODUCT] ID: %d", id)
	return nil
}

// ListProducts returns all products ordered by name ascending.
func (uc *StockUseCase) ListProducts(ctx context.Context, search string) ([]Product, error) {
	ctx, span := uc.tracer.Start(ctx, "stock.list")
	defer span.End()

	return uc.products.List(ctx, search)
}

// PurgeInvalid deletes products with an empty name, zero price or zero
// quantity. Sold-out products match the zero-quantity rule and are deleted
// too; the maintenance sweep keeps the original policy.
func (uc *StockUseCase) PurgeInvalid(ctx context.Context) (int64, error) {
	ctx, span := uc.tracer.Start(ctx, "stock.purge_invalid")
	defer span.End()

	purged, err := uc.products.PurgeInvalid(ctx)
	if err != nil {
		return 0, err
	}

	log.Infof("🧹 [PURGE INVALID] Removed: %d", purged)
	return purged, nil
}

// SalesUseCase contém a lógica de negócio do sale recorder
type SalesUseCase struct {
	products ProductRepository
	sales    SaleRepository
	tracer   trace.Tracer
	metrics  *ledgerMetrics
}

// NewSalesUseCase cria uma nova instância de SalesUseCase
func NewSalesUseCase(products ProductRepository, sales SaleRepository, tracer trace.Tracer, metrics *ledgerMetrics) *SalesUseCase {
	return &SalesUseCase{
		products: products,
		sales:    sales,
		tracer:   tracer,
		metrics:  metrics,
	}
}

// RecordSale sells quantity units of a product: the on-hand stock is
// decremented and one sale row per unit is appended, all inside one
// transaction. Stock only moves between on hand and sold, never appears or
// disappears.
func (uc *SalesUseCase) RecordSale(ctx context.Context, productID int64, quantity int) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "sales.record")
	defer span.End()

	log.Infof("➡️ [RECORD SALE] ProductID: %d | Quantity: %d", productID, quantity)

	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}

	tx, err := uc.products.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := uc.products.GetForUpdate(ctx, tx, productID)
	if err != nil {
		log.Errorf("❌ [RECORD SALE] ProductID: %d | %v", productID, err)
		return nil, err
	}

	if p.Quantity < quantity {
		log.Warnf("⚠️ [RECORD SALE] ProductID: %d | Requested: %d | only %d left in stock", productID, quantity, p.Quantity)
		return nil, fmt.Errorf("%w: only %d left in stock", ErrInsufficientStock, p.Quantity)
	}

	if err := uc.products.AdjustQuantity(ctx, tx, p.ID, -quantity); err != nil {
		return nil, err
	}

	// One row per unit, each with its own timestamp.
	for i := 0; i < quantity; i++ {
		if err := uc.sales.InsertEvent(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}

	p.Quantity -= quantity
	uc.metrics.SaleRecorded(ctx, p.Name, quantity)

	log.Infof("✅ [RECORD SALE] ProductID: %d | Sold: %d | Remaining: %d", p.ID, quantity, p.Quantity)
	return p, nil
}

// ListAggregated groups sale events by product name, newest first, and
// returns the views together with the grand total.
func (uc *SalesUseCase) ListAggregated(ctx context.Context, search string) (*AggregatedSalesResponse, error) {
	ctx, span := uc.tracer.Start(ctx, "sales.list_aggregated")
	defer span.End()

	events, err := uc.sales.ListEvents(ctx, search)
	if err != nil {
		return nil, err
	}

	items, total := GroupSales(events)
	return &AggregatedSalesResponse{Items: items, Total: total}, nil
}

// ClearAll deletes every sale row. Irreversible; user confirmation is the
// boundary's job.
func (uc *SalesUseCase) ClearAll(ctx context.Context) (int64, error) {
	ctx, span := uc.tracer.Start(ctx, "sales.clear_all")
	defer span.End()

	cleared, err := uc.sales.ClearAll(ctx)
	if err != nil {
		return 0, err
	}

	log.Infof("🧹 [CLEAR SALES] Removed: %d", cleared)
	return cleared, nil
}
