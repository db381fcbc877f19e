package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReconcileUseCase translates a user edit of an aggregated sale quantity into
// the row and ledger changes that keep stock conserved. The aggregated view is
// keyed by product name, so the edit arrives as (name, oldQuantity,
// newQuantity) and the live product is resolved by exact name.
type ReconcileUseCase struct {
	products ProductRepository
	sales    SaleRepository
	tracer   trace.Tracer
	metrics  *ledgerMetrics
}

// NewReconcileUseCase cria uma nova instância de ReconcileUseCase
func NewReconcileUseCase(products ProductRepository, sales SaleRepository, tracer trace.Tracer, metrics *ledgerMetrics) *ReconcileUseCase {
	return &ReconcileUseCase{
		products: products,
		sales:    sales,
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Reconcile applies a quantity edit all or nothing:
//
//   - quantity reduced: the difference is returned to on-hand stock and the
//     same number of rows is deleted, newest first (undo of the latest sales);
//   - quantity increased: the increase is checked against on-hand stock,
//     the stock is decremented and one row per added unit is appended;
//   - unchanged quantity is a no-op.
//
// Everything runs inside one transaction, so a failure after the product is
// resolved leaves no visible state change.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, name string, oldQuantity, newQuantity int) (*Product, error) {
	ctx, span := uc.tracer.Start(ctx, "sales.reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_name", name),
		attribute.Int("old_quantity", oldQuantity),
		attribute.Int("new_quantity", newQuantity),
	)

	log.Infof("➡️ [RECONCILE] Name: %s | %d -> %d", name, oldQuantity, newQuantity)

	if oldQuantity < 0 || newQuantity < 0 {
		return nil, fmt.Errorf("%w: quantities must not be negative", ErrValidation)
	}

	tx, err := uc.products.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The sale history can outlive the product it refers to, so a missing
	// product is an expected, recoverable failure here.
	p, err := uc.products.GetByNameForUpdate(ctx, tx, name)
	if err != nil {
		log.Warnf("⚠️ [RECONCILE] Name: %s | %v", name, err)
		return nil, err
	}

	diff := oldQuantity - newQuantity

	switch {
	case diff == 0:
		log.Infof("ℹ️ [RECONCILE] Name: %s | quantity unchanged", name)
		return p, nil

	case diff > 0:
		// The user reduced the recorded quantity: stock goes back to the
		// ledger and the newest rows for this name are removed.
		if err := uc.products.AdjustQuantity(ctx, tx, p.ID, diff); err != nil {
			return nil, err
		}
		deleted, err := uc.sales.DeleteNewestByName(ctx, tx, name, diff)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
		}

		p.Quantity += diff
		uc.metrics.Reconciled(ctx, name, diff)
		log.Infof("✅ [RECONCILE] Name: %s | Returned: %d | Rows deleted: %d | On hand: %d", name, diff, deleted, p.Quantity)
		return p, nil

	default:
		increase := -diff
		if p.Quantity < increase {
			log.Warnf("⚠️ [RECONCILE] Name: %s | Increase: %d | only %d on hand", name, increase, p.Quantity)
			return nil, fmt.Errorf("%w: only %d on hand", ErrInsufficientStock, p.Quantity)
		}

		if err := uc.products.AdjustQuantity(ctx, tx, p.ID, -increase); err != nil {
			return nil, err
		}
		for i := 0; i < increase; i++ {
			if err := uc.sales.InsertEvent(ctx, tx, p); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
		}

		p.Quantity -= increase
		uc.metrics.Reconciled(ctx, name, -increase)
		log.Infof("✅ [RECONCILE] Name: %s | Added: %d | On hand: %d", name, increase, p.Quantity)
		return p, nil
	}
}
