package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StockUseCaseInterface define a interface para o stock ledger
type StockUseCaseInterface interface {
	InsertProduct(ctx context.Context, name string, price decimal.Decimal, quantity int) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, search string) ([]Product, error)
	PurgeInvalid(ctx context.Context) (int64, error)
}

// SalesUseCaseInterface define a interface para o sale recorder
type SalesUseCaseInterface interface {
	RecordSale(ctx context.Context, productID int64, quantity int) (*Product, error)
	ListAggregated(ctx context.Context, search string) (*AggregatedSalesResponse, error)
	ClearAll(ctx context.Context) (int64, error)
}

// ReconcileUseCaseInterface define a interface para o sale reconciler
type ReconcileUseCaseInterface interface {
	Reconcile(ctx context.Context, name string, oldQuantity, newQuantity int) (*Product, error)
}

// LedgerHandler contém os handlers HTTP do ledger
type LedgerHandler struct {
	stock     StockUseCaseInterface
	sales     SalesUseCaseInterface
	reconcile ReconcileUseCaseInterface
	tracer    trace.Tracer
}

// NewLedgerHandler cria uma nova instância de LedgerHandler
func NewLedgerHandler(stock StockUseCaseInterface, sales SalesUseCaseInterface, reconcile ReconcileUseCaseInterface, tracer trace.Tracer) *LedgerHandler {
	return &LedgerHandler{
		stock:     stock,
		sales:     sales,
		reconcile: reconcile,
		tracer:    tracer,
	}
}

// respondError maps domain error kinds onto HTTP statuses. Storage failures
// stay generic; the detail goes to the log, not the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Errorf("❌ [STORAGE] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}

// CreateProduct adds a product to the stock ledger.
func (h *LedgerHandler) CreateProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_product")
	defer span.End()

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("product_name", req.Name),
		attribute.Int("quantity", req.Quantity),
	)

	p, err := h.stock.InsertProduct(ctx, req.Name, req.Price, req.Quantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewProductResponse(*p))
}

// ListProducts returns the ledger ordered by name, optionally filtered.
func (h *LedgerHandler) ListProducts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_products")
	defer span.End()

	products, err := h.stock.ListProducts(ctx, c.Query("search"))
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, NewProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// UpdateProduct fully replaces a product's name, price and quantity.
func (h *LedgerHandler) UpdateProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_product")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Int64("product_id", id))

	p, err := h.stock.UpdateProduct(ctx, &Product{
		ID:       id,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewProductResponse(*p))
}

// DeleteProduct removes a product without touching sale history.
func (h *LedgerHandler) DeleteProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_product")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	span.SetAttributes(attribute.Int64("product_id", id))

	if err := h.stock.DeleteProduct(ctx, id); err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// PurgeInvalid runs the maintenance sweep over the product table.
func (h *LedgerHandler) PurgeInvalid(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "purge_invalid_products")
	defer span.End()

	purged, err := h.stock.PurgeInvalid(ctx)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

// RecordSale sells quantity units of a product.
func (h *LedgerHandler) RecordSale(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "record_sale")
	defer span.End()

	var req RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int64("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	p, err := h.sales.RecordSale(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewProductResponse(*p))
}

// ListSales returns the aggregated sales view and its grand total.
func (h *LedgerHandler) ListSales(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_sales")
	defer span.End()

	resp, err := h.sales.ListAggregated(ctx, c.Query("search"))
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ClearSales deletes every sale row. The UI confirms before calling this.
func (h *LedgerHandler) ClearSales(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "clear_sales")
	defer span.End()

	cleared, err := h.sales.ClearAll(ctx)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// Reconcile applies a user edit of an aggregated sale quantity.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "reconcile_sale")
	defer span.End()

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("product_name", req.Name),
		attribute.Int("old_quantity", req.OldQuantity),
		attribute.Int("new_quantity", req.NewQuantity),
	)

	p, err := h.reconcile.Reconcile(ctx, req.Name, req.OldQuantity, req.NewQuantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewProductResponse(*p))
}

// HealthCheck é o endpoint de health check
func (h *LedgerHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
