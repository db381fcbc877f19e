package main

import "github.com/shopspring/decimal"

// CreateProductRequest is the payload to add a product to the stock ledger.
type CreateProductRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// UpdateProductRequest fully replaces name, price and quantity of a product.
type UpdateProductRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// RecordSaleRequest asks for quantity units of a product to be sold.
type RecordSaleRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// ReconcileRequest carries a user edit of an aggregated sale quantity.
// Quantities are not tagged required so that reconciling down to zero binds.
type ReconcileRequest struct {
	Name        string `json:"name" binding:"required"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
}

// ProductResponse is a ledger record plus the stock markers the listing shows.
type ProductResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	OutOfStock bool            `json:"out_of_stock"`
	LowStock   bool            `json:"low_stock"`
}

// NewProductResponse converts a ledger record for the HTTP boundary.
func NewProductResponse(p Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   p.Quantity,
		OutOfStock: p.OutOfStock(),
		LowStock:   p.LowStock(),
	}
}

// AggregatedSalesResponse is the grouped sales view with its grand total.
type AggregatedSalesResponse struct {
	Items []AggregatedSale `json:"items"`
	Total decimal.Decimal  `json:"total"`
}
