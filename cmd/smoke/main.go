// Command smoke drives a running ledger service through a full
// sell-and-reconcile round trip and fails loudly on the first divergence.
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type productResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	OutOfStock bool            `json:"out_of_stock"`
	LowStock   bool            `json:"low_stock"`
}

type aggregatedSale struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type salesResponse struct {
	Items []aggregatedSale `json:"items"`
	Total decimal.Decimal  `json:"total"`
}

func main() {
	baseURL := getEnv("LEDGER_URL", "http://localhost:8080")
	client := resty.New().SetBaseURL(baseURL)

	log.Printf("🚀 Running smoke scenario against %s", baseURL)

	// Start from a clean sales ledger.
	if _, err := client.R().Delete("/api/sales"); err != nil {
		log.Fatalf("❌ clear sales: %v", err)
	}

	var soap productResponse
	resp, err := client.R().
		SetBody(map[string]any{"name": "Soap", "price": 20, "quantity": 10}).
		SetResult(&soap).
		Post("/api/products")
	if err != nil || resp.StatusCode() != 201 {
		log.Fatalf("❌ create product: status=%d err=%v body=%s", resp.StatusCode(), err, resp.String())
	}
	log.Printf("✅ Created Soap (id=%d, quantity=%d)", soap.ID, soap.Quantity)

	sellAndCheck(client, soap.ID, 3, 7)
	checkSales(client, "Soap", 3, "60")

	reconcileAndCheck(client, "Soap", 3, 5, 5)
	checkSales(client, "Soap", 5, "100")

	reconcileAndCheck(client, "Soap", 5, 1, 9)
	checkSales(client, "Soap", 1, "20")

	if _, err := client.R().Delete("/api/sales"); err != nil {
		log.Fatalf("❌ clear sales: %v", err)
	}
	var after salesResponse
	if _, err := client.R().SetResult(&after).Get("/api/sales"); err != nil {
		log.Fatalf("❌ list sales: %v", err)
	}
	if len(after.Items) != 0 || !after.Total.IsZero() {
		log.Fatalf("❌ sales not empty after reset: %+v", after)
	}

	if _, err := client.R().Delete("/api/products/" + itoa(soap.ID)); err != nil {
		log.Fatalf("❌ delete product: %v", err)
	}

	log.Println("✅ Smoke scenario passed")
}

func sellAndCheck(client *resty.Client, productID int64, quantity, wantRemaining int) {
	var p productResponse
	resp, err := client.R().
		SetBody(map[string]any{"product_id": productID, "quantity": quantity}).
		SetResult(&p).
		Post("/api/sales")
	if err != nil || resp.StatusCode() != 200 {
		log.Fatalf("❌ record sale: status=%d err=%v body=%s", resp.StatusCode(), err, resp.String())
	}
	if p.Quantity != wantRemaining {
		log.Fatalf("❌ record sale: remaining=%d want=%d", p.Quantity, wantRemaining)
	}
	log.Printf("✅ Sold %d, %d remaining", quantity, p.Quantity)
}

func reconcileAndCheck(client *resty.Client, name string, oldQ, newQ, wantOnHand int) {
	var p productResponse
	resp, err := client.R().
		SetBody(map[string]any{"name": name, "old_quantity": oldQ, "new_quantity": newQ}).
		SetResult(&p).
		Put("/api/sales/quantity")
	if err != nil || resp.StatusCode() != 200 {
		log.Fatalf("❌ reconcile %d->%d: status=%d err=%v body=%s", oldQ, newQ, resp.StatusCode(), err, resp.String())
	}
	if p.Quantity != wantOnHand {
		log.Fatalf("❌ reconcile %d->%d: on hand=%d want=%d", oldQ, newQ, p.Quantity, wantOnHand)
	}
	log.Printf("✅ Reconciled %s %d->%d, %d on hand", name, oldQ, newQ, p.Quantity)
}

func checkSales(client *resty.Client, name string, wantQuantity int, wantTotal string) {
	var sales salesResponse
	resp, err := client.R().SetResult(&sales).Get("/api/sales")
	if err != nil || resp.StatusCode() != 200 {
		log.Fatalf("❌ list sales: status=%d err=%v", resp.StatusCode(), err)
	}
	if len(sales.Items) != 1 || sales.Items[0].Name != name {
		log.Fatalf("❌ aggregated view: %+v", sales.Items)
	}
	want := decimal.RequireFromString(wantTotal)
	if sales.Items[0].Quantity != wantQuantity || !sales.Items[0].TotalPrice.Equal(want) {
		log.Fatalf("❌ aggregated view: quantity=%d total=%s want quantity=%d total=%s",
			sales.Items[0].Quantity, sales.Items[0].TotalPrice, wantQuantity, want)
	}
	if !sales.Total.Equal(want) {
		log.Fatalf("❌ grand total: %s want %s", sales.Total, want)
	}
	log.Printf("✅ Sales view: %s x%d = %s", name, wantQuantity, sales.Items[0].TotalPrice)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
