package main

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies Tx for the in-memory store; the fake applies writes
// directly, which is fine because the use cases check preconditions before
// mutating anything.
type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

// fakeStore is an in-memory implementation of both repository surfaces, used
// to run whole scenarios without a database.
type fakeStore struct {
	nextProductID int64
	nextSaleID    int64
	products      map[int64]*Product
	sales         []SaleEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[int64]*Product{}}
}

func (s *fakeStore) CreateTable(ctx context.Context) error { return nil }

func (s *fakeStore) BeginTx(ctx context.Context) (Tx, error) { return fakeTx{}, nil }

func (s *fakeStore) Insert(ctx context.Context, name string, price decimal.Decimal, quantity int) (*Product, error) {
	s.nextProductID++
	p := &Product{ID: s.nextProductID, Name: name, Price: price, Quantity: quantity}
	s.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, tx Tx, id int64) (*Product, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeStore) GetByNameForUpdate(ctx context.Context, tx Tx, name string) (*Product, error) {
	var found *Product
	for _, p := range s.products {
		if p.Name == name && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, ErrProductNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *fakeStore) Update(ctx context.Context, p *Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *fakeStore) AdjustQuantity(ctx context.Context, tx Tx, id int64, delta int) error {
	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Quantity += delta
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id int64) error {
	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *fakeStore) List(ctx context.Context, search string) ([]Product, error) {
	out := []Product{}
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) PurgeInvalid(ctx context.Context) (int64, error) {
	var purged int64
	for id, p := range s.products {
		if p.Name == "" || p.Price.IsZero() || p.Quantity == 0 {
			delete(s.products, id)
			purged++
		}
	}
	return purged, nil
}

func (s *fakeStore) InsertEvent(ctx context.Context, tx Tx, p *Product) error {
	s.nextSaleID++
	s.sales = append(s.sales, SaleEvent{
		ID:        s.nextSaleID,
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *fakeStore) ListEvents(ctx context.Context, search string) ([]SaleEvent, error) {
	out := []SaleEvent{}
	for _, ev := range s.sales {
		if search != "" && !strings.Contains(strings.ToLower(ev.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *fakeStore) DeleteNewestByName(ctx context.Context, tx Tx, name string, n int) (int64, error) {
	matching := []int64{}
	for _, ev := range s.sales {
		if ev.Name == name {
			matching = append(matching, ev.ID)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i] > matching[j] })
	if n < len(matching) {
		matching = matching[:n]
	}

	doomed := map[int64]bool{}
	for _, id := range matching {
		doomed[id] = true
	}
	kept := s.sales[:0]
	for _, ev := range s.sales {
		if !doomed[ev.ID] {
			kept = append(kept, ev)
		}
	}
	deleted := int64(len(s.sales) - len(kept))
	s.sales = kept
	return deleted, nil
}

func (s *fakeStore) ClearAll(ctx context.Context) (int64, error) {
	cleared := int64(len(s.sales))
	s.sales = nil
	return cleared, nil
}

// TestLedgerScenario walks the full sell-and-reconcile flow:
// Soap starts at 10 on hand, 3 are sold, the recorded quantity is edited up
// to 5 and back down to 1, and stock stays conserved throughout.
func TestLedgerScenario(t *testing.T) {
	store := newFakeStore()
	stock := NewStockUseCase(store, testTracer)
	sales := NewSalesUseCase(store, store, testTracer, nil)
	reconciler := NewReconcileUseCase(store, store, testTracer, nil)
	ctx := context.Background()

	soap, err := stock.InsertProduct(ctx, "Soap", decimal.NewFromInt(20), 10)
	require.NoError(t, err)

	p, err := sales.RecordSale(ctx, soap.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)

	view, err := sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.True(t, view.Items[0].TotalPrice.Equal(decimal.NewFromInt(60)))

	p, err = reconciler.Reconcile(ctx, "Soap", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)

	view, err = sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Items[0].TotalPrice.Equal(decimal.NewFromInt(100)))

	p, err = reconciler.Reconcile(ctx, "Soap", 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, p.Quantity)

	view, err = sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.True(t, view.Items[0].TotalPrice.Equal(decimal.NewFromInt(20)))
	assert.True(t, view.Total.Equal(decimal.NewFromInt(20)))

	cleared, err := sales.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	view, err = sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

// TestReconcileRoundTrip checks net stock conservation: an edit followed by
// the inverse edit restores both on-hand quantity and the row count.
func TestReconcileRoundTrip(t *testing.T) {
	store := newFakeStore()
	stock := NewStockUseCase(store, testTracer)
	sales := NewSalesUseCase(store, store, testTracer, nil)
	reconciler := NewReconcileUseCase(store, store, testTracer, nil)
	ctx := context.Background()

	soap, err := stock.InsertProduct(ctx, "Soap", decimal.NewFromInt(20), 10)
	require.NoError(t, err)
	_, err = sales.RecordSale(ctx, soap.ID, 4)
	require.NoError(t, err)

	_, err = reconciler.Reconcile(ctx, "Soap", 4, 6)
	require.NoError(t, err)
	p, err := reconciler.Reconcile(ctx, "Soap", 6, 4)
	require.NoError(t, err)

	assert.Equal(t, 6, p.Quantity)
	events, err := store.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

// TestReconcileDeletesNewestRows verifies the undo tie-break: a reduction
// removes the most recently recorded rows first, so the rows that survive are
// the oldest snapshots.
func TestReconcileDeletesNewestRows(t *testing.T) {
	store := newFakeStore()
	stock := NewStockUseCase(store, testTracer)
	sales := NewSalesUseCase(store, store, testTracer, nil)
	reconciler := NewReconcileUseCase(store, store, testTracer, nil)
	ctx := context.Background()

	soap, err := stock.InsertProduct(ctx, "Soap", decimal.NewFromInt(20), 10)
	require.NoError(t, err)
	_, err = sales.RecordSale(ctx, soap.ID, 2)
	require.NoError(t, err)

	// Price change between sales: newer rows snapshot 30.
	current, err := store.GetByID(ctx, soap.ID)
	require.NoError(t, err)
	current.Price = decimal.NewFromInt(30)
	_, err = stock.UpdateProduct(ctx, current)
	require.NoError(t, err)
	_, err = sales.RecordSale(ctx, soap.ID, 1)
	require.NoError(t, err)

	view, err := sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].TotalPrice.Equal(decimal.NewFromInt(70)))

	// Reducing 3 -> 2 must drop the price-30 row, not an old price-20 one.
	_, err = reconciler.Reconcile(ctx, "Soap", 3, 2)
	require.NoError(t, err)

	view, err = sales.ListAggregated(ctx, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.True(t, view.Items[0].TotalPrice.Equal(decimal.NewFromInt(40)))
}

// TestPurgeInvalidSweepsSoldOut documents the purge policy: a product that
// legitimately sold down to zero matches the zero-quantity rule and is
// removed along with never-valid rows.
func TestPurgeInvalidSweepsSoldOut(t *testing.T) {
	store := newFakeStore()
	stock := NewStockUseCase(store, testTracer)
	sales := NewSalesUseCase(store, store, testTracer, nil)
	ctx := context.Background()

	soap, err := stock.InsertProduct(ctx, "Soap", decimal.NewFromInt(20), 2)
	require.NoError(t, err)
	_, err = stock.InsertProduct(ctx, "Shampoo", decimal.NewFromInt(50), 5)
	require.NoError(t, err)

	_, err = sales.RecordSale(ctx, soap.ID, 2)
	require.NoError(t, err)

	purged, err := stock.PurgeInvalid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	products, err := stock.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Shampoo", products[0].Name)

	// Sale history keeps its snapshots even though Soap is gone.
	events, err := store.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
