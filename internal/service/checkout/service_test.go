package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/pricing"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	pricer := pricing.NewEngine(store.Promos())
	svc := NewServiceWithoutMetrics(store.Variants(), store.Orders(), pricer, store.Outbox(), nil)
	return svc, store
}

func seedVariant(t *testing.T, store *memory.Store, id string, price int64, stock int32) {
	t.Helper()

	now := time.Now().UTC()
	err := store.Variants().Create(domain.Variant{
		ID:         id,
		SKU:        "sku-" + id,
		PriceMinor: price,
		Stock:      stock,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
}

func TestCheckout_Success(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	order, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if order.Status != domain.OrderStatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", order.Status)
	}
	if order.SubtotalMinor != 3000 || order.TotalMinor != 3000 {
		t.Fatalf("unexpected totals: %+v", order)
	}
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("order invariants violated: %v", errs)
	}

	v, _ := store.Variants().Get("v1")
	if v.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", v.Stock)
	}

	d, err := store.Deliveries().GetByOrder(order.ID)
	if err != nil {
		t.Fatalf("delivery missing: %v", err)
	}
	if d.Status != domain.DeliveryStatusPending || d.AddressID != "address-1" {
		t.Fatalf("unexpected delivery: %+v", d)
	}

	pending, _ := store.Outbox().PullPending(10)
	if len(pending) != 1 || pending[0].EventType != "OrderCreated" {
		t.Fatalf("expected OrderCreated event, got %+v", pending)
	}
}

func TestCheckout_WithPromo(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	now := time.Now().UTC()
	if err := store.Promos().Create(domain.Promo{
		ID: "p1", Code: "SALE10", DiscountPercent: 10, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	order, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		PromoCode: "SALE10",
		Items:     []ItemInput{{VariantID: "v1", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.DiscountMinor != 300 || order.TotalMinor != 2700 {
		t.Fatalf("unexpected totals: %+v", order)
	}
	if order.PromoCode != "SALE10" {
		t.Fatalf("promo code not captured: %+v", order)
	}
}

func TestCheckout_BadPromoFailsWithoutReserving(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	_, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		PromoCode: "NOPE",
		Items:     []ItemInput{{VariantID: "v1", Qty: 3}},
	})
	if !errors.Is(err, domain.ErrPromoNotFound) {
		t.Fatalf("expected ErrPromoNotFound, got %v", err)
	}

	v, _ := store.Variants().Get("v1")
	if v.Stock != 5 {
		t.Fatalf("stock must be untouched, got %d", v.Stock)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 2)

	_, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 3}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	v, _ := store.Variants().Get("v1")
	if v.Stock != 2 {
		t.Fatalf("stock must be untouched, got %d", v.Stock)
	}
}

func TestCheckout_InactiveVariant(t *testing.T) {
	svc, store := newTestService(t)

	now := time.Now().UTC()
	if err := store.Variants().Create(domain.Variant{
		ID: "v1", SKU: "sku-v1", PriceMinor: 1000, Stock: 5, IsActive: false,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create variant: %v", err)
	}

	_, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 1}},
	})
	if !errors.Is(err, domain.ErrVariantInactive) {
		t.Fatalf("expected ErrVariantInactive, got %v", err)
	}
}

func TestCheckout_ZeroStockIsInsufficientStock(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 0)

	// Активный вариант с нулевым остатком распродан, а не снят с продажи.
	_, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 1}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if errors.Is(err, domain.ErrVariantInactive) {
		t.Fatalf("sold out must not be reported as inactive: %v", err)
	}
}

func TestCheckout_ValidationErrors(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	valid := Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 1}},
	}

	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr error
	}{
		{name: "missing user", mutate: func(in *Input) { in.UserID = "" }, wantErr: domain.ErrUserRequired},
		{name: "missing currency", mutate: func(in *Input) { in.Currency = "" }, wantErr: domain.ErrCurrencyRequired},
		{name: "missing address", mutate: func(in *Input) { in.AddressID = "" }, wantErr: domain.ErrAddressRequired},
		{name: "empty items", mutate: func(in *Input) { in.Items = nil }, wantErr: domain.ErrItemsRequired},
		{name: "zero qty", mutate: func(in *Input) { in.Items = []ItemInput{{VariantID: "v1", Qty: 0}} }, wantErr: domain.ErrItemQtyInvalid},
		{name: "unknown variant", mutate: func(in *Input) { in.Items = []ItemInput{{VariantID: "nope", Qty: 1}} }, wantErr: domain.ErrVariantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.Checkout(in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCancel_RestoresStockAndEmitsEvent(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	order, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	cancelled, err := svc.Cancel(order.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	v, _ := store.Variants().Get("v1")
	if v.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", v.Stock)
	}

	pending, _ := store.Outbox().PullPending(10)
	var sawCancelled bool
	for _, msg := range pending {
		if msg.EventType == "OrderCancelled" {
			sawCancelled = true
		}
	}
	if !sawCancelled {
		t.Fatalf("expected OrderCancelled event, got %+v", pending)
	}
}

func TestCancel_RejectsPaidOrder(t *testing.T) {
	svc, store := newTestService(t)
	seedVariant(t, store, "v1", 1000, 5)

	order, err := svc.Checkout(Input{
		UserID:    "user-1",
		Currency:  "USD",
		AddressID: "address-1",
		Items:     []ItemInput{{VariantID: "v1", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	stored, _ := store.Orders().Get(order.ID)
	stored.Status = domain.OrderStatusPaid
	stored.UpdatedAt = time.Now().UTC()
	if err := store.Orders().Save(stored); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := svc.Cancel(order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
