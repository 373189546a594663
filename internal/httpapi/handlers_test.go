package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/cache"
	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/dispatch"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/service/pricing"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

const (
	testWebhookSecret = "whsec_test"
	testAdminToken    = "admin-token"
)

// fakeRedis — минимальная замена Redis для кэша статусов заказов.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := int64(0)
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

var _ cache.Commands = (*fakeRedis)(nil)

type testAPI struct {
	router   *chi.Mux
	store    *memory.Store
	provider *payment.MockProvider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore()
	pricer := pricing.NewEngine(store.Promos())
	checkoutSvc := checkout.NewServiceWithoutMetrics(
		store.Variants(), store.Orders(), pricer, store.Outbox(), nil,
	)
	dispatchSvc := dispatch.NewServiceWithoutMetrics(
		store.Deliveries(), store.Couriers(), store.Orders(), store.Outbox(), nil,
	)
	provider := payment.NewMockProvider()
	paymentSvc := payment.NewServiceWithoutMetrics(
		store.Payments(), store.Orders(), provider,
		store.ProcessedEvents(), store.Outbox(), dispatchSvc, nil,
	)

	handlers := NewHandlers(Options{
		Checkout:      checkoutSvc,
		Payments:      paymentSvc,
		Dispatch:      dispatchSvc,
		Variants:      store.Variants(),
		Promos:        store.Promos(),
		StatusCache:   cache.NewOrderStatusCacheWithCommands(newFakeRedis(), nil),
		WebhookSecret: []byte(testWebhookSecret),
		AdminToken:    testAdminToken,
	})

	return &testAPI{
		router:   NewRouter(handlers),
		store:    store,
		provider: provider,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seedVariant(t *testing.T, id string, priceMinor int64, stock int32) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, a.store.Variants().Create(domain.Variant{
		ID: id, SKU: "sku-" + id, PriceMinor: priceMinor, Stock: stock,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func (a *testAPI) placeOrder(t *testing.T, variantID string, qty int32) orderResponse {
	t.Helper()

	w := a.do(t, http.MethodPost, "/orders/checkout", checkoutRequest{
		UserID:    "user-1",
		AddressID: "address-1",
		Currency:  "USD",
		Items:     []checkoutItemRequest{{VariantID: variantID, Quantity: qty}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error.Code
}

func TestCheckoutEndpoint_Success(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)

	resp := api.placeOrder(t, "v1", 3)

	require.Equal(t, "pending_payment", resp.Status)
	require.Equal(t, int64(3000), resp.TotalMinor)
	require.Len(t, resp.Items, 1)
	require.NotNil(t, resp.Delivery)
	require.Equal(t, "pending", resp.Delivery.Status)
	require.Equal(t, "address-1", resp.Delivery.AddressID)

	variant, err := api.store.Variants().Get("v1")
	require.NoError(t, err)
	require.Equal(t, int32(2), variant.Stock)
}

func TestCheckoutEndpoint_Failures(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 2)

	tests := []struct {
		name     string
		body     checkoutRequest
		wantCode int
		wantErr  string
	}{
		{
			name: "insufficient stock",
			body: checkoutRequest{
				UserID: "user-1", AddressID: "address-1", Currency: "USD",
				Items: []checkoutItemRequest{{VariantID: "v1", Quantity: 10}},
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "insufficient_stock",
		},
		{
			name: "unknown variant",
			body: checkoutRequest{
				UserID: "user-1", AddressID: "address-1", Currency: "USD",
				Items: []checkoutItemRequest{{VariantID: "ghost", Quantity: 1}},
			},
			wantCode: http.StatusNotFound,
			wantErr:  "variant_not_found",
		},
		{
			name: "empty cart",
			body: checkoutRequest{
				UserID: "user-1", AddressID: "address-1", Currency: "USD",
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_request",
		},
		{
			name: "unknown promo",
			body: checkoutRequest{
				UserID: "user-1", AddressID: "address-1", Currency: "USD",
				PromoCode: "GHOST",
				Items:     []checkoutItemRequest{{VariantID: "v1", Quantity: 1}},
			},
			wantCode: http.StatusNotFound,
			wantErr:  "promo_not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/orders/checkout", tt.body, nil)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			require.Equal(t, tt.wantErr, decodeErrorCode(t, w))

			// Неудачное оформление не трогает сток.
			variant, err := api.store.Variants().Get("v1")
			require.NoError(t, err)
			require.Equal(t, int32(2), variant.Stock)
		})
	}
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/orders/ghost", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "order_not_found", decodeErrorCode(t, w))
}

func TestCancelOrderEndpoint_RestoresStock(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 3)

	w := api.do(t, http.MethodPost, "/orders/"+order.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "cancelled", resp.Status)

	variant, err := api.store.Variants().Get("v1")
	require.NoError(t, err)
	require.Equal(t, int32(5), variant.Stock)

	// Повторная отмена недопустима.
	w = api.do(t, http.MethodPost, "/orders/"+order.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "invalid_state", decodeErrorCode(t, w))
}

func TestOrderStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	w := api.do(t, http.MethodGet, "/orders/"+order.ID+"/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "pending_payment", resp["status"])

	// Повторный запрос обслуживается из кэша.
	w = api.do(t, http.MethodGet, "/orders/"+order.ID+"/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "pending_payment", resp["status"])
	require.Equal(t, true, resp["cached"])
}

func (a *testAPI) orderStatus(t *testing.T, orderID string) map[string]any {
	t.Helper()

	w := a.do(t, http.MethodGet, "/orders/"+orderID+"/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func (a *testAPI) deliverWebhook(t *testing.T, eventID, eventType, intentID string) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"id":        eventID,
		"type":      eventType,
		"intent_id": intentID,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, payment.SignPayload([]byte(testWebhookSecret), body, time.Now().UTC()))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWebhook_RefreshesCachedOrderStatus(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	// Прогреваем кэш до оплаты.
	resp := api.orderStatus(t, order.ID)
	require.Equal(t, "pending_payment", resp["status"])

	w := api.do(t, http.MethodPost, "/payments/"+order.ID+"/create", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var intent map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&intent))

	api.deliverWebhook(t, "evt-cache", string(domain.PaymentEventSucceeded), intent["intent_id"].(string))

	// Кэш сброшен: статус отражает оплату, а не прогретое значение.
	resp = api.orderStatus(t, order.ID)
	require.Equal(t, "paid", resp["status"])
	require.Equal(t, false, resp["cached"])
}

func TestDeliveryStatus_RefreshesCachedOrderStatus(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	w := api.do(t, http.MethodPost, "/couriers/", registerCourierRequest{
		UserID: "courier-user-1", TransportType: "bike", IsVerified: true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/payments/"+order.ID+"/create", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var intent map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&intent))

	// Оплата назначает курьера автоматически.
	api.deliverWebhook(t, "evt-stage", string(domain.PaymentEventSucceeded), intent["intent_id"].(string))

	// Прогреваем кэш оплаченным статусом.
	resp := api.orderStatus(t, order.ID)
	require.Equal(t, "paid", resp["status"])

	// Промежуточный этап доставки двигает заказ и сбрасывает кэш.
	w = api.do(t, http.MethodPost, "/deliveries/"+order.ID+"/status", deliveryStatusRequest{
		Status: "picking",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp = api.orderStatus(t, order.ID)
	require.Equal(t, "processing", resp["status"])
	require.Equal(t, false, resp["cached"])
}

func TestPaymentFlow_WebhookSucceeded(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 3)

	w := api.do(t, http.MethodPost, "/payments/"+order.ID+"/create", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var intent map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&intent))
	require.NotEmpty(t, intent["client_secret"])
	require.NotEmpty(t, intent["intent_id"])

	event := map[string]any{
		"id":        "evt-1",
		"type":      string(domain.PaymentEventSucceeded),
		"intent_id": intent["intent_id"],
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	header := payment.SignPayload([]byte(testWebhookSecret), body, time.Now().UTC())
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, header)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var webhookResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&webhookResp))
	require.Equal(t, "ok", webhookResp["status"])

	stored, err := api.store.Orders().Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, stored.Status)

	// Повторная доставка того же события остаётся "ok" и ничего не меняет.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, payment.SignPayload([]byte(testWebhookSecret), body, time.Now().UTC()))
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookEndpoint_BadSignature(t *testing.T) {
	api := newTestAPI(t)

	body := []byte(`{"id":"evt-1","type":"payment_intent.succeeded","intent_id":"pi_1"}`)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong secret", header: payment.SignPayload([]byte("other"), body, time.Now().UTC())},
		{name: "garbage", header: "t=1,v1=zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			if tt.header != "" {
				req.Header.Set(SignatureHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "signature_invalid", decodeErrorCode(t, rec))
		})
	}
}

func TestWebhookEndpoint_UnknownIntent(t *testing.T) {
	api := newTestAPI(t)

	body := []byte(`{"id":"evt-9","type":"payment_intent.succeeded","intent_id":"pi_ghost"}`)
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, payment.SignPayload([]byte(testWebhookSecret), body, time.Now().UTC()))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "unknown_payment", resp["status"])
}

func TestPayEndpoint_DirectConfirm(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	w := api.do(t, http.MethodPost, "/payments/"+order.ID+"/create", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/orders/"+order.ID+"/pay", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "paid", resp.Status)
}

func TestCourierEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/couriers/", registerCourierRequest{
		UserID:        "courier-user-1",
		TransportType: "bike",
		IsVerified:    true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var courier courierResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&courier))
	require.True(t, courier.IsAvailable)

	w = api.do(t, http.MethodGet, "/couriers/available", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	lat, lon := 55.75, 37.61
	w = api.do(t, http.MethodPost, "/couriers/"+courier.ID+"/location", courierLocationRequest{
		Latitude: &lat, Longitude: &lon,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	offline := false
	w = api.do(t, http.MethodPost, "/couriers/"+courier.ID+"/availability", courierAvailabilityRequest{
		IsAvailable: &offline,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var updated courierResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	require.False(t, updated.IsAvailable)
}

func TestAssignEndpoint_AdminGuard(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	w := api.do(t, http.MethodPost, "/couriers/", registerCourierRequest{
		UserID: "courier-user-1", TransportType: "bike", IsVerified: true,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var courier courierResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&courier))

	assignPath := fmt.Sprintf("/deliveries/%s/assign", order.ID)

	// Без токена — 401.
	w = api.do(t, http.MethodPost, assignPath, assignDeliveryRequest{CourierID: courier.ID}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// С токеном — назначение проходит.
	w = api.do(t, http.MethodPost, assignPath, assignDeliveryRequest{CourierID: courier.ID}, map[string]string{
		"Authorization": "Bearer " + testAdminToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var delivery deliveryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&delivery))
	require.Equal(t, "assigned", delivery.Status)
	require.Equal(t, courier.ID, delivery.CourierID)
}

func TestDeliveryStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.seedVariant(t, "v1", 1000, 5)
	order := api.placeOrder(t, "v1", 1)

	w := api.do(t, http.MethodGet, "/deliveries/order/"+order.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Назад из pending некуда, неизвестный статус отклоняется.
	w = api.do(t, http.MethodPost, "/deliveries/"+order.ID+"/status", deliveryStatusRequest{
		Status: "teleported",
	}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "invalid_state", decodeErrorCode(t, w))
}

func TestAdminCatalogEndpoints(t *testing.T) {
	api := newTestAPI(t)
	adminHeaders := map[string]string{"Authorization": "Bearer " + testAdminToken}

	// Без токена вариант не создать.
	w := api.do(t, http.MethodPost, "/admin/variants", createVariantRequest{
		SKU: "tee-black-m", PriceMinor: 1000, Stock: 5,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/admin/variants", createVariantRequest{
		SKU: "tee-black-m", PriceMinor: 1000, Stock: 5,
	}, adminHeaders)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var variant variantResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&variant))

	w = api.do(t, http.MethodGet, "/variants/"+variant.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/admin/promos", createPromoRequest{
		Code: "SALE10", DiscountPercent: 10,
	}, adminHeaders)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Промокод сразу применяется на checkout: 10% от 3000.
	resp := api.doCheckoutWithPromo(t, variant.ID, 3, "SALE10")
	require.Equal(t, int64(2700), resp.TotalMinor)
	require.Equal(t, int64(300), resp.DiscountMinor)
}

func (a *testAPI) doCheckoutWithPromo(t *testing.T, variantID string, qty int32, promo string) orderResponse {
	t.Helper()

	w := a.do(t, http.MethodPost, "/orders/checkout", checkoutRequest{
		UserID:    "user-1",
		AddressID: "address-1",
		Currency:  "USD",
		PromoCode: promo,
		Items:     []checkoutItemRequest{{VariantID: variantID, Quantity: qty}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}
