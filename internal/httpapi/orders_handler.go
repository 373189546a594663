package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
)

type checkoutItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int32  `json:"quantity"`
}

type checkoutRequest struct {
	UserID    string                `json:"user_id"`
	AddressID string                `json:"address_id"`
	Currency  string                `json:"currency"`
	PromoCode string                `json:"promo_code"`
	Items     []checkoutItemRequest `json:"items"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	VariantID  string `json:"variant_id"`
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Status        string              `json:"status"`
	Currency      string              `json:"currency"`
	SubtotalMinor int64               `json:"subtotal_minor"`
	DiscountMinor int64               `json:"discount_minor"`
	TotalMinor    int64               `json:"total_minor"`
	PromoCode     string              `json:"promo_code,omitempty"`
	Items         []orderItemResponse `json:"items"`
	Delivery      *deliveryResponse   `json:"delivery,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(order domain.Order, delivery *domain.Delivery) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			VariantID:  item.VariantID,
			SKU:        item.SKU,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	resp := orderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		Currency:      order.Currency,
		SubtotalMinor: order.SubtotalMinor,
		DiscountMinor: order.DiscountMinor,
		TotalMinor:    order.TotalMinor,
		PromoCode:     order.PromoCode,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if delivery != nil {
		d := toDeliveryResponse(*delivery)
		resp.Delivery = &d
	}
	return resp
}

func (h *Handlers) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]checkout.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkout.ItemInput{
			VariantID: item.VariantID,
			Qty:       item.Quantity,
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	order, err := h.checkout.Checkout(checkout.Input{
		UserID:    req.UserID,
		Currency:  currency,
		AddressID: req.AddressID,
		PromoCode: req.PromoCode,
		Items:     items,
	})
	if err != nil {
		writeError(w, err, map[string]any{"user_id": req.UserID})
		return
	}

	h.cacheOrderStatus(order)

	var delivery *domain.Delivery
	if d, err := h.dispatch.GetByOrder(order.ID); err == nil {
		delivery = &d
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order, delivery))
}

func (h *Handlers) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.checkout.Get(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	h.cacheOrderStatus(order)

	var delivery *domain.Delivery
	if d, err := h.dispatch.GetByOrder(order.ID); err == nil {
		delivery = &d
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, delivery))
}

// handleGetOrderStatus отдаёт статус заказа через cache-aside: попадание в
// Redis не трогает основное хранилище.
func (h *Handlers) handleGetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if entry, ok := h.statusCache.Get(orderID); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"order_id":   orderID,
			"status":     entry.Status,
			"updated_at": entry.UpdatedAt,
			"cached":     true,
		})
		return
	}

	order, err := h.checkout.Get(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}
	h.cacheOrderStatus(order)

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":   order.ID,
		"status":     string(order.Status),
		"updated_at": order.UpdatedAt,
		"cached":     false,
	})
}

func (h *Handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeBadRequest(w, "user_id query parameter is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	orders, err := h.checkout.ListByUser(userID, limit)
	if err != nil {
		writeError(w, err, map[string]any{"user_id": userID})
		return
	}

	responses := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": responses})
}

// handlePayOrder — ручное подтверждение оплаты для демо-сценариев.
// Боевой путь оплаты идёт через webhook провайдера.
func (h *Handlers) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.payments.Confirm(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	h.cacheOrderStatus(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *Handlers) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.checkout.Cancel(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	h.cacheOrderStatus(order)
	h.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	}).Info("order cancelled via api")

	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *Handlers) cacheOrderStatus(order domain.Order) {
	h.statusCache.Set(order.ID, string(order.Status), order.UpdatedAt)
}
