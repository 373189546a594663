package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type deliveryResponse struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	CourierID   string     `json:"courier_id,omitempty"`
	AddressID   string     `json:"address_id"`
	Status      string     `json:"status"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toDeliveryResponse(d domain.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:          d.ID,
		OrderID:     d.OrderID,
		CourierID:   d.CourierID,
		AddressID:   d.AddressID,
		Status:      string(d.Status),
		AssignedAt:  d.AssignedAt,
		DeliveredAt: d.DeliveredAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type assignDeliveryRequest struct {
	CourierID string `json:"courier_id"`
}

// handleAssignDelivery назначает курьера. Пустой courier_id запускает
// автоподбор первого свободного верифицированного курьера.
func (h *Handlers) handleAssignDelivery(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req assignDeliveryRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	var (
		delivery domain.Delivery
		err      error
	)
	if req.CourierID == "" {
		delivery, err = h.dispatch.AutoAssign(orderID)
	} else {
		delivery, err = h.dispatch.Assign(orderID, req.CourierID)
	}
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

type deliveryStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req deliveryStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}

	delivery, err := h.dispatch.UpdateStatus(orderID, domain.DeliveryStatus(req.Status))
	if err != nil {
		writeError(w, err, map[string]any{
			"order_id": orderID,
			"status":   req.Status,
		})
		return
	}

	// Этапы доставки двигают и заказ (picking, delivering, delivered); кэш
	// статуса не должен отдавать устаревшее.
	h.statusCache.Invalidate(orderID)

	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}

func (h *Handlers) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	delivery, err := h.dispatch.GetByOrder(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
}
