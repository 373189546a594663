package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type registerCourierRequest struct {
	UserID        string `json:"user_id"`
	TransportType string `json:"transport_type"`
	IsVerified    bool   `json:"is_verified"`
}

type courierResponse struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	TransportType       string    `json:"transport_type"`
	IsAvailable         bool      `json:"is_available"`
	IsVerified          bool      `json:"is_verified"`
	Status              string    `json:"status"`
	Rating              float64   `json:"rating"`
	CompletedDeliveries int32     `json:"completed_deliveries"`
	Latitude            *float64  `json:"latitude,omitempty"`
	Longitude           *float64  `json:"longitude,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toCourierResponse(c domain.Courier) courierResponse {
	return courierResponse{
		ID:                  c.ID,
		UserID:              c.UserID,
		TransportType:       string(c.TransportType),
		IsAvailable:         c.IsAvailable,
		IsVerified:          c.IsVerified,
		Status:              string(c.Status),
		Rating:              c.Rating,
		CompletedDeliveries: c.CompletedDeliveries,
		Latitude:            c.Latitude,
		Longitude:           c.Longitude,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func (h *Handlers) handleRegisterCourier(w http.ResponseWriter, r *http.Request) {
	var req registerCourierRequest
	if !decodeBody(w, r, &req) {
		return
	}

	courier, err := h.dispatch.RegisterCourier(domain.Courier{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		TransportType: domain.TransportType(req.TransportType),
		IsAvailable:   true,
		IsVerified:    req.IsVerified,
	})
	if err != nil {
		writeError(w, err, map[string]any{"user_id": req.UserID})
		return
	}

	writeJSON(w, http.StatusCreated, toCourierResponse(courier))
}

func (h *Handlers) handleGetCourier(w http.ResponseWriter, r *http.Request) {
	courierID := chi.URLParam(r, "id")

	courier, err := h.dispatch.GetCourier(courierID)
	if err != nil {
		writeError(w, err, map[string]any{"courier_id": courierID})
		return
	}
	writeJSON(w, http.StatusOK, toCourierResponse(courier))
}

func (h *Handlers) handleAvailableCouriers(w http.ResponseWriter, _ *http.Request) {
	couriers, err := h.dispatch.ListAvailableCouriers()
	if err != nil {
		writeError(w, err, nil)
		return
	}

	responses := make([]courierResponse, 0, len(couriers))
	for _, c := range couriers {
		responses = append(responses, toCourierResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"couriers": responses})
}

type courierLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handlers) handleCourierLocation(w http.ResponseWriter, r *http.Request) {
	courierID := chi.URLParam(r, "id")

	var req courierLocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeBadRequest(w, "latitude and longitude are required")
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		writeBadRequest(w, "coordinates are out of range")
		return
	}

	courier, err := h.dispatch.UpdateCourierLocation(courierID, *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, err, map[string]any{"courier_id": courierID})
		return
	}
	writeJSON(w, http.StatusOK, toCourierResponse(courier))
}

// courierAvailabilityRequest — явный набор изменяемых полей, nil не трогает поле.
type courierAvailabilityRequest struct {
	IsAvailable *bool   `json:"is_available"`
	Status      *string `json:"status"`
}

func (h *Handlers) handleCourierAvailability(w http.ResponseWriter, r *http.Request) {
	courierID := chi.URLParam(r, "id")

	var req courierAvailabilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsAvailable == nil && req.Status == nil {
		writeBadRequest(w, "at least one of is_available, status is required")
		return
	}

	upd := domain.CourierUpdate{IsAvailable: req.IsAvailable}
	if req.Status != nil {
		status := domain.CourierStatus(*req.Status)
		upd.Status = &status
	}

	courier, err := h.dispatch.UpdateCourier(courierID, upd)
	if err != nil {
		writeError(w, err, map[string]any{"courier_id": courierID})
		return
	}
	writeJSON(w, http.StatusOK, toCourierResponse(courier))
}
