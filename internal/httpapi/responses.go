package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// errorBody — единый формат ошибки API. Наружу уходит машинный код и
// человекочитаемая причина, но никогда stack trace.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Detail  string         `json:"detail"`
	Context map[string]any `json:"context,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, err error, ctx map[string]any) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("internal api error")
		// Детали внутренних ошибок наружу не отдаём.
		writeJSON(w, status, errorBody{Error: errorDetail{
			Code:   code,
			Detail: "internal error",
		}})
		return
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Detail:  err.Error(),
		Context: ctx,
	}})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:   "invalid_request",
		Detail: detail,
	}})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, domain.ErrPromoInvalid):
		return http.StatusBadRequest, "promo_invalid"
	case errors.Is(err, domain.ErrVariantInactive):
		return http.StatusBadRequest, "variant_inactive"
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusBadRequest, "signature_invalid"
	case errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrCurrencyRequired),
		errors.Is(err, domain.ErrAddressRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, domain.ErrVariantNotFound):
		return http.StatusNotFound, "variant_not_found"
	case errors.Is(err, domain.ErrPromoNotFound):
		return http.StatusNotFound, "promo_not_found"
	case errors.Is(err, domain.ErrCourierNotFound):
		return http.StatusNotFound, "courier_not_found"
	case errors.Is(err, domain.ErrDeliveryNotFound):
		return http.StatusNotFound, "delivery_not_found"
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, "payment_not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrCourierUnavailable):
		return http.StatusConflict, "courier_unavailable"
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, domain.ErrPaymentProvider):
		return http.StatusBadGateway, "payment_provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "malformed request body")
		return false
	}
	return true
}
