package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type variantResponse struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	PriceMinor int64     `json:"price_minor"`
	Stock      int32     `json:"stock"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toVariantResponse(v domain.Variant) variantResponse {
	return variantResponse{
		ID:         v.ID,
		SKU:        v.SKU,
		PriceMinor: v.PriceMinor,
		Stock:      v.Stock,
		IsActive:   v.IsActive,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func (h *Handlers) handleListVariants(w http.ResponseWriter, _ *http.Request) {
	variants, err := h.variants.List()
	if err != nil {
		writeError(w, err, nil)
		return
	}

	responses := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		responses = append(responses, toVariantResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"variants": responses})
}

func (h *Handlers) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "id")

	variant, err := h.variants.Get(variantID)
	if err != nil {
		writeError(w, err, map[string]any{"variant_id": variantID})
		return
	}
	writeJSON(w, http.StatusOK, toVariantResponse(variant))
}

type createVariantRequest struct {
	SKU        string `json:"sku"`
	PriceMinor int64  `json:"price_minor"`
	Stock      int32  `json:"stock"`
	IsActive   *bool  `json:"is_active"`
}

func (h *Handlers) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	var req createVariantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SKU == "" {
		writeBadRequest(w, "sku is required")
		return
	}
	if req.PriceMinor < 0 {
		writeBadRequest(w, "price_minor must be non-negative")
		return
	}
	if req.Stock < 0 {
		writeBadRequest(w, "stock must be non-negative")
		return
	}

	now := h.now()
	variant := domain.Variant{
		ID:         uuid.NewString(),
		SKU:        req.SKU,
		PriceMinor: req.PriceMinor,
		Stock:      req.Stock,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.IsActive != nil {
		variant.IsActive = *req.IsActive
	}

	if err := h.variants.Create(variant); err != nil {
		writeError(w, err, map[string]any{"sku": req.SKU})
		return
	}
	writeJSON(w, http.StatusCreated, toVariantResponse(variant))
}

type createPromoRequest struct {
	Code                string     `json:"code"`
	DiscountPercent     int32      `json:"discount_percent"`
	DiscountAmountMinor int64      `json:"discount_amount_minor"`
	ValidFrom           *time.Time `json:"valid_from"`
	ValidTo             *time.Time `json:"valid_to"`
}

func (h *Handlers) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		writeBadRequest(w, "discount_percent must be within [0, 100]")
		return
	}
	if req.DiscountAmountMinor < 0 {
		writeBadRequest(w, "discount_amount_minor must be non-negative")
		return
	}
	if req.DiscountPercent == 0 && req.DiscountAmountMinor == 0 {
		writeBadRequest(w, "either discount_percent or discount_amount_minor is required")
		return
	}

	now := h.now()
	promo := domain.Promo{
		ID:                  uuid.NewString(),
		Code:                req.Code,
		DiscountPercent:     req.DiscountPercent,
		DiscountAmountMinor: req.DiscountAmountMinor,
		IsActive:            true,
		ValidFrom:           req.ValidFrom,
		ValidTo:             req.ValidTo,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := h.promos.Create(promo); err != nil {
		writeError(w, err, map[string]any{"code": req.Code})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":                    promo.ID,
		"code":                  promo.Code,
		"discount_percent":      promo.DiscountPercent,
		"discount_amount_minor": promo.DiscountAmountMinor,
		"is_active":             promo.IsActive,
		"valid_from":            promo.ValidFrom,
		"valid_to":              promo.ValidTo,
	})
}
