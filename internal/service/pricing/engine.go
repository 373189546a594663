package pricing

import (
	"errors"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Line — одна позиция корзины с зафиксированной ценой каталога.
type Line struct {
	VariantID  string
	SKU        string
	Qty        int32
	PriceMinor int64
}

// Quote — результат расчёта стоимости корзины.
type Quote struct {
	SubtotalMinor int64
	DiscountMinor int64
	TotalMinor    int64
	PromoCode     string
}

// Engine считает subtotal, скидку и итог корзины. Невалидный или неизвестный
// промокод — ошибка checkout, а не молчаливый пропуск скидки.
type Engine struct {
	promos domain.PromoRepository
	now    func() time.Time
}

// NewEngine создаёт расчётный движок поверх справочника промокодов.
func NewEngine(promos domain.PromoRepository) *Engine {
	return &Engine{
		promos: promos,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewEngineWithClock создаёт движок с фиксированными часами (для тестов).
func NewEngineWithClock(promos domain.PromoRepository, now func() time.Time) *Engine {
	e := NewEngine(promos)
	if now != nil {
		e.now = now
	}
	return e
}

// Price считает стоимость корзины. Пустой promoCode означает "без скидки".
func (e *Engine) Price(lines []Line, promoCode string) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, domain.ErrItemsRequired
	}

	var subtotal int64
	for _, line := range lines {
		if line.Qty <= 0 {
			return Quote{}, domain.ErrItemQtyInvalid
		}
		if line.PriceMinor < 0 {
			return Quote{}, domain.ErrItemPriceInvalid
		}
		subtotal += int64(line.Qty) * line.PriceMinor
	}

	quote := Quote{
		SubtotalMinor: subtotal,
		TotalMinor:    subtotal,
	}
	if promoCode == "" {
		return quote, nil
	}

	promo, err := e.promos.GetByCode(promoCode)
	if err != nil {
		if errors.Is(err, domain.ErrPromoNotFound) {
			return Quote{}, domain.ErrPromoNotFound
		}
		return Quote{}, err
	}
	if !promo.ValidAt(e.now()) {
		return Quote{}, domain.ErrPromoInvalid
	}

	quote.PromoCode = promo.Code
	quote.DiscountMinor = promo.DiscountFor(subtotal)
	quote.TotalMinor = subtotal - quote.DiscountMinor

	return quote, nil
}
