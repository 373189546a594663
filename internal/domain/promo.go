package domain

import "time"

// Promo — правило скидки, применяемое к subtotal корзины при оформлении.
// Процент и фиксированная сумма взаимоисключающие: процент имеет приоритет.
// Checkout читает промокоды и никогда их не мутирует.
type Promo struct {
	ID                  string
	Code                string
	DiscountPercent     int32
	DiscountAmountMinor int64
	IsActive            bool
	ValidFrom           *time.Time
	ValidTo             *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ValidAt проверяет активность промокода и его окно действия на момент now.
func (p *Promo) ValidAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return false
	}
	return true
}

// DiscountFor считает скидку в минорных единицах для данного subtotal.
// Скидка никогда не превышает subtotal.
func (p *Promo) DiscountFor(subtotalMinor int64) int64 {
	var discount int64
	if p.DiscountPercent > 0 {
		discount = subtotalMinor * int64(p.DiscountPercent) / 100
	} else {
		discount = p.DiscountAmountMinor
	}
	if discount > subtotalMinor {
		discount = subtotalMinor
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
