package domain

import "time"

// Variant — продаваемая единица каталога (SKU-уровень: размер/цвет).
// Поле Stock мутируется только складским леджером внутри той же транзакции,
// что и запись заказа; инвариант Stock >= 0 держит хранилище.
type Variant struct {
	ID         string
	SKU        string
	PriceMinor int64
	Stock      int32
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sellable сообщает, доступен ли вариант для оформления. Остаток здесь не
// проверяется: нехватку стока различает условный резерв в хранилище.
func (v *Variant) Sellable() bool {
	return v.IsActive
}
