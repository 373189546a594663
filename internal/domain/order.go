package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на маркетплейсе.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, но резервирование ещё не выполнено.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPendingPayment — сток зарезервирован, ожидаем оплату.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	// OrderStatusPaid — оплата подтверждена платёжным провайдером.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProcessing — заказ собирается к отгрузке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до оплаты, резерв возвращён.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги возвращены клиенту.
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderTransitions — единственная таблица допустимых переходов статуса заказа.
// Любой мутатор обязан сверяться с ней, а не сравнивать строки ad hoc.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:        {OrderStatusPendingPayment, OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusProcessing, OrderStatusRefunded},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:        {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

// CanTransition сообщает, допустим ли переход из текущего статуса в next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderItem представляет одну позицию заказа. Цена фиксируется в момент
// оформления (snapshot), а не берётся из каталога повторно.
type OrderItem struct {
	ID         string
	VariantID  string
	SKU        string
	Qty        int32
	PriceMinor int64
	CreatedAt  time.Time
}

// Order агрегирует состояние заказа, его позиции и доставку.
type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	Currency      string
	SubtotalMinor int64
	DiscountMinor int64
	TotalMinor    int64
	PromoCode     string
	Items         []OrderItem
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition переводит заказ в next, отклоняя недопустимые переходы.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransition(next) {
		return ErrInvalidState
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем subtotal с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	// Итог не может быть отрицательным и равен subtotal минус скидка (с clamp в нуле).
	want := o.SubtotalMinor - o.DiscountMinor
	if want < 0 {
		want = 0
	}
	if o.TotalMinor != want || o.TotalMinor < 0 {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
