package domain

import "time"

// PaymentStatus хранится строкой: провайдер может присылать статусы, которых
// мы не знаем заранее, и терять их при маппинге нельзя.
const (
	// PaymentStatusCreated — локальная запись создана, intent ещё не запрошен.
	PaymentStatusCreated = "created"
	// PaymentStatusRequiresPayment — intent создан, ждём подтверждения клиента.
	PaymentStatusRequiresPayment = "requires_payment_method"
	// PaymentStatusSucceeded — провайдер подтвердил списание.
	PaymentStatusSucceeded = "succeeded"
	// PaymentStatusFailed — intent не создан или отклонён.
	PaymentStatusFailed = "failed"
)

// Payment — локальная запись попытки оплаты заказа. На заказ может
// приходиться несколько платежей (retry); авторитетен последний succeeded.
type Payment struct {
	ID               string
	OrderID          string
	ProviderIntentID string // пусто, пока провайдер не вернул intent
	AmountMinor      int64
	Currency         string
	Status           string
	Succeeded        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderNotFound)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrItemPriceInvalid)
	}

	return errs
}

// PaymentEventType — тип события платёжного провайдера.
type PaymentEventType string

const (
	// PaymentEventSucceeded — провайдер подтвердил успешное списание.
	PaymentEventSucceeded PaymentEventType = "payment_intent.succeeded"
	// PaymentEventFailed — провайдер сообщил о неуспехе платежа.
	PaymentEventFailed PaymentEventType = "payment_intent.payment_failed"
)

// PaymentEvent — верифицированное событие провайдера, поступившее через webhook.
// Сигнатура уже проверена до того, как событие попадает в бизнес-логику.
type PaymentEvent struct {
	ID       string
	Type     PaymentEventType
	IntentID string
}
