package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка пустой корзины при оформлении заказа.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия итоговой суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = errors.New("address_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVariantNotFound возвращается, если вариант товара не найден.
	ErrVariantNotFound = errors.New("product variant not found")
	// ErrVariantInactive — вариант существует, но снят с продажи.
	ErrVariantInactive = errors.New("product variant is inactive")
	// ErrPromoNotFound возвращается, если промокод не найден.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoInvalid — промокод неактивен или вне окна действия.
	ErrPromoInvalid = errors.New("promo code is not valid")
	// ErrCourierNotFound возвращается, если курьер не найден.
	ErrCourierNotFound = errors.New("courier not found")
	// ErrDeliveryNotFound возвращается, если доставка не найдена.
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInsufficientStock — остатка недостаточно для резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidState — операция недопустима для текущего статуса заказа/доставки.
	ErrInvalidState = errors.New("operation is not valid for current state")
	// ErrCourierUnavailable — курьер занят, не верифицирован или уже забран конкурентом.
	ErrCourierUnavailable = errors.New("courier is not available")
	// ErrPaymentProvider — внешний платёжный провайдер недоступен или отклонил запрос.
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrSignatureInvalid — подпись webhook не прошла проверку.
	ErrSignatureInvalid = errors.New("webhook signature is invalid")

	// ErrVersionConflict сигнализирует о конфликте версий при optimistic locking.
	ErrVersionConflict = errors.New("version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound проверяет, относится ли ошибка к семейству "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrPromoNotFound) ||
		errors.Is(err, ErrCourierNotFound) ||
		errors.Is(err, ErrDeliveryNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
