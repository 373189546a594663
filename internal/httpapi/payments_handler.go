package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
)

// SignatureHeader — заголовок с подписью webhook-события провайдера.
const SignatureHeader = "X-Webhook-Signature"

type paymentResponse struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	ProviderIntentID string    `json:"provider_intent_id,omitempty"`
	AmountMinor      int64     `json:"amount_minor"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	Succeeded        bool      `json:"succeeded"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		ProviderIntentID: p.ProviderIntentID,
		AmountMinor:      p.AmountMinor,
		Currency:         p.Currency,
		Status:           p.Status,
		Succeeded:        p.Succeeded,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (h *Handlers) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	intent, err := h.payments.CreateIntent(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id":    intent.ID,
		"intent_id":     intent.ProviderIntentID,
		"client_secret": intent.ClientSecret,
		"amount_minor":  intent.AmountMinor,
		"currency":      intent.Currency,
		"status":        intent.Status,
	})
}

func (h *Handlers) handleListPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	payments, err := h.payments.ListByOrder(orderID)
	if err != nil {
		writeError(w, err, map[string]any{"order_id": orderID})
		return
	}

	responses := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": responses})
}

// webhookEvent — формат события платёжного провайдера.
type webhookEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
}

// handleWebhook верифицирует подпись по сырому телу запроса до любого
// парсинга; отказ подписи — security-событие, а не обычная 4xx.
func (h *Handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "unreadable request body")
		return
	}

	header := r.Header.Get(SignatureHeader)
	if err := payment.VerifySignature(h.webhookSecret, header, body, h.now()); err != nil {
		h.logger.WithFields(log.Fields{
			"remote_addr": r.RemoteAddr,
			"has_header":  header != "",
		}).Warn("webhook signature rejected")
		writeError(w, err, nil)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeBadRequest(w, "malformed event payload")
		return
	}

	res, err := h.payments.HandleEvent(domain.PaymentEvent{
		ID:       event.ID,
		Type:     domain.PaymentEventType(event.Type),
		IntentID: event.IntentID,
	})
	if err != nil {
		writeError(w, err, map[string]any{"event_id": event.ID})
		return
	}

	// Оплата двигает заказ; кэш статуса не должен отдавать pending_payment.
	if res.Outcome == payment.OutcomePaid && res.OrderID != "" {
		h.statusCache.Invalidate(res.OrderID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": webhookStatus(res.Outcome)})
}

// webhookStatus сворачивает внутренний исход обработки в ответ провайдеру.
func webhookStatus(outcome string) string {
	switch outcome {
	case payment.OutcomeUnknownIntent:
		return "unknown_payment"
	case payment.OutcomeIgnored:
		return "ignored"
	default:
		return "ok"
	}
}
