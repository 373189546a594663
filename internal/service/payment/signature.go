package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// defaultSignatureTolerance ограничивает возраст подписи для защиты от replay.
const defaultSignatureTolerance = 5 * time.Minute

// SignPayload формирует заголовок подписи в формате `t=<unix>,v1=<hex>`.
// Подписывается строка `<unix>.<raw body>`.
func SignPayload(secret []byte, body []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unix))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature проверяет подпись webhook по сырому телу запроса. Сравнение
// digest выполняется в константное время.
func VerifySignature(secret []byte, header string, body []byte, now time.Time) error {
	return verifySignature(secret, header, body, now, defaultSignatureTolerance)
}

func verifySignature(secret []byte, header string, body []byte, now time.Time, tolerance time.Duration) error {
	if len(secret) == 0 || header == "" {
		return domain.ErrSignatureInvalid
	}

	var ts, digest string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return domain.ErrSignatureInvalid
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			digest = value
		}
	}
	if ts == "" || digest == "" {
		return domain.ErrSignatureInvalid
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	signedAt := time.Unix(unix, 0)
	if tolerance > 0 {
		age := now.Sub(signedAt)
		if age < 0 {
			age = -age
		}
		if age > tolerance {
			return domain.ErrSignatureInvalid
		}
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := mac.Sum(nil)

	got, err := hex.DecodeString(digest)
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	if !hmac.Equal(want, got) {
		return domain.ErrSignatureInvalid
	}

	return nil
}
