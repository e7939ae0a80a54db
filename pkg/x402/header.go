package x402

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNoPayment is returned when a request carries no payment header.
var ErrNoPayment = errors.New("x402: no payment header")

// EncodeHeader marshals v to JSON and encodes it as standard base64.
func EncodeHeader(v any) (string, error) {
	b, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeHeader decodes a base64 JSON header value into v. Standard, URL-safe
// and unpadded encodings are all accepted.
func DecodeHeader(s string, v any) error {
	raw, err := base64Decode(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if err := sonic.ConfigStd.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	return nil
}

func base64Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty value")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// PaymentHeader returns the raw proof from PAYMENT-SIGNATURE or, failing
// that, X-PAYMENT.
func PaymentHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	if v := strings.TrimSpace(h.Get(HeaderPaymentSignature)); v != "" {
		return v
	}
	return strings.TrimSpace(h.Get(HeaderPayment))
}

// ParsePayment decodes the payment proof carried by h.
func ParsePayment(h http.Header) (*PaymentPayload, error) {
	raw := PaymentHeader(h)
	if raw == "" {
		return nil, ErrNoPayment
	}
	var p PaymentPayload
	if err := DecodeHeader(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReceiptHeader returns the raw receipt from PAYMENT-RESPONSE or
// X-PAYMENT-RESPONSE.
func ReceiptHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	if v := strings.TrimSpace(h.Get(HeaderPaymentResponse)); v != "" {
		return v
	}
	return strings.TrimSpace(h.Get(HeaderXPaymentResponse))
}

// ReceiptFromResponse extracts the settlement receipt from a paid response.
func ReceiptFromResponse(resp *http.Response) (*SettleResponse, error) {
	if resp == nil {
		return nil, errors.New("x402: nil response")
	}
	raw := ReceiptHeader(resp.Header)
	if raw == "" {
		return nil, errors.New("x402: response carries no payment receipt")
	}
	var s SettleResponse
	if err := DecodeHeader(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ChallengeFromResponse extracts the 402 challenge from a response. The
// header is preferred; v1 servers send the challenge as the JSON body.
func ChallengeFromResponse(resp *http.Response, body []byte) (*PaymentRequired, error) {
	var pr PaymentRequired
	if raw := strings.TrimSpace(resp.Header.Get(HeaderPaymentRequired)); raw != "" {
		if err := DecodeHeader(raw, &pr); err != nil {
			return nil, err
		}
		return &pr, nil
	}
	if len(body) == 0 {
		return nil, errors.New("x402: 402 response carries no challenge")
	}
	if err := sonic.ConfigStd.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("parse challenge body: %w", err)
	}
	if len(pr.Accepts) == 0 {
		return nil, errors.New("x402: challenge lists no accepted payments")
	}
	return &pr, nil
}
