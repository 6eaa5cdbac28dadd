package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// IdempotencyKeyHeader carries the per-attempt key to the gateway.
const IdempotencyKeyHeader = "Idempotency-Key"

var chargeEndpoints = map[string]string{
	"card":       "/api/payments/viva/charge",
	"apple_pay":  "/api/payments/apple-pay",
	"google_pay": "/api/payments/google-pay",
}

// PaymentOrderRequest asks the gateway for a hosted payment order.
type PaymentOrderRequest struct {
	Amount         int64  `json:"amount"` // minor units of Currency
	Currency       string `json:"currency"`
	MerchantTrns   string `json:"merchantTrns,omitempty"`
	Locale         string `json:"locale,omitempty"`
	PaymentTimeout int    `json:"paymentTimeout"` // seconds until the hosted order expires
}

type paymentOrderData struct {
	OrderCode string `json:"orderCode" validate:"required,max=64"`
}

// ChargeResult is the gateway's answer to a charge. Success without a
// transaction ID is rejected as a malformed envelope.
type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PaymentGateway talks to the backend payment API.
type PaymentGateway struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
}

// NewPaymentGateway creates a gateway client. timeout bounds each call; the
// caller's context may be shorter.
func NewPaymentGateway(baseURL string, timeout time.Duration) *PaymentGateway {
	return &PaymentGateway{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

// CreatePaymentOrder registers a hosted payment order and returns its code.
func (g *PaymentGateway) CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (string, error) {
	raw, err := fetch(ctx, g.client, http.MethodPost, g.baseURL+"/api/payments/orders", nil, req)
	if err != nil {
		return "", fmt.Errorf("create payment order: %w", err)
	}
	data, err := decodeEnvelope[paymentOrderData](raw)
	if err != nil {
		return "", fmt.Errorf("create payment order: %w", err)
	}
	if err := g.validate.Struct(data); err != nil {
		return "", fmt.Errorf("create payment order: %w: %v", ErrUpstreamEnvelope, err)
	}
	return data.OrderCode, nil
}

// ChargeEndpoint returns the gateway path for a payment method.
func ChargeEndpoint(method string) (string, bool) {
	path, ok := chargeEndpoints[method]
	return path, ok
}

// Charge posts payload once to the method's endpoint. A declined payment is a
// result with Success false, not an error; errors mean the outcome is unknown
// or the response was unusable.
func (g *PaymentGateway) Charge(ctx context.Context, method, idempotencyKey string, payload interface{}) (*ChargeResult, error) {
	path, ok := ChargeEndpoint(method)
	if !ok {
		return nil, fmt.Errorf("unsupported payment method %q", method)
	}
	headers := map[string]string{IdempotencyKeyHeader: idempotencyKey}

	raw, err := fetch(ctx, g.client, http.MethodPost, g.baseURL+path, headers, payload)
	var statusErr *StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return nil, fmt.Errorf("charge %s: %w", method, err)
	}

	var result ChargeResult
	if jsonErr := json.Unmarshal(raw, &result); jsonErr != nil {
		if statusErr != nil {
			return nil, fmt.Errorf("charge %s: %w", method, statusErr)
		}
		return nil, fmt.Errorf("charge %s: %w: %v", method, ErrUpstreamEnvelope, jsonErr)
	}
	if result.Success && result.TransactionID == "" {
		return nil, fmt.Errorf("charge %s: %w: success without transactionId", method, ErrUpstreamEnvelope)
	}
	if !result.Success && result.Error == "" {
		result.Error = "Payment was declined"
		if statusErr != nil {
			result.Error = fmt.Sprintf("Payment failed (status %d)", statusErr.Status)
		}
	}
	return &result, nil
}
