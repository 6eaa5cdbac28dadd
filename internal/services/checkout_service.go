package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/clients"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/currency"
	"storefront/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the backend payment API. *clients.PaymentGateway implements it.
type PaymentGateway interface {
	CreatePaymentOrder(ctx context.Context, req clients.PaymentOrderRequest) (string, error)
	Charge(ctx context.Context, method, idempotencyKey string, payload interface{}) (*clients.ChargeResult, error)
}

// PaymentConfig carries the provider settings that decide which methods are offered.
type PaymentConfig struct {
	PublicKey           string
	SourceCode          string
	ApplePayMerchantID  string
	GooglePayMerchantID string
	HostedCheckoutURL   string
	FallbackCheckoutURL string
	SessionTTL          time.Duration
	RequestTimeout      time.Duration
}

// Capabilities are what the shopper's device reported it can do.
type Capabilities struct {
	ApplePay  bool
	GooglePay bool
}

// MethodOption is an offered payment method with the public settings its SDK needs.
type MethodOption struct {
	Method     PaymentMethod `json:"method"`
	PublicKey  string        `json:"publicKey,omitempty"`
	SourceCode string        `json:"sourceCode,omitempty"`
	MerchantID string        `json:"merchantId,omitempty"`
}

// Address is a postal address on an order.
type Address struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=200"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	City       string `json:"city" validate:"required,max=100"`
	Country    string `json:"country" validate:"required,len=2,alpha"`
}

// Session is one checkout in progress.
type Session struct {
	ID          string         `json:"id"`
	CartID      string         `json:"cartId"`
	UserID      string         `json:"-"`
	Locale      string         `json:"locale"`
	Currency    string         `json:"currency"`
	Amount      Money          `json:"amount"`
	OrderCode   string         `json:"orderCode"`
	State       CheckoutState  `json:"state"`
	Methods     []MethodOption `json:"methods"`
	FallbackURL string         `json:"fallbackUrl"`
	LastError   string         `json:"lastError,omitempty"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	CreatedAt   time.Time      `json:"createdAt"`

	rate      decimal.Decimal
	baseTotal decimal.Decimal
}

func (s *Session) offers(m PaymentMethod) bool {
	for _, opt := range s.Methods {
		if opt.Method == m {
			return true
		}
	}
	return false
}

func (s *Session) transition(next CheckoutState) error {
	if !s.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, next)
	}
	s.State = next
	return nil
}

// SubmitRequest is one click on "place order". PaymentToken comes from the
// hosted card fields; PaymentData is the wallet's signed blob.
type SubmitRequest struct {
	SessionID       string
	Method          PaymentMethod
	PaymentToken    string
	PaymentData     string
	Installments    int
	ShippingAddress Address
	BillingAddress  *Address
	IdempotencyKey  string
}

// OrderPayload is posted to the gateway, rebuilt for every attempt.
type OrderPayload struct {
	OrderCode       string             `json:"orderCode"`
	Items           []models.OrderItem `json:"items"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Shipping        decimal.Decimal    `json:"shipping"`
	Discount        decimal.Decimal    `json:"discount"`
	DiscountCode    string             `json:"discountCode,omitempty"`
	Total           decimal.Decimal    `json:"total"`
	Amount          int64              `json:"amount"`
	Currency        string             `json:"currency"`
	ShippingAddress Address            `json:"shippingAddress"`
	BillingAddress  Address            `json:"billingAddress"`
	PaymentToken    string             `json:"paymentToken,omitempty"`
	PaymentData     string             `json:"paymentData,omitempty"`
	Installments    int                `json:"installments,omitempty"`
}

// SubmitResult is the outcome of a submission. FallbackURL is always set.
type SubmitResult struct {
	SessionID      string                  `json:"sessionId"`
	State          CheckoutState           `json:"state"`
	Success        bool                    `json:"success"`
	TransactionID  string                  `json:"transactionId,omitempty"`
	OrderCode      string                  `json:"orderCode"`
	Error          string                  `json:"error,omitempty"`
	FallbackURL    string                  `json:"fallbackUrl"`
	IdempotencyKey string                  `json:"idempotencyKey"`
	Replayed       bool                    `json:"replayed,omitempty"`
	Order          *models.CheckoutAttempt `json:"order,omitempty"`
}

// FallbackError wraps a checkout failure with the hosted checkout link the
// shopper can use instead.
type FallbackError struct {
	Err         error
	FallbackURL string
}

func (e *FallbackError) Error() string { return e.Err.Error() }
func (e *FallbackError) Unwrap() error { return e.Err }

// CheckoutService drives the checkout state machine.
type CheckoutService struct {
	carts    *CartService
	orders   repositories.OrderRepository
	gateway  PaymentGateway
	resolver *currency.Resolver
	cfg      PaymentConfig
	events   EventPublisher
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCheckoutService wires a CheckoutService. events and m may be nil.
func NewCheckoutService(
	carts *CartService,
	orders repositories.OrderRepository,
	gateway PaymentGateway,
	resolver *currency.Resolver,
	cfg PaymentConfig,
	events EventPublisher,
	m *metrics.Metrics,
) *CheckoutService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1800 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		gateway:  gateway,
		resolver: resolver,
		cfg:      cfg,
		events:   events,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// AvailableMethods lists the methods that are configured and, for wallets,
// supported by the device. Anything else is left out entirely.
func (s *CheckoutService) AvailableMethods(caps Capabilities) []MethodOption {
	methods := make([]MethodOption, 0, 3)
	if s.cfg.PublicKey != "" && s.cfg.SourceCode != "" {
		methods = append(methods, MethodOption{Method: MethodCard, PublicKey: s.cfg.PublicKey, SourceCode: s.cfg.SourceCode})
	}
	if s.cfg.ApplePayMerchantID != "" && caps.ApplePay {
		methods = append(methods, MethodOption{Method: MethodApplePay, MerchantID: s.cfg.ApplePayMerchantID})
	}
	if s.cfg.GooglePayMerchantID != "" && caps.GooglePay {
		methods = append(methods, MethodOption{Method: MethodGooglePay, MerchantID: s.cfg.GooglePayMerchantID})
	}
	return methods
}

// FallbackURL is the hosted checkout page for orderCode, or the generic one.
func (s *CheckoutService) FallbackURL(orderCode string) string {
	if orderCode == "" || s.cfg.HostedCheckoutURL == "" {
		return s.cfg.FallbackCheckoutURL
	}
	return s.cfg.HostedCheckoutURL + "?ref=" + url.QueryEscape(orderCode)
}

// Begin opens a session for the cart: creates the hosted payment order and
// moves the session to collecting_payment_method.
func (s *CheckoutService) Begin(ctx context.Context, cartID, userID, locale string, caps Capabilities) (*Session, error) {
	snap, err := s.carts.Get(ctx, cartID, locale)
	if err != nil {
		return nil, err
	}
	if snap.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	code := snap.Display.Currency
	rate, err := s.resolver.Rate(code)
	if err != nil {
		return nil, err
	}

	amount := currency.ConvertWithRate(snap.Totals.Total, rate, code)

	orderCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	orderCode, err := s.gateway.CreatePaymentOrder(orderCtx, clients.PaymentOrderRequest{
		Amount:         currency.ToMinorUnits(amount, code),
		Currency:       code,
		MerchantTrns:   cartID,
		Locale:         snap.Display.Locale,
		PaymentTimeout: int(s.cfg.SessionTTL / time.Second),
	})
	if err != nil {
		log.Printf("Error creating payment order for cart %s: %v", cartID, err)
		return nil, &FallbackError{
			Err:         fmt.Errorf("%w: %v", ErrGatewayUnavailable, err),
			FallbackURL: s.cfg.FallbackCheckoutURL,
		}
	}

	now := s.now()
	session := &Session{
		ID:          uuid.New().String(),
		CartID:      cartID,
		UserID:      userID,
		Locale:      snap.Display.Locale,
		Currency:    code,
		Amount:      Money{Amount: amount, Formatted: currency.Format(amount, code)},
		OrderCode:   orderCode,
		State:       StateIdle,
		Methods:     s.AvailableMethods(caps),
		FallbackURL: s.FallbackURL(orderCode),
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
		CreatedAt:   now,
		rate:        rate,
		baseTotal:   snap.Totals.Total,
	}
	if err := session.transition(StateCollecting); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[session.ID] = session
	out := *session
	s.mu.Unlock()

	log.Printf("Checkout session %s opened for cart %s (order %s, %d methods)", session.ID, cartID, orderCode, len(session.Methods))
	return &out, nil
}

// GetSession returns a copy of the session.
func (s *CheckoutService) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	out := *session
	return &out, nil
}

// Submit charges the session once. A replayed idempotency key returns the
// recorded outcome without contacting the gateway again.
func (s *CheckoutService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	if prior, err := s.orders.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return s.replay(prior)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}

	session, err := s.beginSubmit(req)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.Load(ctx, session.CartID)
	if err != nil {
		s.finish(session.ID, StateFailed, err.Error())
		return nil, err
	}
	if c.IsEmpty() {
		s.finish(session.ID, StateFailed, ErrEmptyCart.Error())
		return nil, &FallbackError{Err: ErrEmptyCart, FallbackURL: session.FallbackURL}
	}
	totals := cart.Compute(c, s.carts.Policy())
	if !totals.Total.Equal(session.baseTotal) {
		s.finish(session.ID, StateFailed, ErrCartChanged.Error())
		return nil, &FallbackError{Err: ErrCartChanged, FallbackURL: session.FallbackURL}
	}

	payload := s.buildPayload(session, c, totals, req)
	attempt := &models.CheckoutAttempt{
		IdempotencyKey: req.IdempotencyKey,
		SessionID:      session.ID,
		CartID:         session.CartID,
		UserID:         session.UserID,
		OrderCode:      session.OrderCode,
		Method:         string(req.Method),
		Status:         models.AttemptSubmitting,
		Items:          payload.Items,
		Subtotal:       payload.Subtotal,
		Shipping:       payload.Shipping,
		Discount:       payload.Discount,
		Total:          payload.Total,
		Currency:       payload.Currency,
	}
	if err := s.orders.Create(ctx, attempt); err != nil {
		s.finish(session.ID, StateFailed, "")
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrSubmissionInProgress
		}
		return nil, fmt.Errorf("failed to record checkout attempt: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	start := s.now()
	charge, chargeErr := s.gateway.Charge(chargeCtx, string(req.Method), req.IdempotencyKey, payload)
	s.observeCharge(req.Method, start, charge, chargeErr)

	result := &SubmitResult{
		SessionID:      session.ID,
		OrderCode:      session.OrderCode,
		FallbackURL:    session.FallbackURL,
		IdempotencyKey: req.IdempotencyKey,
	}

	if chargeErr != nil || !charge.Success {
		msg := "Payment could not be completed. You can finish your order on the secure payment page."
		if chargeErr != nil {
			log.Printf("Error charging session %s (%s): %v", session.ID, req.Method, chargeErr)
		} else {
			msg = charge.Error
		}
		attempt.Status = models.AttemptFailed
		attempt.ErrorMessage = msg
		if err := s.orders.Update(ctx, attempt); err != nil {
			log.Printf("Error recording failed attempt %s: %v", attempt.IdempotencyKey, err)
		}
		s.finish(session.ID, StateFailed, msg)
		result.State = StateFailed
		result.Error = msg
		return result, nil
	}

	attempt.Status = models.AttemptSucceeded
	attempt.TransactionID = charge.TransactionID
	if err := s.orders.Update(ctx, attempt); err != nil {
		log.Printf("Error recording succeeded attempt %s: %v", attempt.IdempotencyKey, err)
	}
	s.finish(session.ID, StateSucceeded, "")

	if _, err := s.carts.Settle(ctx, session.CartID, c.Version, c.Items, session.Locale); err != nil {
		log.Printf("Error clearing cart %s after order %s: %v", session.CartID, session.OrderCode, err)
	}
	publish(s.events, EventOrderPlaced, attempt)

	result.State = StateSucceeded
	result.Success = true
	result.TransactionID = charge.TransactionID
	result.Order = attempt
	return result, nil
}

// beginSubmit validates the request against the session and moves it to
// submitting. It returns a copy.
func (s *CheckoutService) beginSubmit(req SubmitRequest) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lookupLocked(req.SessionID)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case StateSucceeded:
		return nil, ErrSessionCompleted
	case StateSubmitting:
		return nil, ErrSubmissionInProgress
	}
	if !session.offers(req.Method) {
		return nil, &FallbackError{Err: fmt.Errorf("%w: %s", ErrMethodUnavailable, req.Method), FallbackURL: session.FallbackURL}
	}
	switch req.Method {
	case MethodCard:
		if req.PaymentToken == "" {
			return nil, ErrMissingPaymentToken
		}
	default:
		if req.PaymentData == "" {
			return nil, ErrMissingPaymentToken
		}
	}
	if err := session.transition(StateSubmitting); err != nil {
		return nil, err
	}
	session.LastError = ""
	out := *session
	return &out, nil
}

func (s *CheckoutService) finish(id string, state CheckoutState, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return
	}
	if err := session.transition(state); err != nil {
		log.Printf("checkout session %s: %v", id, err)
		return
	}
	session.LastError = msg
}

func (s *CheckoutService) lookupLocked(id string) (*Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !session.State.IsTerminal() && s.now().After(session.ExpiresAt) {
		delete(s.sessions, id)
		return nil, &FallbackError{Err: ErrSessionExpired, FallbackURL: s.cfg.FallbackCheckoutURL}
	}
	return session, nil
}

// sweepLocked drops expired sessions.
func (s *CheckoutService) sweepLocked(now time.Time) {
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

func (s *CheckoutService) replay(prior *models.CheckoutAttempt) (*SubmitResult, error) {
	if prior.Status == models.AttemptSubmitting {
		return nil, ErrSubmissionInProgress
	}
	result := &SubmitResult{
		SessionID:      prior.SessionID,
		OrderCode:      prior.OrderCode,
		FallbackURL:    s.FallbackURL(prior.OrderCode),
		IdempotencyKey: prior.IdempotencyKey,
		Replayed:       true,
	}
	if prior.Status == models.AttemptSucceeded {
		result.State = StateSucceeded
		result.Success = true
		result.TransactionID = prior.TransactionID
		result.Order = prior
	} else {
		result.State = StateFailed
		result.Error = prior.ErrorMessage
	}
	return result, nil
}

func (s *CheckoutService) buildPayload(session *Session, c cart.Cart, totals cart.Totals, req SubmitRequest) OrderPayload {
	convert := func(d decimal.Decimal) decimal.Decimal {
		return currency.ConvertWithRate(d, session.rate, session.Currency)
	}

	items := make([]models.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Product.Name,
			Quantity:  it.Quantity,
			UnitPrice: convert(it.UnitPrice),
		})
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	p := OrderPayload{
		OrderCode:       session.OrderCode,
		Items:           items,
		Subtotal:        convert(totals.Subtotal),
		Shipping:        convert(totals.Shipping),
		Discount:        convert(totals.Discount),
		Total:           convert(totals.Total),
		Currency:        session.Currency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Installments:    req.Installments,
	}
	p.Amount = currency.ToMinorUnits(p.Total, p.Currency)
	if c.Discount != nil {
		p.DiscountCode = c.Discount.Code
	}
	if req.Method == MethodCard {
		p.PaymentToken = req.PaymentToken
	} else {
		p.PaymentData = req.PaymentData
	}
	return p
}

func (s *CheckoutService) observeCharge(method PaymentMethod, start time.Time, charge *clients.ChargeResult, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "succeeded"
	switch {
	case err != nil:
		outcome = "error"
	case !charge.Success:
		outcome = "declined"
	}
	s.metrics.CheckoutAttempts.WithLabelValues(string(method), outcome).Inc()
	s.metrics.CheckoutLatencyMS.WithLabelValues(string(method)).Observe(float64(s.now().Sub(start).Milliseconds()))
}

// ListOrders returns the customer's completed orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]models.CheckoutAttempt, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", userID, err)
	}
	return orders, nil
}

// GetOrder returns one completed order owned by userID.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, idempotencyKey string) (*models.CheckoutAttempt, error) {
	order, err := s.orders.GetByIdempotencyKey(ctx, idempotencyKey)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID || order.Status != models.AttemptSucceeded {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
