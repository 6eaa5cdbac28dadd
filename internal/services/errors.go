package services

import "errors"

var (
	ErrVersionConflict   = errors.New("cart was changed in another tab")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDiscountInvalid   = errors.New("discount code is invalid or expired")
	ErrDiscountMinimum   = errors.New("cart subtotal is below the discount minimum")

	ErrEmptyCart            = errors.New("cart is empty")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionExpired       = errors.New("checkout session expired")
	ErrSessionCompleted     = errors.New("checkout session already completed")
	ErrSubmissionInProgress = errors.New("payment submission already in progress")
	ErrInvalidTransition    = errors.New("invalid checkout state transition")
	ErrMethodUnavailable    = errors.New("payment method is not available for this session")
	ErrMissingPaymentToken  = errors.New("payment token is required")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrCartChanged          = errors.New("cart changed since checkout started")
	ErrOrderNotFound        = errors.New("order not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)
