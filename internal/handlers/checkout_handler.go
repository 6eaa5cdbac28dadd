package handlers

import (
	"log"

	"storefront/internal/clients"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler drives checkout sessions for the visitor's cart.
type CheckoutHandler struct {
	checkout *services.CheckoutService
	validate *validator.Validate
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, validate: newValidator()}
}

// RegisterRoutes registers the checkout routes. The router must run
// middleware.CartSession and middleware.OptionalAuth.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Post("/session", h.HandleBegin)
	checkoutRoutes.Get("/session/:id", h.HandleGetSession)
	checkoutRoutes.Post("/session/:id/submit", h.HandleSubmit)
}

type BeginCheckoutRequest struct {
	Locale       string   `json:"locale" validate:"omitempty,max=10"`
	Capabilities []string `json:"capabilities" validate:"max=2,dive,oneof=apple_pay google_pay"`
}

// SubmitCheckoutRequest carries provider tokens only. Raw card data never
// reaches this service.
type SubmitCheckoutRequest struct {
	Method          string            `json:"method" validate:"required,oneof=card apple_pay google_pay"`
	PaymentToken    string            `json:"paymentToken" validate:"required_if=Method card,max=4096"`
	PaymentData     string            `json:"paymentData" validate:"required_unless=Method card,max=65536"`
	Installments    int               `json:"installments" validate:"min=0,max=36"`
	ShippingAddress services.Address  `json:"shippingAddress"`
	BillingAddress  *services.Address `json:"billingAddress" validate:"omitempty"`
}

func (h *CheckoutHandler) HandleBegin(c *fiber.Ctx) error {
	var req BeginCheckoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	caps := services.Capabilities{}
	for _, capability := range req.Capabilities {
		switch services.PaymentMethod(capability) {
		case services.MethodApplePay:
			caps.ApplePay = true
		case services.MethodGooglePay:
			caps.GooglePay = true
		}
	}
	locale := requestLocale(c)
	if req.Locale != "" {
		locale = req.Locale
	}

	session, err := h.checkout.Begin(c.UserContext(), middleware.CartID(c), middleware.UserID(c), locale, caps)
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusCreated, session)
}

func (h *CheckoutHandler) HandleGetSession(c *fiber.Ctx) error {
	session, err := h.checkout.GetSession(c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	if session.CartID != middleware.CartID(c) {
		return fail(c, fiber.StatusNotFound, services.ErrSessionNotFound.Error())
	}
	return respond(c, fiber.StatusOK, session)
}

// HandleSubmit charges the session once. A declined or failed payment is
// 402 with the hosted checkout link in the data.
func (h *CheckoutHandler) HandleSubmit(c *fiber.Ctx) error {
	var req SubmitCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	key := c.Get(clients.IdempotencyKeyHeader)
	if len(key) > models.MaxIdempotencyKeyLength {
		return fail(c, fiber.StatusBadRequest, "Idempotency-Key is too long")
	}

	session, err := h.checkout.GetSession(c.Params("id"))
	if err == nil && session.CartID != middleware.CartID(c) {
		return fail(c, fiber.StatusNotFound, services.ErrSessionNotFound.Error())
	}

	result, err := h.checkout.Submit(c.UserContext(), services.SubmitRequest{
		SessionID:       c.Params("id"),
		Method:          services.PaymentMethod(req.Method),
		PaymentToken:    req.PaymentToken,
		PaymentData:     req.PaymentData,
		Installments:    req.Installments,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		IdempotencyKey:  key,
	})
	if err != nil {
		return serviceError(c, err)
	}

	c.Set(clients.IdempotencyKeyHeader, result.IdempotencyKey)
	if !result.Success {
		log.Printf("Checkout session %s failed: %s", result.SessionID, result.Error)
		return failWith(c, fiber.StatusPaymentRequired, result.Error, result)
	}
	return respond(c, fiber.StatusOK, result)
}
