package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler lists a signed-in customer's completed orders.
type OrderHandler struct {
	checkout *services.CheckoutService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(checkout *services.CheckoutService) *OrderHandler {
	return &OrderHandler{checkout: checkout}
}

// RegisterRoutes registers the order routes behind auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleGetOrders returns the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.checkout.ListOrders(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, orders)
}

// HandleGetOrderByID looks an order up by its idempotency key.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.checkout.GetOrder(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, order)
}
