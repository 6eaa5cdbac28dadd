package handlers

import (
	"strconv"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler exposes the current visitor's cart.
type CartHandler struct {
	cart     *services.CartService
	validate *validator.Validate
}

func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart, validate: newValidator()}
}

// RegisterRoutes registers the cart routes. The router must run
// middleware.CartSession.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:productId", h.HandleUpdateQuantity)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
	cartRoutes.Post("/discount", h.HandleApplyDiscount)
	cartRoutes.Delete("/discount", h.HandleRemoveDiscount)
}

// AddItemRequest adds a catalog product. The price always comes from the catalog.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=100"`
	VariantID string `json:"variantId" validate:"max=100"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type UpdateQuantityRequest struct {
	VariantID string `json:"variantId" validate:"max=100"`
	Quantity  int    `json:"quantity" validate:"min=0,max=99"`
}

type DiscountRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	snap, err := h.cart.Get(c.UserContext(), middleware.CartID(c), requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}

	in := services.AddItemInput{ProductID: req.ProductID, VariantID: req.VariantID, Quantity: req.Quantity}
	snap, err := h.cart.AddItem(c.UserContext(), middleware.CartID(c), in, version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req UpdateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}

	snap, err := h.cart.UpdateQuantity(c.UserContext(), middleware.CartID(c), c.Params("productId"), req.VariantID, req.Quantity, version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}
	snap, err := h.cart.RemoveItem(c.UserContext(), middleware.CartID(c), c.Params("productId"), c.Query("variantId"), version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}
	snap, err := h.cart.Clear(c.UserContext(), middleware.CartID(c), version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleApplyDiscount(c *fiber.Ctx) error {
	var req DiscountRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}

	snap, err := h.cart.ApplyDiscount(c.UserContext(), middleware.CartID(c), req.Code, version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) HandleRemoveDiscount(c *fiber.Ctx) error {
	version, ok := expectedVersion(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "If-Match must be a cart version")
	}
	snap, err := h.cart.RemoveDiscount(c.UserContext(), middleware.CartID(c), version, requestLocale(c))
	if err != nil {
		return serviceError(c, err)
	}
	return h.snapshot(c, fiber.StatusOK, snap)
}

func (h *CartHandler) snapshot(c *fiber.Ctx, status int, snap *services.Snapshot) error {
	c.Set(fiber.HeaderETag, strconv.Quote(strconv.FormatInt(snap.Cart.Version, 10)))
	return respond(c, status, snap)
}

// expectedVersion reads If-Match. Absent or "*" disables the check; quoted
// and weak forms of the version are accepted.
func expectedVersion(c *fiber.Ctx) (int64, bool) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" || raw == "*" {
		return services.AnyVersion, true
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
