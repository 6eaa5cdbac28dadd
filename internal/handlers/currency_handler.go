package handlers

import (
	"storefront/pkg/currency"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CurrencyHandler exposes locale -> currency resolution and formatting.
type CurrencyHandler struct {
	resolver *currency.Resolver
}

func NewCurrencyHandler(resolver *currency.Resolver) *CurrencyHandler {
	return &CurrencyHandler{resolver: resolver}
}

func (h *CurrencyHandler) RegisterRoutes(router fiber.Router) {
	currencyRoutes := router.Group("/currency")
	currencyRoutes.Get("/", h.HandleResolve)
	currencyRoutes.Get("/format", h.HandleFormat)
}

func (h *CurrencyHandler) HandleResolve(c *fiber.Ctx) error {
	locale := requestLocale(c)
	code := h.resolver.ResolveCurrency(locale)
	rate, err := h.resolver.Rate(code)
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"locale": locale, "currency": code, "rate": rate})
}

// HandleFormat converts a SEK amount into the locale's currency and renders it.
func (h *CurrencyHandler) HandleFormat(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "amount must be a decimal number")
	}
	code := h.resolver.ResolveCurrency(requestLocale(c))
	converted, err := h.resolver.Convert(amount, code)
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"amount":    converted,
		"currency":  code,
		"formatted": h.resolver.Format(converted, code),
	})
}
