package handlers

import (
	"strings"
	"time"

	"storefront/internal/clients"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const preferredLocaleTTL = 365 * 24 * time.Hour

// countryHeaders are set by the edge in front of the service, in priority order.
var countryHeaders = []string{"CF-IPCountry", "X-Vercel-IP-Country", "X-Country-Code"}

// LocaleHandler negotiates the visitor's language and answers geolocation.
type LocaleHandler struct {
	locales  *services.LocaleService
	validate *validator.Validate
	secure   bool
}

func NewLocaleHandler(locales *services.LocaleService, secureCookies bool) *LocaleHandler {
	return &LocaleHandler{locales: locales, validate: newValidator(), secure: secureCookies}
}

func (h *LocaleHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/geolocation", h.HandleGeolocation)
	localeRoutes := router.Group("/locale")
	localeRoutes.Get("/suggestion", h.HandleSuggestion)
	localeRoutes.Post("/accept", h.HandleAccept)
	localeRoutes.Post("/decline", h.HandleDecline)
}

type AcceptLocaleRequest struct {
	Locale string `json:"locale" validate:"required,oneof=sv en es de fr"`
	Path   string `json:"path" validate:"omitempty,startswith=/,max=2048"`
}

// HandleGeolocation reports the country the edge resolved for this request.
func (h *LocaleHandler) HandleGeolocation(c *fiber.Ctx) error {
	for _, header := range countryHeaders {
		cc := strings.ToUpper(strings.TrimSpace(c.Get(header)))
		if len(cc) == 2 && cc != "XX" && cc != "T1" {
			return respond(c, fiber.StatusOK, clients.GeoResponse{CountryCode: cc})
		}
	}
	return fail(c, fiber.StatusNotFound, "Country could not be determined")
}

func (h *LocaleHandler) HandleSuggestion(c *fiber.Ctx) error {
	path := c.Query("path", "/")
	if err := h.validate.Var(path, "startswith=/,max=2048"); err != nil {
		return fail(c, fiber.StatusBadRequest, "path must be an absolute path on this site")
	}
	current := c.Query("locale")
	if current == "" {
		current = services.LocaleFromPath(path)
	}
	suggestion := h.locales.Suggest(c.UserContext(), services.SuggestInput{
		CurrentLocale:       current,
		Path:                path,
		HasPreference:       c.Cookies(services.PreferredLocaleCookie) != "",
		PromptedThisSession: c.Cookies(services.LocalePromptedCookie) != "",
		ClientIP:            c.IP(),
	})
	return respond(c, fiber.StatusOK, suggestion)
}

// HandleAccept persists the choice for a year and returns where to go.
func (h *LocaleHandler) HandleAccept(c *fiber.Ctx) error {
	var req AcceptLocaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	locale, redirect := h.locales.Accept(req.Locale, req.Path)
	c.Cookie(&fiber.Cookie{
		Name:     services.PreferredLocaleCookie,
		Value:    locale,
		Path:     "/",
		MaxAge:   int(preferredLocaleTTL / time.Second),
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, fiber.StatusOK, fiber.Map{
		"locale":       locale,
		"redirectPath": redirect,
	})
}

// HandleDecline suppresses the prompt for the browser session only.
func (h *LocaleHandler) HandleDecline(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     services.LocalePromptedCookie,
		Value:    "1",
		Path:     "/",
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, fiber.StatusOK, fiber.Map{"prompted": true})
}
