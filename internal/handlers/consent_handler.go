package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	ConsentCookie = "cookie_consent"
	consentTTL    = 365 * 24 * time.Hour
)

// ConsentHandler stores cookie preferences in a cookie, as base64url JSON,
// and accepts browser error reports.
type ConsentHandler struct {
	validate *validator.Validate
	secure   bool
}

func NewConsentHandler(secureCookies bool) *ConsentHandler {
	return &ConsentHandler{validate: newValidator(), secure: secureCookies}
}

func (h *ConsentHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/consent", h.HandleGetConsent)
	router.Put("/consent", h.HandleSetConsent)
	router.Post("/errors", h.HandleErrorReport)
}

// HandleGetConsent returns the stored choice. Until the visitor decides,
// decided is false and only necessary cookies are allowed.
func (h *ConsentHandler) HandleGetConsent(c *fiber.Ctx) error {
	prefs, decided := readConsent(c)
	return respond(c, fiber.StatusOK, consentBody(prefs, decided))
}

func (h *ConsentHandler) HandleSetConsent(c *fiber.Ctx) error {
	var prefs models.ConsentPreferences
	if err := c.BodyParser(&prefs); err != nil {
		return invalidBody(c, err)
	}
	prefs.Necessary = true

	raw, err := json.Marshal(prefs)
	if err != nil {
		return serviceError(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     ConsentCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(consentTTL / time.Second),
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, fiber.StatusOK, consentBody(prefs, true))
}

// HandleErrorReport logs a client-side crash. Nothing is stored.
func (h *ConsentHandler) HandleErrorReport(c *fiber.Ctx) error {
	var report models.ErrorReport
	if err := c.BodyParser(&report); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(report); err != nil {
		return validationFailed(c, err)
	}
	log.Printf("Client error at %s: %s (ua=%q)", report.URL, report.Message, report.UserAgent)
	return respond(c, fiber.StatusAccepted, nil)
}

func consentBody(prefs models.ConsentPreferences, decided bool) fiber.Map {
	return fiber.Map{"preferences": prefs, "decided": decided, "allowed": prefs.Allowed()}
}

func readConsent(c *fiber.Ctx) (models.ConsentPreferences, bool) {
	defaults := models.ConsentPreferences{Necessary: true}
	raw := c.Cookies(ConsentCookie)
	if raw == "" {
		return defaults, false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return defaults, false
	}
	var prefs models.ConsentPreferences
	if err := json.Unmarshal(decoded, &prefs); err != nil {
		return defaults, false
	}
	prefs.Necessary = true
	return prefs, true
}
