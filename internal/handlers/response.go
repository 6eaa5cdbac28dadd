package handlers

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/services"
	"storefront/pkg/currency"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Success: false, Error: message})
}

func failWith(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Envelope{Success: false, Error: message, Data: data})
}

func invalidBody(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing request body for %s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusBadRequest, "Invalid request body")
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFailed renders validator errors as a field -> message map.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[jsonFieldName(e)] = fieldMessage(e)
	}
	return failWith(c, fiber.StatusBadRequest, "Validation failed", fiber.Map{"fields": fields})
}

func jsonFieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		ns = e.Field()
	}
	return ns
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return "must match " + strings.ToLower(e.Param()[:1]) + e.Param()[1:]
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "len":
		return "must be " + e.Param() + " characters"
	default:
		return fmt.Sprintf("failed on the '%s' tag", e.Tag())
	}
}

// serviceError maps a service sentinel to a status code and a message that is
// safe to show. Unknown errors are logged and hidden.
func serviceError(c *fiber.Ctx, err error) error {
	status, message := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Method(), c.Path(), err)
	}

	var fb *services.FallbackError
	if errors.As(err, &fb) {
		return failWith(c, status, message, fiber.Map{"fallbackUrl": fb.FallbackURL})
	}
	return fail(c, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrVersionConflict),
		errors.Is(err, services.ErrSessionCompleted),
		errors.Is(err, services.ErrSubmissionInProgress),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrOrderNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrSessionExpired):
		return fiber.StatusGone, err.Error()
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrDiscountInvalid),
		errors.Is(err, services.ErrDiscountMinimum),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrCartChanged),
		errors.Is(err, services.ErrMethodUnavailable),
		errors.Is(err, services.ErrMissingPaymentToken),
		errors.Is(err, services.ErrPasswordMismatch):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrGatewayUnavailable):
		return fiber.StatusBadGateway, services.ErrGatewayUnavailable.Error()
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// requestLocale is ?locale=, then the preferred_locale cookie, then the default.
func requestLocale(c *fiber.Ctx) string {
	if l := c.Query("locale"); l != "" {
		return currency.NormalizeLocale(l)
	}
	if l := c.Cookies(services.PreferredLocaleCookie); l != "" {
		return currency.NormalizeLocale(l)
	}
	return currency.DefaultLocale
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
