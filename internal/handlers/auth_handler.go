package handlers

import (
	"log"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	cart        *services.CartService
	validate    *validator.Validate
	secure      bool
}

// NewAuthHandler creates a new AuthHandler. Logout discards the visitor's
// cart through cart.
func NewAuthHandler(authService *services.AuthService, cart *services.CartService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cart:        cart,
		validate:    newValidator(),
		secure:      secureCookies,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Get("/me", middleware.AuthRequired(h.authService), h.HandleMe)
}

type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, err := h.authService.RegisterUser(c.UserContext(), services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusCreated, user)
}

// HandleLogin issues a bearer token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, user, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"token":     token,
		"user":      user,
		"expiresIn": int(h.authService.TokenTTL() / time.Second),
	})
}

// HandleLogout throws the current cart away and hands the browser a fresh
// cart cookie. Tokens are stateless, so the client drops its own.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if old := middleware.CartID(c); old != "" {
		if err := h.cart.Discard(c.UserContext(), old); err != nil {
			log.Printf("Error discarding cart %s on logout: %v", old, err)
		}
	}
	return respond(c, fiber.StatusOK, fiber.Map{"cartId": middleware.RotateCart(c, h.secure)})
}

// HandleMe returns the signed-in user's profile.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := h.authService.Profile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return respond(c, fiber.StatusOK, user)
}
