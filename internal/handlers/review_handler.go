package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ReviewHandler serves review lists and rating stats. It never fails on
// upstream errors: an empty list or null stats is a normal response.
type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) RegisterRoutes(router fiber.Router) {
	reviewRoutes := router.Group("/reviews")
	reviewRoutes.Get("/shop", h.HandleShopReviews)
	reviewRoutes.Get("/shop/stats", h.HandleShopStats)
	reviewRoutes.Get("/products/:id", h.HandleProductReviews)
	reviewRoutes.Get("/products/:id/stats", h.HandleProductStats)
	reviewRoutes.Get("/products/:id/summary", h.HandleProductSummary)
}

func (h *ReviewHandler) HandleProductReviews(c *fiber.Ctx) error {
	reviews := h.reviews.GetProductReviews(c.UserContext(), c.Params("id"), queryInt(c, "page", 1), queryInt(c, "pageSize", 10))
	return respond(c, fiber.StatusOK, reviews)
}

func (h *ReviewHandler) HandleProductStats(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, h.reviews.GetProductStats(c.UserContext(), c.Params("id")))
}

func (h *ReviewHandler) HandleProductSummary(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, h.reviews.GetProductSummary(c.UserContext(), c.Params("id"), queryInt(c, "pageSize", 10)))
}

func (h *ReviewHandler) HandleShopReviews(c *fiber.Ctx) error {
	reviews := h.reviews.GetShopReviews(c.UserContext(), queryInt(c, "page", 1), queryInt(c, "pageSize", 10))
	return respond(c, fiber.StatusOK, reviews)
}

func (h *ReviewHandler) HandleShopStats(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, h.reviews.GetShopStats(c.UserContext()))
}
