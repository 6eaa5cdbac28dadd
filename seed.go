package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
)

// seedProducts is the starter catalog. IDs are generated on first insert.
func seedProducts() []models.Product {
	return []models.Product{
		{Slug: "hydrating-serum", Name: "Hydrating Serum", Category: "serum", Price: decimal.NewFromInt(450), Stock: 40,
			Description: "Lätt serum med hyaluronsyra för återfuktning hela dagen.", Image: "/images/products/hydrating-serum.jpg"},
		{Slug: "night-cream", Name: "Night Cream", Category: "moisturizer", Price: decimal.NewFromInt(520), Stock: 25,
			Description: "Rik nattkräm som lugnar och återuppbygger hudbarriären.", Image: "/images/products/night-cream.jpg"},
		{Slug: "cleansing-balm", Name: "Cleansing Balm", Category: "cleanser", Price: decimal.NewFromInt(295), Stock: 60,
			Description: "Mild rengöringsbalm som smälter bort smink och solskydd.", Image: "/images/products/cleansing-balm.jpg"},
		{Slug: "facial-mist", Name: "Facial Mist", Category: "toner", Price: decimal.NewFromInt(195), Stock: 80,
			Description: "Uppfriskande ansiktsspray med rosvatten.", Image: "/images/products/facial-mist.jpg"},
		{Slug: "lip-balm", Name: "Lip Balm", Category: "lips", Price: decimal.NewFromInt(95), Stock: 150,
			Description: "Vårdande läppbalsam med sheasmör.", Image: "/images/products/lip-balm.jpg"},
	}
}

func seedDiscounts(ctx context.Context, repo repositories.DiscountRepository) error {
	codes := []models.DiscountCode{
		{Code: "WELCOME10", Percent: decimal.NewFromInt(10), Active: true},
		{Code: "GLOW20", Percent: decimal.NewFromInt(20), Active: true, MinSubtotal: decimal.NewFromInt(800)},
	}
	for i := range codes {
		_, err := repo.GetByCode(ctx, codes[i].Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		if err := repo.Create(ctx, &codes[i]); err != nil {
			return fmt.Errorf("failed to seed discount %s: %w", codes[i].Code, err)
		}
		log.Printf("Seeded discount code: %s", codes[i].Code)
	}
	return nil
}
