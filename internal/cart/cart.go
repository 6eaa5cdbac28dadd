// Package cart holds the storefront cart state and the pure reducer that
// applies mutations to it. Persistence and locking live in the services layer.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidItem     = errors.New("item requires a product id and a non-negative unit price")
	ErrUnknownAction   = errors.New("unknown cart action")
)

// Product is the catalog snapshot stored alongside a line so the cart renders
// without another catalog lookup.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
}

// Item is one line of the cart. UnitPrice is in the base currency.
type Item struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Product   Product         `json:"product"`
}

// Key identifies a line.
type Key struct {
	ProductID string
	VariantID string
}

func (i Item) Key() Key {
	return Key{ProductID: i.ProductID, VariantID: i.VariantID}
}

// LineTotal is UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppliedDiscount is a server-validated percentage-off code.
type AppliedDiscount struct {
	Code    string          `json:"code"`
	Percent decimal.Decimal `json:"percent"`
}

// Cart is the full persisted cart state. Items keep insertion order.
type Cart struct {
	ID        string           `json:"id"`
	Items     []Item           `json:"items"`
	Discount  *AppliedDiscount `json:"discount,omitempty"`
	Version   int64            `json:"version"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// New returns an empty cart.
func New(id string) Cart {
	return Cart{ID: id, Items: []Item{}}
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the index of the line matching k, or -1.
func (c Cart) Find(k Key) int {
	for i, it := range c.Items {
		if it.Key() == k {
			return i
		}
	}
	return -1
}

// Encode serialises the cart for durable storage.
func Encode(c Cart) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return data, nil
}

// Decode parses a stored cart and checks the line invariants. Callers fall
// back to an empty cart on error.
func Decode(data []byte) (Cart, error) {
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("failed to decode cart: %w", err)
	}
	seen := make(map[Key]bool, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity < 1 || it.ProductID == "" || it.UnitPrice.Sign() < 0 {
			return Cart{}, fmt.Errorf("stored cart has invalid line %q", it.ProductID)
		}
		if seen[it.Key()] {
			return Cart{}, fmt.Errorf("stored cart has duplicate line %q", it.ProductID)
		}
		seen[it.Key()] = true
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}
