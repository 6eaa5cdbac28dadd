package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront/internal/cart"
	"storefront/internal/repositories"
	"storefront/pkg/currency"
	"storefront/pkg/metrics"

	"github.com/shopspring/decimal"
)

// AnyVersion disables the optimistic version check on a mutation.
const AnyVersion int64 = -1

// Money is an amount in the display currency plus its rendered form.
type Money struct {
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

// DisplayLine is a cart line priced in the display currency.
type DisplayLine struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	UnitPrice Money  `json:"unitPrice"`
	LineTotal Money  `json:"lineTotal"`
}

// Display is the cart rendered for one locale.
type Display struct {
	Locale                string        `json:"locale"`
	Currency              string        `json:"currency"`
	Lines                 []DisplayLine `json:"lines"`
	Subtotal              Money         `json:"subtotal"`
	Shipping              Money         `json:"shipping"`
	Discount              Money         `json:"discount"`
	Tax                   Money         `json:"tax"`
	Total                 Money         `json:"total"`
	FreeShippingRemaining Money         `json:"freeShippingRemaining"`
}

// Snapshot is what every cart read and mutation returns.
type Snapshot struct {
	Cart    cart.Cart   `json:"cart"`
	Totals  cart.Totals `json:"totals"`
	Display Display     `json:"display"`
}

// AddItemInput is a request to add quantity units of a catalog product.
type AddItemInput struct {
	ProductID string
	VariantID string
	Quantity  int
}

// CartService loads, mutates and persists carts. Mutations on one cart are
// serialised in-process; the repository's compare-and-set catches writers on
// other instances.
type CartService struct {
	repo      repositories.CartRepository
	products  *ProductService
	discounts *DiscountService
	resolver  *currency.Resolver
	policy    cart.Policy
	events    EventPublisher
	metrics   *metrics.Metrics
	locks     *keyedMutex
	now       func() time.Time
}

// NewCartService wires a CartService. events and m may be nil.
func NewCartService(
	repo repositories.CartRepository,
	products *ProductService,
	discounts *DiscountService,
	resolver *currency.Resolver,
	policy cart.Policy,
	events EventPublisher,
	m *metrics.Metrics,
) *CartService {
	return &CartService{
		repo:      repo,
		products:  products,
		discounts: discounts,
		resolver:  resolver,
		policy:    policy,
		events:    events,
		metrics:   m,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Policy returns the shipping and tax policy totals are computed with.
func (s *CartService) Policy() cart.Policy {
	return s.policy
}

// Get returns the current snapshot. A missing or unreadable cart is empty.
func (s *CartService) Get(ctx context.Context, cartID, locale string) (*Snapshot, error) {
	c, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(c, locale), nil
}

// Load returns the stored cart without rendering it.
func (s *CartService) Load(ctx context.Context, cartID string) (cart.Cart, error) {
	return s.load(ctx, cartID)
}

// Dispatch applies a prepared action.
func (s *CartService) Dispatch(ctx context.Context, cartID string, action cart.Action, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.mutate(ctx, cartID, expectedVersion, locale, string(action.Type), func(cart.Cart) (cart.Action, error) {
		return action, nil
	})
}

// AddItem prices the line from the catalog and checks stock before merging.
func (s *CartService) AddItem(ctx context.Context, cartID string, in AddItemInput, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.mutate(ctx, cartID, expectedVersion, locale, string(cart.ActionAddItem), func(current cart.Cart) (cart.Action, error) {
		if in.Quantity < 1 {
			return cart.Action{}, cart.ErrInvalidQuantity
		}
		p, err := s.products.GetProduct(ctx, in.ProductID)
		if err != nil {
			return cart.Action{}, err
		}
		inCart := 0
		if i := current.Find(cart.Key{ProductID: p.ID, VariantID: in.VariantID}); i >= 0 {
			inCart = current.Items[i].Quantity
		}
		if inCart+in.Quantity > p.Stock {
			return cart.Action{}, fmt.Errorf("%w: %d of %s available", ErrInsufficientStock, p.Stock, p.Name)
		}
		return cart.AddItem(cart.Item{
			ProductID: p.ID,
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
			UnitPrice: p.Price,
			Product: cart.Product{
				ID:       p.ID,
				Name:     p.Name,
				Slug:     p.Slug,
				Image:    p.Image,
				Category: p.Category,
			},
		}), nil
	})
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID, variantID string, quantity int, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.mutate(ctx, cartID, expectedVersion, locale, string(cart.ActionUpdateQuantity), func(current cart.Cart) (cart.Action, error) {
		if quantity > 0 {
			p, err := s.products.GetProduct(ctx, productID)
			switch {
			case errors.Is(err, ErrProductNotFound):
				// Delisted products may still be reduced or removed.
			case err != nil:
				return cart.Action{}, err
			case quantity > p.Stock:
				return cart.Action{}, fmt.Errorf("%w: %d of %s available", ErrInsufficientStock, p.Stock, p.Name)
			}
		}
		return cart.UpdateQuantity(productID, variantID, quantity), nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID, variantID string, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.Dispatch(ctx, cartID, cart.RemoveItem(productID, variantID), expectedVersion, locale)
}

func (s *CartService) Clear(ctx context.Context, cartID string, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.Dispatch(ctx, cartID, cart.Clear(), expectedVersion, locale)
}

// Settle empties the cart after a successful order. If the cart changed
// since paidVersion only the paid quantities are removed.
func (s *CartService) Settle(ctx context.Context, cartID string, paidVersion int64, paid []cart.Item, locale string) (*Snapshot, error) {
	return s.mutate(ctx, cartID, AnyVersion, locale, string(cart.ActionSettle), func(current cart.Cart) (cart.Action, error) {
		if current.Version == paidVersion {
			return cart.Clear(), nil
		}
		return cart.Settle(paid), nil
	})
}

// ApplyDiscount validates code server-side against the current subtotal.
func (s *CartService) ApplyDiscount(ctx context.Context, cartID, code string, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.mutate(ctx, cartID, expectedVersion, locale, string(cart.ActionApplyDiscount), func(current cart.Cart) (cart.Action, error) {
		if current.IsEmpty() {
			return cart.Action{}, ErrEmptyCart
		}
		d, err := s.discounts.Validate(ctx, code, cart.Compute(current, s.policy).Subtotal)
		if err != nil {
			return cart.Action{}, err
		}
		return cart.ApplyDiscount(d), nil
	})
}

func (s *CartService) RemoveDiscount(ctx context.Context, cartID string, expectedVersion int64, locale string) (*Snapshot, error) {
	return s.Dispatch(ctx, cartID, cart.RemoveDiscount(), expectedVersion, locale)
}

// Discard deletes the stored cart. Used on logout together with a new cart cookie.
func (s *CartService) Discard(ctx context.Context, cartID string) error {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	if err := s.repo.Delete(ctx, cartID); err != nil {
		return err
	}
	publish(s.events, EventCartUpdated, cartEvent{CartID: cartID, Subtotal: decimal.Zero})
	return nil
}

type cartEvent struct {
	CartID    string          `json:"cartId"`
	Version   int64           `json:"version"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Action    string          `json:"action,omitempty"`
}

func (s *CartService) mutate(
	ctx context.Context,
	cartID string,
	expectedVersion int64,
	locale string,
	actionName string,
	build func(current cart.Cart) (cart.Action, error),
) (*Snapshot, error) {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	snap, err := s.mutateLocked(ctx, cartID, expectedVersion, locale, build)
	s.observe(actionName, err)
	return snap, err
}

func (s *CartService) mutateLocked(
	ctx context.Context,
	cartID string,
	expectedVersion int64,
	locale string,
	build func(current cart.Cart) (cart.Action, error),
) (*Snapshot, error) {
	current, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != AnyVersion && expectedVersion != current.Version {
		return nil, fmt.Errorf("%w: have version %d, request was based on %d", ErrVersionConflict, current.Version, expectedVersion)
	}

	action, err := build(current)
	if err != nil {
		return nil, err
	}
	next, err := cart.Reduce(current, action)
	if err != nil {
		return nil, err
	}
	next = s.revalidateDiscount(ctx, next)

	stored := current.Version
	next.Version = stored + 1
	next.UpdatedAt = s.now().UTC()
	payload, err := cart.Encode(next)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Save(ctx, cartID, payload, stored); err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %v", ErrVersionConflict, err)
		}
		return nil, fmt.Errorf("failed to save cart %s: %w", cartID, err)
	}

	totals := cart.Compute(next, s.policy)
	publish(s.events, EventCartUpdated, cartEvent{
		CartID:    cartID,
		Version:   next.Version,
		ItemCount: totals.ItemCount,
		Subtotal:  totals.Subtotal,
		Action:    string(action.Type),
	})
	return s.snapshot(next, locale), nil
}

// revalidateDiscount drops a discount whose minimum is no longer met after
// an item change. Lookup failures keep the discount.
func (s *CartService) revalidateDiscount(ctx context.Context, c cart.Cart) cart.Cart {
	if c.Discount == nil || s.discounts == nil {
		return c
	}
	_, err := s.discounts.Validate(ctx, c.Discount.Code, cart.Compute(c, s.policy).Subtotal)
	if errors.Is(err, ErrDiscountInvalid) || errors.Is(err, ErrDiscountMinimum) {
		log.Printf("dropping discount %s from cart %s: %v", c.Discount.Code, c.ID, err)
		c.Discount = nil
	} else if err != nil {
		log.Printf("could not revalidate discount %s on cart %s: %v", c.Discount.Code, c.ID, err)
	}
	return c
}

// load never fails on bad data: an unparseable cart is replaced by an empty
// one at the stored version so the next save overwrites it.
func (s *CartService) load(ctx context.Context, cartID string) (cart.Cart, error) {
	blob, err := s.repo.Load(ctx, cartID)
	if errors.Is(err, repositories.ErrNotFound) {
		return cart.New(cartID), nil
	}
	if err != nil {
		return cart.Cart{}, fmt.Errorf("failed to load cart %s: %w", cartID, err)
	}

	c, err := cart.Decode(blob.Payload)
	if err != nil {
		log.Printf("cart %s is unreadable, starting empty: %v", cartID, err)
		c = cart.New(cartID)
	}
	c.ID = cartID
	c.Version = blob.Version
	return c, nil
}

func (s *CartService) snapshot(c cart.Cart, locale string) *Snapshot {
	totals := cart.Compute(c, s.policy)
	return &Snapshot{Cart: c, Totals: totals, Display: s.display(c, totals, locale)}
}

func (s *CartService) display(c cart.Cart, t cart.Totals, locale string) Display {
	locale = currency.NormalizeLocale(locale)
	code := s.resolver.ResolveCurrency(locale)
	if _, err := s.resolver.Rate(code); err != nil {
		code = currency.BaseCurrency
	}

	money := func(amount decimal.Decimal) Money {
		converted, err := s.resolver.Convert(amount, code)
		if err != nil {
			converted = amount
		}
		return Money{Amount: converted, Formatted: currency.Format(converted, code)}
	}

	d := Display{
		Locale:                locale,
		Currency:              code,
		Lines:                 make([]DisplayLine, 0, len(c.Items)),
		Subtotal:              money(t.Subtotal),
		Shipping:              money(t.Shipping),
		Discount:              money(t.Discount),
		Tax:                   money(t.Tax),
		Total:                 money(t.Total),
		FreeShippingRemaining: money(t.FreeShippingRemaining),
	}
	for _, it := range c.Items {
		d.Lines = append(d.Lines, DisplayLine{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			UnitPrice: money(it.UnitPrice),
			LineTotal: money(it.LineTotal()),
		})
	}
	return d
}

func (s *CartService) observe(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrVersionConflict):
		outcome = "conflict"
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrProductNotFound), errors.Is(err, ErrDiscountInvalid),
		errors.Is(err, ErrDiscountMinimum), errors.Is(err, ErrEmptyCart):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.metrics.CartMutations.WithLabelValues(action, outcome).Inc()
}
