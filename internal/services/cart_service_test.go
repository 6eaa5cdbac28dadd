package services_test

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/services"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestCartService_FreeShippingScenario(t *testing.T) {
	f := newFixture(t)

	f.add(t, "c1", "a", 2)
	snap := f.add(t, "c1", "b", 1)
	requireDecimal(t, "450", snap.Totals.Subtotal)
	requireDecimal(t, "49", snap.Totals.Shipping)
	requireDecimal(t, "499", snap.Totals.Total)
	requireDecimal(t, "50", snap.Totals.FreeShippingRemaining)

	snap = f.add(t, "c1", "a", 1)
	require.Len(t, snap.Cart.Items, 2, "repeated add merges into one line")
	assert.Equal(t, 3, snap.Cart.Items[0].Quantity)
	requireDecimal(t, "550", snap.Totals.Subtotal)
	requireDecimal(t, "0", snap.Totals.Shipping)
	requireDecimal(t, "550", snap.Totals.Total)
	assert.Equal(t, int64(3), snap.Cart.Version)
}

func TestCartService_PricesFromCatalog(t *testing.T) {
	f := newFixture(t)

	snap, err := f.carts.AddItem(context.Background(), "c1", services.AddItemInput{ProductID: "night-cream", VariantID: "50ml", Quantity: 1}, services.AnyVersion, "sv")
	require.NoError(t, err)
	require.Len(t, snap.Cart.Items, 1)
	line := snap.Cart.Items[0]
	assert.Equal(t, "b", line.ProductID, "slug resolves to the catalog id")
	assert.Equal(t, "50ml", line.VariantID)
	assert.Equal(t, "Night Cream", line.Product.Name)
	requireDecimal(t, "250", line.UnitPrice)
}

func TestCartService_RejectsBadAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "c1", services.AddItemInput{ProductID: "a", Quantity: 0}, services.AnyVersion, "sv")
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = f.carts.AddItem(ctx, "c1", services.AddItemInput{ProductID: "missing", Quantity: 1}, services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	f.add(t, "c1", "b", 2)
	_, err = f.carts.AddItem(ctx, "c1", services.AddItemInput{ProductID: "b", Quantity: 2}, services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrInsufficientStock)

	_, err = f.carts.UpdateQuantity(ctx, "c1", "b", "", 4, services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrInsufficientStock)

	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.CartMutations.WithLabelValues("ADD_ITEM", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CartMutations.WithLabelValues("ADD_ITEM", "ok")))
}

func TestCartService_UpdateToZeroRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "c1", "a", 2)
	f.add(t, "c1", "b", 1)

	snap, err := f.carts.UpdateQuantity(ctx, "c1", "a", "", 0, services.AnyVersion, "sv")
	require.NoError(t, err)
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, "b", snap.Cart.Items[0].ProductID)

	snap, err = f.carts.RemoveItem(ctx, "c1", "a", "", services.AnyVersion, "sv")
	require.NoError(t, err, "removing an absent line is a no-op")
	requireDecimal(t, "250", snap.Totals.Subtotal)
}

func TestCartService_VersionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "c1", "a", 1)
	f.add(t, "c1", "a", 1)

	_, err := f.carts.RemoveItem(ctx, "c1", "a", "", 1, "sv")
	assert.ErrorIs(t, err, services.ErrVersionConflict)

	snap, err := f.carts.RemoveItem(ctx, "c1", "a", "", 2, "sv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Cart.Version)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CartMutations.WithLabelValues("REMOVE_ITEM", "conflict")))
}

func TestCartService_ConcurrentAddsAllLand(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.carts.AddItem(context.Background(), "c1", services.AddItemInput{ProductID: "a", Quantity: 1}, services.AnyVersion, "sv")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := f.carts.Get(context.Background(), "c1", "sv")
	require.NoError(t, err)
	require.Len(t, snap.Cart.Items, 1)
	assert.Equal(t, 8, snap.Cart.Items[0].Quantity)
	assert.Equal(t, int64(8), snap.Cart.Version)
}

func TestCartService_UnreadableCartStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.cartRepo.Put("c1", []byte(`{"items":[{"productId":"a","quantity":-3}]`), 5)

	snap, err := f.carts.Get(context.Background(), "c1", "sv")
	require.NoError(t, err)
	assert.True(t, snap.Cart.IsEmpty())
	assert.Equal(t, int64(5), snap.Cart.Version)
	requireDecimal(t, "0", snap.Totals.Shipping)

	snap, err = f.carts.AddItem(context.Background(), "c1", services.AddItemInput{ProductID: "a", Quantity: 1}, 5, "sv")
	require.NoError(t, err)
	assert.Equal(t, int64(6), snap.Cart.Version)
}

func TestCartService_Discount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.ApplyDiscount(ctx, "c1", "GLOW10", services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrEmptyCart)

	f.add(t, "c1", "a", 2)
	_, err = f.carts.ApplyDiscount(ctx, "c1", "glow10", services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrDiscountMinimum)

	f.add(t, "c1", "b", 1)
	_, err = f.carts.ApplyDiscount(ctx, "c1", "NOPE", services.AnyVersion, "sv")
	assert.ErrorIs(t, err, services.ErrDiscountInvalid)

	snap, err := f.carts.ApplyDiscount(ctx, "c1", " glow10 ", services.AnyVersion, "sv")
	require.NoError(t, err)
	require.NotNil(t, snap.Cart.Discount)
	assert.Equal(t, "GLOW10", snap.Cart.Discount.Code)
	requireDecimal(t, "45", snap.Totals.Discount)
	requireDecimal(t, "454", snap.Totals.Total)

	snap, err = f.carts.RemoveItem(ctx, "c1", "b", "", services.AnyVersion, "sv")
	require.NoError(t, err)
	assert.Nil(t, snap.Cart.Discount, "discount no longer meets its minimum")
	requireDecimal(t, "249", snap.Totals.Total)
}

func TestCartService_ClearZeroesTotals(t *testing.T) {
	f := newFixture(t)
	f.add(t, "c1", "a", 2)

	snap, err := f.carts.Clear(context.Background(), "c1", services.AnyVersion, "sv")
	require.NoError(t, err)
	assert.True(t, snap.Cart.IsEmpty())
	requireDecimal(t, "0", snap.Totals.Subtotal)
	requireDecimal(t, "0", snap.Totals.Shipping)
	requireDecimal(t, "0", snap.Totals.Total)
}

func TestCartService_DisplayCurrency(t *testing.T) {
	f := newFixture(t)
	f.add(t, "c1", "a", 2)
	f.add(t, "c1", "b", 1)

	snap, err := f.carts.Get(context.Background(), "c1", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "en", snap.Display.Locale)
	assert.Equal(t, "USD", snap.Display.Currency)
	requireDecimal(t, "47.40", snap.Display.Total.Amount)
	assert.Equal(t, "$47.40", snap.Display.Total.Formatted)
	requireDecimal(t, "499", snap.Totals.Total)

	snap, err = f.carts.Get(context.Background(), "c1", "xx")
	require.NoError(t, err)
	assert.Equal(t, "SEK", snap.Display.Currency)
	assert.Equal(t, "499,00 kr", snap.Display.Total.Formatted)
}

func TestCartService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	f.add(t, "c1", "a", 1)
	f.add(t, "c1", "a", 1)
	require.NoError(t, f.carts.Discard(context.Background(), "c1"))

	assert.Equal(t, 3, f.events.count(services.EventCartUpdated))

	snap, err := f.carts.Get(context.Background(), "c1", "sv")
	require.NoError(t, err)
	assert.True(t, snap.Cart.IsEmpty())
	assert.Equal(t, int64(0), snap.Cart.Version)
}
