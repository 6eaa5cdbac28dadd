package cart

import "github.com/shopspring/decimal"

// Policy carries the shipping and tax parameters totals are derived from.
// All amounts are in the base currency.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	VATRate               decimal.Decimal
}

// DefaultPolicy is 49 kr shipping, free from 500 kr, 25% Swedish VAT.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShippingFee:       decimal.NewFromInt(49),
		VATRate:               decimal.RequireFromString("0.25"),
	}
}

// Totals are the derived monetary fields of a cart.
type Totals struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	Shipping              decimal.Decimal `json:"shipping"`
	Discount              decimal.Decimal `json:"discount"`
	Tax                   decimal.Decimal `json:"tax"`
	Total                 decimal.Decimal `json:"total"`
	FreeShippingRemaining decimal.Decimal `json:"freeShippingRemaining"`
	ItemCount             int             `json:"itemCount"`
}

// Compute derives totals from c. Prices are tax-inclusive, so Tax is the VAT
// share already contained in Total and is not added to it.
func Compute(c Cart, p Policy) Totals {
	t := Totals{
		Subtotal:              decimal.Zero,
		Shipping:              decimal.Zero,
		Discount:              decimal.Zero,
		Tax:                   decimal.Zero,
		Total:                 decimal.Zero,
		FreeShippingRemaining: decimal.Zero,
	}
	if c.IsEmpty() {
		return t
	}

	for _, it := range c.Items {
		t.Subtotal = t.Subtotal.Add(it.LineTotal())
		t.ItemCount += it.Quantity
	}

	if t.Subtotal.LessThan(p.FreeShippingThreshold) {
		t.Shipping = p.FlatShippingFee
		t.FreeShippingRemaining = p.FreeShippingThreshold.Sub(t.Subtotal)
	}

	if c.Discount != nil && c.Discount.Percent.Sign() > 0 {
		t.Discount = t.Subtotal.Mul(c.Discount.Percent).Div(decimal.NewFromInt(100)).RoundBank(2)
	}

	t.Total = t.Subtotal.Add(t.Shipping).Sub(t.Discount)
	if p.VATRate.Sign() > 0 {
		t.Tax = t.Total.Mul(p.VATRate).Div(decimal.NewFromInt(1).Add(p.VATRate)).RoundBank(2)
	}
	return t
}
