// Package currency maps storefront locales to display currencies and converts
// base-currency (SEK) amounts into them.
package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// BaseCurrency is the currency every catalog price is stored in.
	BaseCurrency = "SEK"
	// DefaultLocale is used whenever a locale is missing or unsupported.
	DefaultLocale = "sv"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// localeCurrency is the fixed locale -> display currency table.
var localeCurrency = map[string]string{
	"sv": "SEK",
	"en": "USD",
	"es": "EUR",
	"de": "EUR",
	"fr": "EUR",
}

// Info describes how a currency is rounded and rendered.
type Info struct {
	Code        string
	Symbol      string
	MinorUnits  int32
	SymbolFirst bool
	DecimalSep  string
	GroupSep    string
}

var currencies = map[string]Info{
	"SEK": {Code: "SEK", Symbol: "kr", MinorUnits: 2, DecimalSep: ",", GroupSep: " "},
	"EUR": {Code: "EUR", Symbol: "€", MinorUnits: 2, SymbolFirst: true, DecimalSep: ".", GroupSep: ","},
	"USD": {Code: "USD", Symbol: "$", MinorUnits: 2, SymbolFirst: true, DecimalSep: ".", GroupSep: ","},
	"GBP": {Code: "GBP", Symbol: "£", MinorUnits: 2, SymbolFirst: true, DecimalSep: ".", GroupSep: ","},
	"JPY": {Code: "JPY", Symbol: "¥", MinorUnits: 0, SymbolFirst: true, DecimalSep: ".", GroupSep: ","},
}

// DefaultRates are units of the target currency per 1 SEK.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"SEK": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.088"),
		"USD": decimal.RequireFromString("0.095"),
		"GBP": decimal.RequireFromString("0.075"),
	}
}

// SupportedLocales returns the locale codes the storefront is translated into.
func SupportedLocales() []string {
	locales := make([]string, 0, len(localeCurrency))
	for l := range localeCurrency {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// IsSupportedLocale reports whether locale (after normalisation) has its own translation.
func IsSupportedLocale(locale string) bool {
	_, ok := localeCurrency[baseLanguage(locale)]
	return ok
}

// NormalizeLocale lower-cases locale, strips any region suffix ("en-US" -> "en")
// and falls back to DefaultLocale for anything unsupported.
func NormalizeLocale(locale string) string {
	l := baseLanguage(locale)
	if _, ok := localeCurrency[l]; !ok {
		return DefaultLocale
	}
	return l
}

func baseLanguage(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i >= 0 {
		l = l[:i]
	}
	return l
}

// Resolver converts base-currency amounts using a rate table that may be
// replaced at runtime by a Refresher.
type Resolver struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewResolver creates a Resolver. A nil or empty table falls back to DefaultRates.
func NewResolver(rates map[string]decimal.Decimal) *Resolver {
	r := &Resolver{rates: map[string]decimal.Decimal{BaseCurrency: decimal.NewFromInt(1)}}
	if len(rates) == 0 {
		rates = DefaultRates()
	}
	r.UpdateRates(rates)
	return r
}

// ResolveCurrency returns the display currency for locale.
func (r *Resolver) ResolveCurrency(locale string) string {
	return localeCurrency[NormalizeLocale(locale)]
}

// UpdateRates merges rates into the table. Non-positive rates and unknown
// currencies are ignored; the base currency is pinned to 1.
func (r *Resolver) UpdateRates(rates map[string]decimal.Decimal) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for code, rate := range rates {
		code = strings.ToUpper(code)
		if code == BaseCurrency {
			continue
		}
		if _, known := currencies[code]; !known || rate.Sign() <= 0 {
			continue
		}
		r.rates[code] = rate
		applied++
	}
	return applied
}

// Rate returns the multiplier applied to SEK amounts for code.
func (r *Resolver) Rate(code string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rate, ok := r.rates[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	return rate, nil
}

// Convert turns a SEK amount into target, rounded half-even to the target's minor unit.
func (r *Resolver) Convert(amount decimal.Decimal, target string) (decimal.Decimal, error) {
	rate, err := r.Rate(target)
	if err != nil {
		return decimal.Zero, err
	}
	info := currencies[strings.ToUpper(target)]
	return amount.Mul(rate).RoundBank(info.MinorUnits), nil
}

// ConvertWithRate converts a SEK amount with a rate captured earlier, rounding
// like Convert. Checkout uses it so a rate refresh mid-session cannot change
// the charged amount.
func ConvertWithRate(amount, rate decimal.Decimal, target string) decimal.Decimal {
	info, ok := currencies[strings.ToUpper(target)]
	if !ok {
		info.MinorUnits = 2
	}
	return amount.Mul(rate).RoundBank(info.MinorUnits)
}

// ToMinorUnits expresses amount (already in currency) as an integer count of
// the currency's minor unit, e.g. 499.50 SEK -> 49950.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	info, ok := currencies[strings.ToUpper(currency)]
	if !ok {
		info.MinorUnits = 2
	}
	return amount.Shift(info.MinorUnits).RoundBank(0).IntPart()
}

// Format renders amount (already in currency) for display.
func Format(amount decimal.Decimal, currency string) string {
	info, ok := currencies[strings.ToUpper(currency)]
	if !ok {
		return amount.RoundBank(2).StringFixed(2) + " " + strings.ToUpper(currency)
	}

	rounded := amount.RoundBank(info.MinorUnits)
	sign := ""
	if rounded.Sign() < 0 {
		sign = "-"
		rounded = rounded.Neg()
	}

	digits := rounded.StringFixed(info.MinorUnits)
	intPart, fracPart := digits, ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart, fracPart = digits[:i], digits[i+1:]
	}

	number := groupThousands(intPart, info.GroupSep)
	if fracPart != "" {
		number += info.DecimalSep + fracPart
	}

	if info.SymbolFirst {
		return sign + info.Symbol + number
	}
	return sign + number + " " + info.Symbol
}

// Format renders amount using the resolver's currency table.
func (r *Resolver) Format(amount decimal.Decimal, currency string) string {
	return Format(amount, currency)
}

func groupThousands(s, sep string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
