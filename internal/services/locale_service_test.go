package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
)

type stubLocator struct {
	country string
	err     error
	calls   int
}

func (s *stubLocator) Country(context.Context, string) (string, error) {
	s.calls++
	return s.country, s.err
}

func TestLocaleForCountry(t *testing.T) {
	cases := map[string]string{
		"SE": "sv", "se": "sv",
		"MX": "es", "PE": "es",
		"AT": "de", "LI": "de",
		"BE": "fr", "MC": "fr",
		"US": "en", "NO": "en", "": "en",
	}
	for country, want := range cases {
		assert.Equal(t, want, services.LocaleForCountry(country), country)
	}
}

func TestSuggest_PromptsWhenLocalesDiffer(t *testing.T) {
	geo := &stubLocator{country: "DE"}
	svc := services.NewLocaleService(geo, nil)

	got := svc.Suggest(context.Background(), services.SuggestInput{CurrentLocale: "sv", Path: "/products/night-cream"})
	assert.True(t, got.Prompt)
	assert.Equal(t, "de", got.SuggestedLocale)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, "/de/products/night-cream", got.RedirectPath)
}

func TestSuggest_NeverPromptsForSameLocale(t *testing.T) {
	for _, country := range []string{"SE", "ES", "MX", "AR", "CO", "CL", "PE", "DE", "AT", "CH", "LI", "FR", "BE", "LU", "MC", "US", "JP"} {
		current := services.LocaleForCountry(country)
		svc := services.NewLocaleService(&stubLocator{country: country}, nil)
		got := svc.Suggest(context.Background(), services.SuggestInput{CurrentLocale: current, Path: "/"})
		assert.False(t, got.Prompt, country)
	}
}

func TestSuggest_SkipsLookup(t *testing.T) {
	geo := &stubLocator{country: "FR"}
	svc := services.NewLocaleService(geo, nil)

	assert.False(t, svc.Suggest(context.Background(), services.SuggestInput{CurrentLocale: "sv", HasPreference: true}).Prompt)
	assert.False(t, svc.Suggest(context.Background(), services.SuggestInput{CurrentLocale: "sv", PromptedThisSession: true}).Prompt)
	assert.Equal(t, 0, geo.calls)
}

func TestSuggest_LookupFailureIsSilent(t *testing.T) {
	svc := services.NewLocaleService(&stubLocator{err: errors.New("timeout")}, nil)

	got := svc.Suggest(context.Background(), services.SuggestInput{CurrentLocale: "en", Path: "/en"})
	assert.False(t, got.Prompt)
	assert.Equal(t, "en", got.CurrentLocale)
}

func TestAccept(t *testing.T) {
	svc := services.NewLocaleService(nil, nil)

	locale, path := svc.Accept("fr", "/de/shop?x=1")
	assert.Equal(t, "fr", locale)
	assert.Equal(t, "/fr/shop?x=1", path)

	locale, path = svc.Accept("sv", "/en/products/serum")
	assert.Equal(t, "sv", locale)
	assert.Equal(t, "/products/serum", path, "the default locale is unprefixed")

	_, path = svc.Accept("es", "/")
	assert.Equal(t, "/es", path)
}

func TestLocalizedPath(t *testing.T) {
	assert.Equal(t, "/", services.LocalizedPath("sv", "/en"))
	assert.Equal(t, "/en/about", services.LocalizedPath("en", "about"))
	assert.Equal(t, "/de/entry", services.LocalizedPath("de", "/entry"), "only whole segments are locale prefixes")
	assert.Equal(t, "de", services.LocaleFromPath("/de/shop"))
	assert.Equal(t, "sv", services.LocaleFromPath("/shop"))
}

func TestLocalizedPath_StaysOnOrigin(t *testing.T) {
	assert.Equal(t, "/evil.com", services.LocalizedPath("sv", "//evil.com"))
	assert.Equal(t, "/de/evil.com", services.LocalizedPath("de", "//evil.com"))
	assert.Equal(t, "/evil.example.com", services.LocalizedPath("sv", "/en//evil.example.com"))
	assert.Equal(t, "/fr/evil.com", services.LocalizedPath("fr", "/\\evil.com"))

	_, path := services.NewLocaleService(nil, nil).Accept("sv", "//evil.example.com/phish")
	assert.Equal(t, "/evil.example.com/phish", path)
}
