package services

import (
	"context"
	"log"
	"strings"

	"storefront/pkg/currency"
	"storefront/pkg/metrics"
)

// CountryLocator resolves a visitor IP to a country code. *clients.GeoLocator implements it.
type CountryLocator interface {
	Country(ctx context.Context, clientIP string) (string, error)
}

// Cookie names the negotiator's choices are persisted under.
const (
	PreferredLocaleCookie = "preferred_locale"
	LocalePromptedCookie  = "locale_prompted"
)

var countryLocales = map[string]string{
	"SE": "sv",
	"ES": "es", "MX": "es", "AR": "es", "CO": "es", "CL": "es", "PE": "es",
	"DE": "de", "AT": "de", "CH": "de", "LI": "de",
	"FR": "fr", "BE": "fr", "LU": "fr", "MC": "fr",
}

// LocaleForCountry maps an ISO country code to a storefront locale.
// Anything not in the table gets English.
func LocaleForCountry(countryCode string) string {
	if l, ok := countryLocales[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return l
	}
	return "en"
}

// SuggestInput is what the negotiator knows about the visitor.
type SuggestInput struct {
	CurrentLocale       string
	Path                string
	HasPreference       bool
	PromptedThisSession bool
	ClientIP            string
}

// Suggestion tells the client whether to show the language prompt.
type Suggestion struct {
	Prompt          bool   `json:"prompt"`
	CurrentLocale   string `json:"currentLocale"`
	SuggestedLocale string `json:"suggestedLocale,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"`
	RedirectPath    string `json:"redirectPath,omitempty"`
}

// LocaleService decides whether to offer a language switch.
type LocaleService struct {
	geo     CountryLocator
	metrics *metrics.Metrics
}

func NewLocaleService(geo CountryLocator, m *metrics.Metrics) *LocaleService {
	return &LocaleService{geo: geo, metrics: m}
}

// Suggest prompts only on a first visit whose detected locale differs from
// the current one. A failed lookup means no prompt.
func (s *LocaleService) Suggest(ctx context.Context, in SuggestInput) Suggestion {
	current := currency.NormalizeLocale(in.CurrentLocale)
	out := Suggestion{CurrentLocale: current}
	if in.HasPreference || in.PromptedThisSession || s.geo == nil {
		return out
	}

	country, err := s.geo.Country(ctx, in.ClientIP)
	if err != nil {
		log.Printf("Warning: geolocation lookup failed, not prompting: %v", err)
		if s.metrics != nil {
			s.metrics.UpstreamFailures.WithLabelValues("geolocation").Inc()
		}
		return out
	}

	out.CountryCode = country
	suggested := LocaleForCountry(country)
	if suggested == current {
		return out
	}
	out.Prompt = true
	out.SuggestedLocale = suggested
	out.RedirectPath = LocalizedPath(suggested, in.Path)
	return out
}

// Accept returns the normalised locale and the path to redirect to.
func (s *LocaleService) Accept(locale, path string) (string, string) {
	l := currency.NormalizeLocale(locale)
	return l, LocalizedPath(l, path)
}

// LocalizedPath rewrites path under locale's prefix. The default locale is
// served unprefixed.
func LocalizedPath(locale, path string) string {
	rest := StripLocalePrefix(path)
	if locale == currency.DefaultLocale {
		return rest
	}
	if rest == "/" {
		return "/" + locale
	}
	return "/" + locale + rest
}

// StripLocalePrefix removes a leading supported-locale segment. The result
// is always a single-slash rooted path on this origin.
func StripLocalePrefix(path string) string {
	path = sameOriginPath(path)
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if currency.IsSupportedLocale(segments[0]) && len(segments[0]) == 2 {
		if len(segments) == 1 || segments[1] == "" {
			return "/"
		}
		return sameOriginPath(segments[1])
	}
	return path
}

// sameOriginPath collapses leading slashes and backslashes so the result
// cannot be read as a scheme-relative URL.
func sameOriginPath(path string) string {
	return "/" + strings.TrimLeft(path, "/\\")
}

// LocaleFromPath returns the locale a path is served under.
func LocaleFromPath(path string) string {
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(segments[0]) == 2 && currency.IsSupportedLocale(segments[0]) {
		return strings.ToLower(segments[0])
	}
	return currency.DefaultLocale
}
