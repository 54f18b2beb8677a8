package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"videojobs/internal/infra/geoip"
)

// LanguageHeader lets clients pin the narration language explicitly.
const LanguageHeader = "X-Language"

type languageKey struct{}
type countryKey struct{}
type tokenLanguageKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// Language stores the caller's preferred narration language in the request
// context. Jobs created without an explicit language fall back to it.
func Language(defaultLanguage string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			lang := detectLanguage(r, defaultLanguage, country)
			ctx := context.WithValue(r.Context(), languageKey{}, lang)
			if country != "" {
				ctx = context.WithValue(ctx, countryKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(r *http.Request, fallback, country string) string {
	if v := baseLanguage(r.Header.Get(LanguageHeader)); v != "" {
		return v
	}
	if v := parseAcceptLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	if v := geoip.LanguageForCountry(country); v != "" {
		return v
	}
	if v := baseLanguage(fallback); v != "" {
		return v
	}
	return "en"
}

// parseAcceptLanguage returns the base of the highest weighted tag.
func parseAcceptLanguage(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if tag == language.Und {
			continue
		}
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	return ""
}

func baseLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LanguageFromContext returns the resolved language, preferring a language
// carried in the bearer token over header detection.
func LanguageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenLanguageKey{}).(string); ok {
		if base := baseLanguage(v); base != "" {
			return base
		}
	}
	if v, ok := ctx.Value(languageKey{}).(string); ok {
		return v
	}
	return ""
}

func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryKey{}).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry checks CDN country headers first, then the region subtag of
// the requested language, then the GeoIP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && !strings.EqualFold(val, "XX") {
			return strings.ToUpper(val)
		}
	}
	if region := tagRegion(r.Header.Get(LanguageHeader)); region != "" {
		return region
	}
	if region := tagRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// tagRegion returns an explicit region subtag; inferred regions are ignored.
func tagRegion(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	region, conf := tags[0].Region()
	if conf != language.Exact {
		return ""
	}
	return region.String()
}
