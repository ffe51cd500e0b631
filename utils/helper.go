package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "FR"

// Patterns stripped from raw OCR names before catalog resolution. The supplier
// pattern removes legal forms and document noise; the product pattern removes
// packaging/lot suffixes.
var (
	SupplierNameCleanPattern = `(?i)\b(sarl|sas|sasu|eurl|sa|scop|ets|etablissements?)\b|[*#]|n°\s*\S+`
	ProductNameCleanPattern  = `(?i)\b(lot|colis|carton|x\d+|ref\.?\s*\S+)\b|[*#]`
)

var (
	regexCache   = map[string]*regexp.Regexp{}
	regexCacheMu sync.Mutex
)

func compileCached(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache[pattern] = re
	return re, nil
}

// CleanName strips the stored pattern from a raw OCR name and collapses the
// remaining whitespace. An empty result falls back to the trimmed raw name.
func CleanName(raw string, pattern string) string {
	name := strings.TrimSpace(raw)
	if pattern != "" {
		if re, err := compileCached(pattern); err == nil {
			name = re.ReplaceAllString(name, " ")
		}
	}
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return strings.TrimSpace(raw)
	}
	return name
}

func CleanSupplierName(raw string) string {
	return CleanName(raw, SupplierNameCleanPattern)
}

func CleanProductName(raw string) string {
	return CleanName(raw, ProductNameCleanPattern)
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// NormalizePhoneNumber returns the E.164 form, or the input unchanged when it
// does not parse as a valid number for the configured country.
func NormalizePhoneNumber(phoneNumber string, countryCode string) string {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// SafeDiv returns a/b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// PercentChange returns (new-old)/old*100, or zero when old is zero.
func PercentChange(oldValue, newValue decimal.Decimal) decimal.Decimal {
	if oldValue.IsZero() {
		return decimal.Zero
	}
	return newValue.Sub(oldValue).Div(oldValue).Mul(decimal.NewFromInt(100))
}

// TruncateToDay drops the time-of-day component, keeping the location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthBounds returns [first day of month, first day of next month).
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
