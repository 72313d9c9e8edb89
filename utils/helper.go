package utils

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func DereferencePtr[T any](ptr *T, fallback T) T {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

// NormalizePartyName is the canonical form used to join voucher party names
// to vendor/customer master rows. Tally exports are inconsistent about case
// and padding.
func NormalizePartyName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DaysBetween returns whole days from a to b, truncated to date boundaries.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
