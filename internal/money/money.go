// Package money turns wire values into validated domain primitives: decimal
// amounts in major units become integer minor units of an ISO-4217 currency.
package money

import (
	"math"
	"strings"

	"auction-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// NormalizeCurrency upper-cases and validates an ISO-4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", domain.InvalidArgument("currency is required")
	}
	unit, err := currency.ParseISO(code)
	if err != nil || unit == currency.XXX {
		return "", domain.InvalidArgument("unknown currency %q", code)
	}
	return unit.String(), nil
}

// Scale is the number of minor-unit digits of a currency (0 for JPY, 2 for USD).
func Scale(code string) (int, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 0, domain.InvalidArgument("unknown currency %q", code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}

// Parse converts "12.50" USD into 1250 minor units. Negative amounts and
// precision finer than the currency's minor unit are rejected.
func Parse(amount, code string) (domain.Money, error) {
	cur, err := NormalizeCurrency(code)
	if err != nil {
		return domain.Money{}, err
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return domain.Money{}, domain.InvalidArgument("amount is required")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Money{}, domain.InvalidArgument("malformed amount %q", amount)
	}
	if d.IsNegative() {
		return domain.Money{}, domain.InvalidArgument("amount must not be negative")
	}

	scale, err := Scale(cur)
	if err != nil {
		return domain.Money{}, err
	}
	minor := d.Shift(int32(scale))
	if !minor.IsInteger() {
		return domain.Money{}, domain.InvalidArgument("amount %s has more than %d decimal places for %s", amount, scale, cur)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return domain.Money{}, domain.InvalidArgument("amount %s is too large", amount)
	}
	return domain.NewMoney(minor.IntPart(), cur), nil
}

// ParseOptional returns nil for an empty amount.
func ParseOptional(amount, code string) (*domain.Money, error) {
	if strings.TrimSpace(amount) == "" {
		return nil, nil
	}
	m, err := Parse(amount, code)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Format renders minor units back as a major-unit decimal string.
func Format(m domain.Money) string {
	scale, err := Scale(m.Currency)
	if err != nil {
		return decimal.NewFromInt(m.Amount).String()
	}
	return decimal.New(m.Amount, -int32(scale)).StringFixed(int32(scale))
}

// ParseID validates a UUID and returns its canonical form.
func ParseID(field, raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.InvalidArgument("%s is not a valid id", field)
	}
	return id.String(), nil
}
