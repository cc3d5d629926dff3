package domain

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// currencyPrefixes are stripped before sanitising. "rs." must precede "rs" so
// its dot is not read as a decimal point.
var currencyPrefixes = []string{"₹", "inr", "rs.", "rs"}

// ParseAmount sanitizes a user-entered currency string ("₹1,000.50", "INR 2500",
// "Rs. 1,000") by removing a leading currency marker and then every character
// that is not a digit, '.' or '-'. The result must be strictly positive.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, stripCurrencyPrefix(raw))
	if cleaned == "" {
		return decimal.Zero, NewValidationError("amount", "%q is not a number", raw)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "%q is not a number", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewValidationError("amount", "must be greater than zero")
	}
	return amount, nil
}

func stripCurrencyPrefix(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// ValidateAmount rejects non-positive and non-finite amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return NewValidationError("amount", "must be a finite number")
	}
	if amount <= 0 {
		return NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

// CheckInvestmentBounds validates an amount against a profile's min/max bounds.
func CheckInvestmentBounds(amount float64, p ProjectProfile) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if p.MinInvestment > 0 && amount < p.MinInvestment {
		return NewValidationError("amount", "minimum investment is %.2f", p.MinInvestment)
	}
	if p.MaxInvestment > 0 && amount > p.MaxInvestment {
		return NewValidationError("amount", "maximum investment is %.2f", p.MaxInvestment)
	}
	return nil
}
