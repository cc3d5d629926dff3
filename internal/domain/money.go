package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code amounts are denominated in.
const Currency = money.INR

// FormatAmount renders an amount in major units as a display string such as
// "₹1,234.50". Fractions beyond the currency's minor unit are rounded.
func FormatAmount(amount float64) string {
	cur := money.GetCurrency(Currency)
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), Currency).Display()
}
