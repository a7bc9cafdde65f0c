package market

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	errUnusableBar = errors.New("bar has no usable open/close")
)

// ChangePct returns ((close-open)/open)*100 with two fraction digits.
// A bar without a usable open or close yields Fallback.
func ChangePct(bar PriceBar) string {
	pct, err := changePct(bar)
	if err != nil {
		return Fallback
	}
	return pct
}

func changePct(bar PriceBar) (string, error) {
	if !usablePrice(bar.Open) || !usablePrice(bar.Close) {
		return "", errUnusableBar
	}
	open := decimal.NewFromFloat(bar.Open)
	cls := decimal.NewFromFloat(bar.Close)
	pct := cls.Sub(open).Div(open).Mul(hundred).Round(2)
	if pct.IsZero() {
		// avoid "-0.00"
		return Fallback, nil
	}
	return pct.StringFixed(2), nil
}

func usablePrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
