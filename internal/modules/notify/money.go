package notify

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"NGN": "₦",
	"GHS": "GH₵",
	"ZAR": "R",
	"KES": "KSh",
	"USD": "$",
	"EUR": "€",
}

// formatMoney renders a major-unit amount for display. Unknown currencies keep the code as a suffix.
func formatMoney(currency, amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return strings.TrimSpace(amount + " " + currency)
	}
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return sym + d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + currency
}
