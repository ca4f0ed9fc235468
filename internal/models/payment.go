package models

// Payment methods accepted per fiat currency. The fiat leg settles
// out-of-band, so the platform only validates that the declared method
// makes sense for the currency.
var PaymentMethodsByCurrency = map[string][]string{
	"RUB": {"sberbank", "tinkoff", "alfa", "sbp", "yoomoney"},
	"USD": {"bank_transfer", "wise", "zelle", "paypal"},
	"EUR": {"sepa", "wise", "revolut"},
	"UAH": {"monobank", "privat24"},
	"KZT": {"kaspi", "halyk"},
	"TRY": {"ziraat", "papara"},
}

func IsSupportedCurrency(currency string) bool {
	_, ok := PaymentMethodsByCurrency[currency]
	return ok
}

func IsValidPaymentMethod(currency, method string) bool {
	for _, m := range PaymentMethodsByCurrency[currency] {
		if m == method {
			return true
		}
	}
	return false
}
