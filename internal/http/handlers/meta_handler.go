package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/ZenRasta/IbisExchange-sub000/internal/http/dto"
	"github.com/ZenRasta/IbisExchange-sub000/internal/models"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaCurrency struct {
	Code           string   `json:"code"`
	PaymentMethods []string `json:"payment_methods"`
}

// GetCurrencies lists supported fiat currencies with their payment methods.
// GET /meta/currencies
func (h *MetaHandler) GetCurrencies(c *fiber.Ctx) error {
	out := make([]MetaCurrency, 0, len(models.PaymentMethodsByCurrency))
	for code, methods := range models.PaymentMethodsByCurrency {
		out = append(out, MetaCurrency{Code: code, PaymentMethods: methods})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

// GetPaymentMethods lists payment methods for one currency.
// GET /meta/payment-methods?currency=RUB
func (h *MetaHandler) GetPaymentMethods(c *fiber.Ctx) error {
	currency := c.Query("currency")
	if !models.IsSupportedCurrency(currency) {
		return badRequest(c, "unsupported currency")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: models.PaymentMethodsByCurrency[currency]})
}
