package mapper

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/shopify"
)

func testSettings() *domain.StoreSettings {
	return &domain.StoreSettings{
		Shop:           "demo.myshopify.com",
		Mode:           domain.DeliveryModeAuto,
		AutoSendStatus: domain.AutoSendTriggerPaid,
		DefaultCityID:  "99",
		FeesOnSender:   true,
		FeesPaid:       true,
	}
}

func TestPrepareOrder_Address(t *testing.T) {
	t.Run("prefers billing address", func(t *testing.T) {
		order := &shopify.Order{
			ID:              1,
			OrderNumber:     1001,
			BillingAddress:  &shopify.Address{FirstName: "Bill", ProvinceCode: "DU", CountryCode: "AE"},
			ShippingAddress: &shopify.Address{FirstName: "Ship", ProvinceCode: "SH"},
		}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.Equal(t, "Bill", res.Order.BillingFirstName)
		assert.Equal(t, CityDubai, res.Order.BillingCity)
		assert.Equal(t, "DU", res.Order.BillingState)
	})

	t.Run("falls back to shipping address", func(t *testing.T) {
		order := &shopify.Order{
			ID:              1,
			ShippingAddress: &shopify.Address{FirstName: "Ship", LastName: "To", Province: "Sharjah", Phone: "+971500000000"},
		}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.Equal(t, "Ship", res.Order.BillingFirstName)
		assert.Equal(t, "To", res.Order.BillingLastName)
		assert.Equal(t, CitySharjah, res.Order.BillingCity)
		assert.Equal(t, "+971500000000", res.Order.BillingPhone)
	})

	t.Run("no address yields empty fields and defaults", func(t *testing.T) {
		order := &shopify.Order{ID: 555, Phone: "0500", Email: "a@b.c"}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.Equal(t, "", res.Order.BillingFirstName)
		assert.Equal(t, "", res.Order.BillingAddress1)
		assert.Equal(t, DefaultCountry, res.Order.BillingCountry)
		assert.Equal(t, "99", res.Order.BillingCity)
		assert.Equal(t, "0500", res.Order.BillingPhone)
		assert.Equal(t, "a@b.c", res.Order.BillingEmail)
		assert.Equal(t, "555", res.Order.BillingRef)
	})

	t.Run("order reference prefers order number", func(t *testing.T) {
		res, err := PrepareOrder(&shopify.Order{ID: 9, OrderNumber: 1042, Name: "#1042"}, testSettings())
		require.NoError(t, err)
		assert.Equal(t, "1042", res.Order.BillingRef)
	})

	t.Run("missing settings is an error", func(t *testing.T) {
		_, err := PrepareOrder(&shopify.Order{ID: 1}, nil)
		assert.Error(t, err)
	})
}

func TestPrepareOrder_LineItems(t *testing.T) {
	order := &shopify.Order{
		ID: 1,
		LineItems: []shopify.LineItem{
			{Name: "Shirt - Red / M", Title: "Shirt", VariantTitle: "Color: Red / Size: M", Quantity: 2},
			{Title: "Mug", Quantity: 0},
			{},
		},
	}
	res, err := PrepareOrder(order, testSettings())
	require.NoError(t, err)
	require.Len(t, res.Order.Products, 3)

	assert.Equal(t, delifast.Product{ProductName: "Shirt - Red / M", Color: "Red", Size: "M", Quantity: "2"}, res.Order.Products[0])
	assert.Equal(t, "Mug", res.Order.Products[1].ProductName)
	assert.Equal(t, "1", res.Order.Products[1].Quantity)
	assert.Equal(t, "Product", res.Order.Products[2].ProductName)
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		color   string
		size    string
	}{
		{"english keywords", "Color: Red / Size: M", "Red", "M"},
		{"positional pair", "Red / M", "Red", "M"},
		{"single part is size", "M", "", "M"},
		{"arabic size keyword", "Color: أحمر / مقاس: M", "أحمر", "M"},
		{"arabic color keyword", "لون: أزرق / Size: L", "أزرق", "L"},
		{"definite article", "اللون: أسود / المقاس: XL", "أسود", "XL"},
		{"upper case keyword", "COLOUR - Green / SIZE: S", "Green", "S"},
		{"only size keyword", "Size: 42", "", "42"},
		{"three parts positional", "Red / M / Cotton", "Red", "M"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color, size := ParseVariant(tt.variant)
			assert.Equal(t, tt.color, color)
			assert.Equal(t, tt.size, size)
		})
	}
}

func TestPrepareOrder_Payment(t *testing.T) {
	total := decimal.RequireFromString("150.50")

	t.Run("cash on delivery gateway", func(t *testing.T) {
		order := &shopify.Order{
			ID:                  1,
			TotalPrice:          total,
			FinancialStatus:     "pending",
			PaymentGatewayNames: []string{"Cash on Delivery (COD)"},
		}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.True(t, res.Payment.IsCOD)
		assert.False(t, res.Payment.Fallback)
		assert.True(t, res.Order.CODAmount.Equal(total))
		assert.Equal(t, delifast.PaymentMethodCOD, res.Order.PaymentMethodID)
		assert.False(t, res.Order.ShippingFeesOnSender)
		assert.False(t, res.Order.ShippingFeesPaid)
	})

	t.Run("cod gateway wins over paid status", func(t *testing.T) {
		order := &shopify.Order{ID: 1, TotalPrice: total, FinancialStatus: "paid", PaymentGatewayNames: []string{"cod"}}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.Equal(t, delifast.PaymentMethodCOD, res.Order.PaymentMethodID)
	})

	t.Run("paid non cod order is prepaid", func(t *testing.T) {
		order := &shopify.Order{ID: 1, TotalPrice: total, FinancialStatus: "paid", PaymentGatewayNames: []string{"shopify_payments"}}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.True(t, res.Order.CODAmount.IsZero())
		assert.Equal(t, delifast.PaymentMethodPrepaid, res.Order.PaymentMethodID)
		assert.True(t, res.Order.ShippingFeesOnSender)
		assert.True(t, res.Order.ShippingFeesPaid)
	})

	t.Run("partially paid counts as paid", func(t *testing.T) {
		order := &shopify.Order{ID: 1, TotalPrice: total, FinancialStatus: "PARTIALLY_PAID", Gateway: "stripe"}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.Equal(t, delifast.PaymentMethodPrepaid, res.Order.PaymentMethodID)
	})

	t.Run("legacy gateway field is used when names are empty", func(t *testing.T) {
		order := &shopify.Order{ID: 1, TotalPrice: total, FinancialStatus: "paid", Gateway: "Cash"}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.True(t, res.Payment.IsCOD)
		assert.Equal(t, "Cash", res.Payment.Gateway)
	})

	t.Run("unpaid non cod order falls back to cod", func(t *testing.T) {
		order := &shopify.Order{ID: 1, TotalPrice: total, FinancialStatus: "pending", PaymentGatewayNames: []string{"bank_transfer"}}
		res, err := PrepareOrder(order, testSettings())
		require.NoError(t, err)
		assert.True(t, res.Payment.Fallback)
		assert.True(t, res.Order.CODAmount.Equal(total))
		assert.Equal(t, delifast.PaymentMethodCOD, res.Order.PaymentMethodID)
		assert.False(t, res.Order.ShippingFeesOnSender)
	})
}

func TestPrepareOrder_FromWebhookJSON(t *testing.T) {
	payload := `{
		"id": 820982911946154508,
		"name": "#9999",
		"order_number": 9999,
		"email": "jon@example.com",
		"total_price": "403.00",
		"financial_status": "paid",
		"payment_gateway_names": ["shopify_payments"],
		"billing_address": null,
		"shipping_address": {"first_name": "Steve", "address1": "123 Shipping Street", "province_code": "AZ", "country_code": "AE"},
		"line_items": [{"name": "IPod Nano - 8GB", "title": "IPod Nano", "variant_title": null, "quantity": 1}]
	}`
	var order shopify.Order
	require.NoError(t, json.Unmarshal([]byte(payload), &order))

	res, err := PrepareOrder(&order, testSettings())
	require.NoError(t, err)
	assert.Equal(t, "Steve", res.Order.BillingFirstName)
	assert.Equal(t, CityAbuDhabi, res.Order.BillingCity)
	assert.Equal(t, "9999", res.Order.BillingRef)
	assert.True(t, res.Order.TotalPrice.Equal(decimal.RequireFromString("403")))

	raw, err := json.Marshal(res.Order)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalPrice":403.00`)
	assert.Contains(t, string(raw), `"codAmount":0.00`)
}

func TestResolveCity(t *testing.T) {
	assert.Equal(t, CityDubai, ResolveCity("DU", "0"))
	assert.Equal(t, CityDubai, ResolveCity(" du ", "0"))
	assert.Equal(t, CityAjman, ResolveCity("AE-AJ", "0"))
	assert.Equal(t, CityRasAlKhaimah, ResolveCity("Ras Al Khaimah", "0"))
	assert.Equal(t, "0", ResolveCity("XX", "0"))
	assert.Equal(t, "0", ResolveCity("", "0"))
	assert.Equal(t, "", ResolveCity("nowhere", ""))
}

func TestShouldAutoSend(t *testing.T) {
	s := testSettings()
	assert.True(t, ShouldAutoSend(s, domain.AutoSendTriggerPaid))
	assert.False(t, ShouldAutoSend(s, domain.AutoSendTriggerCreated))
	assert.False(t, ShouldAutoSend(nil, domain.AutoSendTriggerPaid))

	s.Mode = domain.DeliveryModeManual
	assert.False(t, ShouldAutoSend(s, domain.AutoSendTriggerPaid))
}

func TestExtractOrderInfo(t *testing.T) {
	order := &shopify.Order{
		ID:                  7,
		Name:                "#1007",
		TotalPrice:          decimal.RequireFromString("10"),
		PaymentGatewayNames: []string{"cod"},
		ShippingAddress:     &shopify.Address{FirstName: "Ali", LastName: "Hassan"},
	}
	info := ExtractOrderInfo(order)
	assert.Equal(t, "7", info.ID)
	assert.Equal(t, "1007", info.OrderNumber)
	assert.Equal(t, "Ali Hassan", info.CustomerName)
	assert.Equal(t, "cod", info.Gateway)
}
