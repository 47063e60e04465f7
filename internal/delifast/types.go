package delifast

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Payment method codes understood by Delifast
const (
	PaymentMethodCOD     = 0
	PaymentMethodPrepaid = 1
)

// OrderData is the create-shipment request body
type OrderData struct {
	BillingFirstName string `json:"billing_first_name"`
	BillingLastName  string `json:"billing_last_name"`
	BillingCompany   string `json:"billing_company"`
	BillingCountry   string `json:"billing_country"`
	BillingAddress1  string `json:"billing_address_1"`
	BillingAddress2  string `json:"billing_address_2"`
	BillingCity      string `json:"billing_city"`
	BillingState     string `json:"billing_state"`
	BillingPhone     string `json:"billing_phone"`
	BillingEmail     string `json:"billing_email"`
	BillingRef       string `json:"billing_ref"`

	TotalPrice      decimal.Decimal `json:"totalPrice"`
	CODAmount       decimal.Decimal `json:"codAmount"`
	PaymentMethodID int             `json:"paymentMethodId"`

	ShippingFeesOnSender bool `json:"shippingFeesOnSender"`
	ShippingFeesPaid     bool `json:"shippingFeesPaid"`

	Products []Product `json:"Products"`
}

// Product is one line item as Delifast expects it
type Product struct {
	ProductName string `json:"ProductName"`
	Color       string `json:"Color"`
	Size        string `json:"Size"`
	Quantity    string `json:"Quantity"`
}

// MarshalJSON sends money as JSON numbers; decimal.Decimal marshals to strings by default
func (o OrderData) MarshalJSON() ([]byte, error) {
	type alias OrderData
	return json.Marshal(struct {
		alias
		TotalPrice json.Number `json:"totalPrice"`
		CODAmount  json.Number `json:"codAmount"`
	}{
		alias:      alias(o),
		TotalPrice: json.Number(o.TotalPrice.StringFixed(2)),
		CODAmount:  json.Number(o.CODAmount.StringFixed(2)),
	})
}
