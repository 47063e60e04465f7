package shopify

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned by GetOrder when Shopify has no such order
var ErrOrderNotFound = errors.New("shopify order not found")

// Order is the order payload posted to orders/* webhooks (and returned by the
// REST orders endpoint). Only the fields the app reads are declared.
type Order struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	OrderNumber         int64           `json:"order_number"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	Currency            string          `json:"currency"`
	FinancialStatus     string          `json:"financial_status"`
	FulfillmentStatus   string          `json:"fulfillment_status"`
	Gateway             string          `json:"gateway"`
	PaymentGatewayNames []string        `json:"payment_gateway_names"`
	BillingAddress      *Address        `json:"billing_address"`
	ShippingAddress     *Address        `json:"shipping_address"`
	LineItems           []LineItem      `json:"line_items"`
	Tags                string          `json:"tags"`
	CreatedAt           string          `json:"created_at"`
}

type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

type LineItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
}

// IDString returns the numeric order id as a string
func (o *Order) IDString() string {
	return strconv.FormatInt(o.ID, 10)
}

// OrderNumberString returns the human order number without "#" (e.g. "1033"),
// falling back to the numeric id
func (o *Order) OrderNumberString() string {
	if o.OrderNumber > 0 {
		return strconv.FormatInt(o.OrderNumber, 10)
	}
	if name := strings.TrimPrefix(strings.TrimSpace(o.Name), "#"); name != "" {
		return name
	}
	return o.IDString()
}

// OrderGID returns the Admin GraphQL id for a numeric order id
func OrderGID(orderID string) string {
	return "gid://shopify/Order/" + orderID
}

// CustomerRef identifies a customer in compliance payloads
type CustomerRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CustomersDataRequestPayload is posted to customers/data_request
type CustomersDataRequestPayload struct {
	ShopID          int64       `json:"shop_id"`
	ShopDomain      string      `json:"shop_domain"`
	Customer        CustomerRef `json:"customer"`
	OrdersRequested []int64     `json:"orders_requested"`
	DataRequest     struct {
		ID int64 `json:"id"`
	} `json:"data_request"`
}

// CustomersRedactPayload is posted to customers/redact
type CustomersRedactPayload struct {
	ShopID         int64       `json:"shop_id"`
	ShopDomain     string      `json:"shop_domain"`
	Customer       CustomerRef `json:"customer"`
	OrdersToRedact []int64     `json:"orders_to_redact"`
}

// ShopRedactPayload is posted to shop/redact
type ShopRedactPayload struct {
	ShopID     int64  `json:"shop_id"`
	ShopDomain string `json:"shop_domain"`
}

// ScopesUpdatePayload is posted to app/scopes_update
type ScopesUpdatePayload struct {
	ID       string   `json:"id"`
	Previous []string `json:"previous"`
	Current  []string `json:"current"`
}
