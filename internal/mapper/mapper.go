package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/shopify"
)

// DefaultCountry is used when the address carries no country
const DefaultCountry = "AE"

// Result is the mapped carrier request plus the facts the caller logs
type Result struct {
	Order   *delifast.OrderData
	Payment Payment
}

// Payment is the outcome of payment classification
type Payment struct {
	Gateway         string
	FinancialStatus string
	IsCOD           bool
	IsPaid          bool
	// Fallback is set when the order is neither COD nor paid and was treated as COD anyway
	Fallback bool
}

// PrepareOrder maps a Shopify order to the Delifast create-shipment request
func PrepareOrder(order *shopify.Order, settings *domain.StoreSettings) (*Result, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("store settings are required")
	}

	addr := pickAddress(order)
	province := firstNonEmpty(addr.ProvinceCode, addr.Province)

	data := &delifast.OrderData{
		BillingFirstName: addr.FirstName,
		BillingLastName:  addr.LastName,
		BillingCompany:   addr.Company,
		BillingCountry:   firstNonEmpty(addr.CountryCode, addr.Country, DefaultCountry),
		BillingAddress1:  addr.Address1,
		BillingAddress2:  addr.Address2,
		BillingCity:      ResolveCity(province, settings.DefaultCityID),
		BillingState:     province,
		BillingPhone:     firstNonEmpty(addr.Phone, order.Phone),
		BillingEmail:     firstNonEmpty(order.Email, addr.Email),
		BillingRef:       order.OrderNumberString(),
		TotalPrice:       order.TotalPrice,
		Products:         mapLineItems(order.LineItems),
	}

	payment := ClassifyPayment(order)
	applyPayment(data, payment, settings)

	return &Result{Order: data, Payment: payment}, nil
}

// pickAddress prefers billing, then shipping, then an empty address
func pickAddress(order *shopify.Order) shopify.Address {
	if order.BillingAddress != nil {
		return *order.BillingAddress
	}
	if order.ShippingAddress != nil {
		return *order.ShippingAddress
	}
	return shopify.Address{}
}

func mapLineItems(items []shopify.LineItem) []delifast.Product {
	products := make([]delifast.Product, 0, len(items))
	for _, item := range items {
		color, size := ParseVariant(item.VariantTitle)
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		products = append(products, delifast.Product{
			ProductName: firstNonEmpty(item.Name, item.Title, "Product"),
			Color:       color,
			Size:        size,
			Quantity:    strconv.Itoa(qty),
		})
	}
	return products
}

// PaymentGateway returns the first payment gateway name, falling back to the
// legacy singular gateway field
func PaymentGateway(order *shopify.Order) string {
	for _, g := range order.PaymentGatewayNames {
		if strings.TrimSpace(g) != "" {
			return g
		}
	}
	return order.Gateway
}

// IsCODGateway reports whether a gateway name means cash on delivery
func IsCODGateway(gateway string) bool {
	g := strings.ToLower(strings.TrimSpace(gateway))
	return g == "cod" ||
		strings.Contains(g, "cash") ||
		strings.Contains(g, "delivery") ||
		strings.Contains(g, "payment_on_delivery")
}

// ClassifyPayment decides between COD and prepaid
func ClassifyPayment(order *shopify.Order) Payment {
	gateway := PaymentGateway(order)
	financial := strings.ToLower(strings.TrimSpace(order.FinancialStatus))
	p := Payment{
		Gateway:         gateway,
		FinancialStatus: financial,
		IsCOD:           IsCODGateway(gateway),
		IsPaid:          financial == "paid" || financial == "partially_paid",
	}
	p.Fallback = !p.IsCOD && !p.IsPaid
	return p
}

func applyPayment(data *delifast.OrderData, p Payment, settings *domain.StoreSettings) {
	if p.IsCOD || p.Fallback {
		data.CODAmount = data.TotalPrice
		data.PaymentMethodID = delifast.PaymentMethodCOD
		// recipient pays the fees
		data.ShippingFeesOnSender = false
		data.ShippingFeesPaid = false
		return
	}
	data.CODAmount = decimal.Zero
	data.PaymentMethodID = delifast.PaymentMethodPrepaid
	data.ShippingFeesOnSender = settings.FeesOnSender
	data.ShippingFeesPaid = settings.FeesPaid
}

// OrderInfo is a short order summary for logs and admin responses
type OrderInfo struct {
	ID                string `json:"id"`
	OrderNumber       string `json:"order_number"`
	Email             string `json:"email,omitempty"`
	CustomerName      string `json:"customer_name,omitempty"`
	Phone             string `json:"phone,omitempty"`
	TotalPrice        string `json:"total_price"`
	FinancialStatus   string `json:"financial_status,omitempty"`
	FulfillmentStatus string `json:"fulfillment_status,omitempty"`
	Gateway           string `json:"gateway,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// ExtractOrderInfo summarizes an order
func ExtractOrderInfo(order *shopify.Order) OrderInfo {
	addr := pickAddress(order)
	return OrderInfo{
		ID:                order.IDString(),
		OrderNumber:       order.OrderNumberString(),
		Email:             order.Email,
		CustomerName:      strings.TrimSpace(addr.FirstName + " " + addr.LastName),
		Phone:             firstNonEmpty(addr.Phone, order.Phone),
		TotalPrice:        order.TotalPrice.String(),
		FinancialStatus:   order.FinancialStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		Gateway:           PaymentGateway(order),
		CreatedAt:         order.CreatedAt,
	}
}

// ShouldAutoSend reports whether the store wants orders sent automatically on trigger
func ShouldAutoSend(settings *domain.StoreSettings, trigger domain.AutoSendTrigger) bool {
	if settings == nil || settings.Mode != domain.DeliveryModeAuto {
		return false
	}
	return settings.AutoSendStatus == trigger
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
