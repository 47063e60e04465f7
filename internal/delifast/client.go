package delifast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrShipmentNotFound is returned by FindShipmentByReference when Delifast has
// no shipment for the reference yet
var ErrShipmentNotFound = errors.New("delifast shipment not found")

// Client calls the Delifast carrier API with the account API key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Delifast HTTP client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CreateShipmentResult is the outcome of a create call. ShipmentID is empty when
// Delifast accepted the order but did not return an id synchronously.
type CreateShipmentResult struct {
	ShipmentID  string
	NeedsLookup bool
}

// ShipmentStatusResult is the current carrier status of a shipment
type ShipmentStatusResult struct {
	Status        string `json:"status"`
	StatusDetails string `json:"statusDetails"`
}

// CreateShipment posts mapped order data to Delifast
func (c *Client) CreateShipment(ctx context.Context, shop string, order *OrderData) (*CreateShipmentResult, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order data: %w", err)
	}

	body, status, err := c.do(ctx, shop, http.MethodPost, c.baseURL+"/api/shipments", payload)
	if err != nil {
		c.logger.Warn("Delifast create shipment request failed", zap.String("shop", shop), zap.String("order_ref", order.BillingRef), zap.Error(err))
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return nil, fmt.Errorf("delifast returned %d: %s", status, errorMessage(body))
	}

	raw, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("invalid delifast create response: %w", err)
	}
	if ok, present := raw["success"].(bool); present && !ok {
		return nil, fmt.Errorf("delifast rejected shipment: %s", errorMessage(body))
	}

	result := &CreateShipmentResult{
		ShipmentID: firstString(raw, "shipmentId", "shipment_id", "ShipmentId", "id"),
	}
	if v, ok := raw["needsLookup"].(bool); ok {
		result.NeedsLookup = v
	}
	// 202 means the shipment is queued on their side; the id comes later
	if status == http.StatusAccepted {
		result.NeedsLookup = true
	}
	return result, nil
}

// GetShipmentStatus returns the carrier status of a real shipment id
func (c *Client) GetShipmentStatus(ctx context.Context, shop, shipmentID string) (*ShipmentStatusResult, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/shipments/%s/status", c.baseURL, url.PathEscape(shipmentID))
	body, status, err := c.do(ctx, shop, http.MethodGet, u, nil)
	if err != nil {
		c.logger.Warn("Delifast status request failed", zap.String("shop", shop), zap.String("shipment_id", shipmentID), zap.Error(err))
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("delifast returned %d: %s", status, errorMessage(body))
	}

	raw, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("invalid delifast status response: %w", err)
	}
	result := &ShipmentStatusResult{
		Status:        strings.TrimSpace(firstString(raw, "status", "Status", "statusName")),
		StatusDetails: firstString(raw, "statusDetails", "status_details", "StatusDetails", "description"),
	}
	if result.Status == "" {
		return nil, fmt.Errorf("delifast status response has no status")
	}
	return result, nil
}

// FindShipmentByReference looks up the shipment Delifast created for an order
// reference (the billing_ref sent on create)
func (c *Client) FindShipmentByReference(ctx context.Context, shop, reference string) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}
	u, err := url.Parse(c.baseURL + "/api/shipments")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("reference", reference)
	u.RawQuery = q.Encode()

	body, status, err := c.do(ctx, shop, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrShipmentNotFound
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("delifast returned %d: %s", status, errorMessage(body))
	}

	raw, err := decodeObject(body)
	if err != nil {
		return "", fmt.Errorf("invalid delifast lookup response: %w", err)
	}
	id := firstString(raw, "shipmentId", "shipment_id", "ShipmentId", "id")
	if id == "" {
		return "", ErrShipmentNotFound
	}
	return id, nil
}

func (c *Client) configured() error {
	if c.baseURL == "" || c.apiKey == "" {
		return fmt.Errorf("delifast client not configured: base URL and API key required")
	}
	return nil
}

func (c *Client) do(ctx context.Context, shop, method, u string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shop-Domain", shop)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read delifast response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	// Some endpoints wrap the payload in {"data": {...}}
	if inner, ok := raw["data"].(map[string]interface{}); ok {
		return inner, nil
	}
	return raw, nil
}

// firstString returns the first non-empty value among keys, accepting strings and numbers
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			if s := v.String(); s != "" && s != "0" {
				return s
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
	}
	return ""
}

func errorMessage(body []byte) string {
	var raw map[string]interface{}
	if json.Unmarshal(body, &raw) == nil {
		if msg := firstString(raw, "message", "error", "Message"); msg != "" {
			return msg
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
