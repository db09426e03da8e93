package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CreemConfig holds the payment provider settings.
type CreemConfig struct {
	APIKey        string        `env:"CREEM_API_KEY"`                                // APIKey authenticates checkout session creation.
	WebhookSecret string        `env:"CREEM_WEBHOOK_SECRET"`                         // WebhookSecret verifies inbound events; verification is skipped when empty.
	ProductIDs    string        `env:"CREEM_PRODUCT_IDS" envDefault:"{}"`            // ProductIDs is a JSON object mapping SKU to provider product id.
	BaseURL       string        `env:"CREEM_API_URL" envDefault:"https://api.creem.io"` // BaseURL is the provider API root.
	Timeout       time.Duration `env:"CREEM_TIMEOUT" envDefault:"30s"`               // Timeout bounds checkout session creation.
}

// CreemClient talks to the Creem checkout API.
type CreemClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewCreemClient(cfg CreemConfig) *CreemClient {
	return &CreemClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type creemCheckoutRequest struct {
	ProductID  string            `json:"product_id"`
	SuccessURL string            `json:"success_url"`
	RequestID  string            `json:"request_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type creemCheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckout creates a hosted checkout session and returns its URL.
func (c *CreemClient) CreateCheckout(ctx context.Context, req ProviderCheckoutRequest) (ProviderCheckoutSession, error) {
	body, err := json.Marshal(creemCheckoutRequest{
		ProductID:  req.ProductID,
		SuccessURL: req.SuccessURL,
		RequestID:  req.RequestID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return ProviderCheckoutSession{}, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return ProviderCheckoutSession{}, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ProviderCheckoutSession{}, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ProviderCheckoutSession{}, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProviderCheckoutSession{}, fmt.Errorf("checkout request returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed creemCheckoutResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return ProviderCheckoutSession{}, fmt.Errorf("decode checkout response: %w", err)
	}
	if parsed.CheckoutURL == "" {
		return ProviderCheckoutSession{}, fmt.Errorf("checkout response missing checkout_url")
	}

	return ProviderCheckoutSession{CheckoutURL: parsed.CheckoutURL}, nil
}
