package billing

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownProduct is returned for SKUs outside the catalog.
	ErrUnknownProduct = errors.New("unknown product sku")
	// ErrProductNotConfigured is returned when a catalog SKU has no provider
	// product id mapped for this deployment.
	ErrProductNotConfigured = errors.New("product not configured for checkout provider")
)

// Product is one purchasable token pack.
type Product struct {
	SKU         string
	Tokens      int
	AmountCents int64
	Currency    string
}

// defaultProducts is the static token-pack catalog.
var defaultProducts = []Product{
	{SKU: "validator_3", Tokens: 3, AmountCents: 499, Currency: "USD"},
	{SKU: "validator_10", Tokens: 10, AmountCents: 999, Currency: "USD"},
	{SKU: "validator_30", Tokens: 30, AmountCents: 1999, Currency: "USD"},
}

// Catalog maps SKUs to token packs and to the deployment-specific product ids
// registered with the checkout provider.
type Catalog struct {
	products    map[string]Product
	providerIDs map[string]string
}

// NewCatalog builds the static catalog. providerIDs maps SKU to the checkout
// provider's product id; SKUs without a mapping cannot start a checkout.
func NewCatalog(providerIDs map[string]string) *Catalog {
	products := make(map[string]Product, len(defaultProducts))
	for _, p := range defaultProducts {
		products[p.SKU] = p
	}
	if providerIDs == nil {
		providerIDs = map[string]string{}
	}
	return &Catalog{products: products, providerIDs: providerIDs}
}

// Product returns the pack for a SKU or ErrUnknownProduct.
func (c *Catalog) Product(sku string) (Product, error) {
	p, ok := c.products[sku]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, sku)
	}
	return p, nil
}

// ProviderProductID returns the provider-side product id for a SKU.
func (c *Catalog) ProviderProductID(sku string) (string, error) {
	id, ok := c.providerIDs[sku]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s", ErrProductNotConfigured, sku)
	}
	return id, nil
}

// SKUs lists the catalog SKUs, for request validation.
func (c *Catalog) SKUs() []string {
	skus := make([]string, 0, len(c.products))
	for _, p := range defaultProducts {
		skus = append(skus, p.SKU)
	}
	return skus
}

// ParseProviderIDs decodes the SKU to provider-product-id JSON object from
// configuration. An empty string yields an empty mapping.
func ParseProviderIDs(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var ids map[string]string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("invalid provider product ids mapping: %w", err)
	}
	return ids, nil
}
