package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrProviderUnavailable is returned when the checkout provider cannot be
// reached or answers with a failure.
var ErrProviderUnavailable = errors.New("checkout provider unavailable")

// CheckoutProvider creates hosted checkout sessions with the payment provider.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req ProviderCheckoutRequest) (ProviderCheckoutSession, error)
}

// ProviderCheckoutRequest is the provider-facing session request. RequestID
// carries the local checkout id as the correlation token for the completion
// event.
type ProviderCheckoutRequest struct {
	ProductID  string
	SuccessURL string
	RequestID  string
	Metadata   map[string]string
}

// ProviderCheckoutSession is the provider's session handle.
type ProviderCheckoutSession struct {
	CheckoutURL string
}

// Checkout is the result of initiating a checkout session.
type Checkout struct {
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutService initiates checkout sessions: it validates the SKU, writes a
// durable pending ledger row, then asks the provider for a redirect URL.
type CheckoutService struct {
	repo        TransactionRepository
	catalog     *Catalog
	provider    CheckoutProvider
	frontendURL string
	log         *slog.Logger
}

func NewCheckoutService(repo TransactionRepository, catalog *Catalog, provider CheckoutProvider, frontendURL string, log *slog.Logger) *CheckoutService {
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutService{
		repo:        repo,
		catalog:     catalog,
		provider:    provider,
		frontendURL: frontendURL,
		log:         log,
	}
}

// CreateCheckout starts a checkout session for the given device and SKU.
// The pending transaction is committed before the provider call, so a
// provider failure can leave an orphaned pending row; that row never grants
// tokens and is harmless.
func (s *CheckoutService) CreateCheckout(ctx context.Context, deviceID, productSKU string) (*Checkout, error) {
	product, err := s.catalog.Product(productSKU)
	if err != nil {
		return nil, err
	}
	providerProductID, err := s.catalog.ProviderProductID(productSKU)
	if err != nil {
		return nil, err
	}

	checkoutID := uuid.New().String()
	tx := &Transaction{
		ID:          uuid.New(),
		CheckoutID:  checkoutID,
		DeviceID:    deviceID,
		ProductSKU:  productSKU,
		AmountCents: product.AmountCents,
		Currency:    product.Currency,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckout(ctx, ProviderCheckoutRequest{
		ProductID:  providerProductID,
		SuccessURL: fmt.Sprintf("%s/payment/success?checkout_id=%s", s.frontendURL, checkoutID),
		RequestID:  checkoutID,
		Metadata: map[string]string{
			"device_id":   deviceID,
			"product_sku": productSKU,
		},
	})
	if err != nil {
		s.log.ErrorContext(ctx, "checkout provider call failed",
			"checkout_id", checkoutID,
			"product_sku", productSKU,
			"error", err,
		)
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		"checkout_id", checkoutID,
		"product_sku", productSKU,
		"amount_cents", product.AmountCents,
	)
	return &Checkout{CheckoutID: checkoutID, CheckoutURL: session.CheckoutURL}, nil
}

// Verify reports the settlement state of a checkout for the success page.
type Verification struct {
	Status      Status `json:"status"`
	ProductSKU  string `json:"product_sku"`
	TokensAdded int    `json:"tokens_added"`
}

// Verify looks up a checkout by id. Tokens are reported only once the
// transaction completed.
func (s *CheckoutService) Verify(ctx context.Context, checkoutID string) (*Verification, error) {
	tx, err := s.repo.FindByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	v := &Verification{Status: tx.Status, ProductSKU: tx.ProductSKU}
	if tx.Status == StatusCompleted {
		if product, err := s.catalog.Product(tx.ProductSKU); err == nil {
			v.TokensAdded = product.Tokens
		}
	}
	return v, nil
}
