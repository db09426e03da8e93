package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/densematrix/idea-validator/internal/analysis"
	"github.com/densematrix/idea-validator/internal/billing"
	"github.com/densematrix/idea-validator/internal/entitlement"
	"github.com/densematrix/idea-validator/internal/metrics"
	"github.com/densematrix/idea-validator/pkg/validator"
	"github.com/densematrix/idea-validator/pkg/webhook"
)

// signatureHeader carries the provider's hex HMAC of the raw webhook body.
const signatureHeader = "creem-signature"

// Handler holds the HTTP handlers for the validator API.
type Handler struct {
	analysis      *analysis.Service
	engine        *entitlement.Engine
	checkout      *billing.CheckoutService
	reconciler    *billing.Reconciler
	webhookSecret string
	metrics       *metrics.Metrics
	log           *slog.Logger
}

func NewHandler(
	analysisSvc *analysis.Service,
	engine *entitlement.Engine,
	checkout *billing.CheckoutService,
	reconciler *billing.Reconciler,
	webhookSecret string,
	m *metrics.Metrics,
	log *slog.Logger,
) *Handler {
	return &Handler{
		analysis:      analysisSvc,
		engine:        engine,
		checkout:      checkout,
		reconciler:    reconciler,
		webhookSecret: webhookSecret,
		metrics:       m,
		log:           log.With(slog.String("component", "api")),
	}
}

type validateResponse struct {
	ReportID string `json:"report_id"`
	analysis.Result
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "Device ID is required")
		return
	}

	var req analysis.ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	report, basis, err := h.analysis.Validate(r.Context(), deviceID, req)
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:   "Validation failed",
				Details: verrs.Details(),
			})
		case errors.Is(err, entitlement.ErrNoCredits):
			respondError(w, http.StatusPaymentRequired,
				"No generation credits remaining. Please purchase more validations.")
		case errors.Is(err, analysis.ErrAnalysisUnavailable):
			respondError(w, http.StatusServiceUnavailable, "Analysis service unavailable")
		case errors.Is(err, analysis.ErrMalformedResult):
			respondError(w, http.StatusBadGateway, "Analysis service returned an unusable report")
		default:
			h.log.ErrorContext(r.Context(), "validate failed", slog.Any("error", err))
			respondError(w, http.StatusInternalServerError, "Validation failed")
		}
		return
	}

	h.metrics.RecordValidation(basis)
	respondJSON(w, http.StatusOK, validateResponse{
		ReportID: report.ID.String(),
		Result:   report.Result,
	})
}

type reportResponse struct {
	ID              string `json:"id"`
	IdeaTitle       string `json:"idea_title"`
	IdeaDescription string `json:"idea_description"`
	Language        string `json:"language"`
	analysis.Result
	CreatedAt string `json:"created_at"`
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analysis.Report(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		if errors.Is(err, analysis.ErrReportNotFound) {
			respondError(w, http.StatusNotFound, "Report not found")
			return
		}
		h.log.ErrorContext(r.Context(), "load report failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, reportResponse{
		ID:              report.ID.String(),
		IdeaTitle:       report.IdeaTitle,
		IdeaDescription: report.IdeaDescription,
		Language:        report.Language,
		Result:          report.Result,
		CreatedAt:       report.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *Handler) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "Device ID is required")
		return
	}

	status, err := h.engine.Status(r.Context(), deviceID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "token status failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type checkoutRequest struct {
	ProductSKU string `json:"product_sku"`
	DeviceID   string `json:"device_id"`
}

func (r *checkoutRequest) Validate() error {
	return validator.Apply(
		validator.RequiredString("product_sku", r.ProductSKU),
		validator.RequiredString("device_id", r.DeviceID),
	)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:   "Validation failed",
				Details: verrs.Details(),
			})
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	checkout, err := h.checkout.CreateCheckout(r.Context(), req.DeviceID, req.ProductSKU)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownProduct):
			respondError(w, http.StatusBadRequest, "Invalid product SKU")
		case errors.Is(err, billing.ErrProductNotConfigured):
			h.log.ErrorContext(r.Context(), "product not configured", slog.String("product_sku", req.ProductSKU))
			respondError(w, http.StatusInternalServerError, "Product not configured")
		case errors.Is(err, billing.ErrProviderUnavailable):
			respondError(w, http.StatusServiceUnavailable, "Payment service unavailable")
		default:
			h.log.ErrorContext(r.Context(), "checkout failed", slog.Any("error", err))
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	respondJSON(w, http.StatusOK, checkout)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable body")
		return
	}

	// Verification runs only when a secret is configured; local setups
	// without one accept unsigned deliveries.
	if h.webhookSecret != "" {
		if err := webhook.Verify(h.webhookSecret, body, r.Header.Get(signatureHeader)); err != nil {
			h.log.WarnContext(r.Context(), "webhook signature rejected", slog.Any("error", err))
			respondError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	outcome, err := h.reconciler.HandleEvent(r.Context(), body)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidEvent) {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		h.log.ErrorContext(r.Context(), "webhook processing failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if outcome.Status == billing.OutcomeSuccess {
		h.metrics.RecordPayment(outcome.ProductSKU, outcome.AmountCents)
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	verification, err := h.checkout.Verify(r.Context(), chi.URLParam(r, "checkoutID"))
	if err != nil {
		if errors.Is(err, billing.ErrTransactionNotFound) {
			respondError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.ErrorContext(r.Context(), "verify payment failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, verification)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "idea-validator",
	})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "AI Startup Idea Validator API",
		"version": "1.0.0",
	})
}
