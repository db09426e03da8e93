package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/densematrix/idea-validator/internal/entitlement"
	"github.com/densematrix/idea-validator/pkg/validator"
)

// SupportedLanguages lists the report languages the analyst prompt accepts.
var SupportedLanguages = []string{"en", "zh", "ja", "de", "fr", "ko", "es"}

// ValidateRequest is the submitted idea.
type ValidateRequest struct {
	IdeaTitle       string `json:"idea_title"`
	IdeaDescription string `json:"idea_description"`
	Language        string `json:"language"`
}

// Validate checks field bounds. An empty language defaults to "en" before
// validation runs.
func (r *ValidateRequest) Validate() error {
	if r.Language == "" {
		r.Language = "en"
	}
	return validator.Apply(
		validator.RequiredString("idea_title", r.IdeaTitle),
		validator.MinLenString("idea_title", r.IdeaTitle, 3),
		validator.MaxLenString("idea_title", r.IdeaTitle, 200),
		validator.RequiredString("idea_description", r.IdeaDescription),
		validator.MinLenString("idea_description", r.IdeaDescription, 20),
		validator.MaxLenString("idea_description", r.IdeaDescription, 5000),
		validator.OneOf("language", r.Language, SupportedLanguages),
	)
}

// Service orchestrates a validation run: entitlement check, analysis call,
// credit consumption, report persistence. Credits are consumed only after the
// collaborator succeeds, so a failed analysis never costs the device anything.
type Service struct {
	engine   *entitlement.Engine
	analyzer Analyzer
	reports  ReportRepository
	log      *slog.Logger
}

func NewService(engine *entitlement.Engine, analyzer Analyzer, reports ReportRepository, log *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		analyzer: analyzer,
		reports:  reports,
		log:      log.With(slog.String("component", "analysis")),
	}
}

// Validate runs the full flow for one idea. The returned basis reports which
// credit paid for the run.
func (s *Service) Validate(ctx context.Context, deviceID string, req ValidateRequest) (*Report, entitlement.Basis, error) {
	if err := req.Validate(); err != nil {
		return nil, entitlement.BasisNone, err
	}

	allowed, _, err := s.engine.Check(ctx, deviceID)
	if err != nil {
		return nil, entitlement.BasisNone, fmt.Errorf("check entitlement: %w", err)
	}
	if !allowed {
		return nil, entitlement.BasisNone, entitlement.ErrNoCredits
	}

	result, err := s.analyzer.Analyze(ctx, AnalyzeRequest{
		Title:       req.IdeaTitle,
		Description: req.IdeaDescription,
		Language:    req.Language,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "analysis failed", slog.String("device_id", deviceID), slog.Any("error", err))
		return nil, entitlement.BasisNone, err
	}

	basis, err := s.engine.Consume(ctx, deviceID)
	if err != nil {
		return nil, entitlement.BasisNone, fmt.Errorf("consume credit: %w", err)
	}

	report := &Report{
		ID:              uuid.New(),
		DeviceID:        deviceID,
		IdeaTitle:       req.IdeaTitle,
		IdeaDescription: req.IdeaDescription,
		Language:        req.Language,
		Result:          *result,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		// The credit is already spent and the analysis done; losing the report
		// row is worse than returning it unsaved, so fail loudly.
		return nil, basis, fmt.Errorf("save report: %w", err)
	}

	s.log.InfoContext(ctx, "idea validated",
		slog.String("device_id", deviceID),
		slog.String("report_id", report.ID.String()),
		slog.String("basis", string(basis)),
		slog.Int("overall_score", result.OverallScore),
	)
	return report, basis, nil
}

// Report loads a stored report. A non-UUID id behaves like a missing report.
func (s *Service) Report(ctx context.Context, id string) (*Report, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrReportNotFound
	}
	return s.reports.Find(ctx, reportID)
}
