package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/densematrix/idea-validator/pkg/pg"
)

// PostgresReportRepository stores reports in the validation_reports table.
// Analysis sections live in jsonb columns so the report schema can evolve
// without migrations.
type PostgresReportRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportRepository(pool *pgxpool.Pool) *PostgresReportRepository {
	return &PostgresReportRepository{pool: pool}
}

func (r *PostgresReportRepository) Create(ctx context.Context, report *Report) error {
	_, err := pg.Querier(ctx, r.pool).Exec(ctx,
		`INSERT INTO validation_reports
		   (id, device_id, idea_title, idea_description, language,
		    overall_score, market_analysis, competition_analysis, technical_feasibility,
		    business_model, risks, suggestions, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		report.ID,
		report.DeviceID,
		report.IdeaTitle,
		report.IdeaDescription,
		report.Language,
		report.Result.OverallScore,
		report.Result.MarketAnalysis,
		report.Result.CompetitionAnalysis,
		report.Result.TechnicalFeasibility,
		report.Result.BusinessModel,
		report.Result.Risks,
		report.Result.Suggestions,
		report.Result.Summary,
		report.CreatedAt,
	)
	return err
}

func (r *PostgresReportRepository) Find(ctx context.Context, id uuid.UUID) (*Report, error) {
	row := pg.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT id, device_id, idea_title, idea_description, language,
		        overall_score, market_analysis, competition_analysis, technical_feasibility,
		        business_model, risks, suggestions, summary, created_at
		 FROM validation_reports WHERE id = $1`,
		id,
	)
	return scanReport(row)
}

func scanReport(row pgx.Row) (*Report, error) {
	var report Report
	err := row.Scan(
		&report.ID,
		&report.DeviceID,
		&report.IdeaTitle,
		&report.IdeaDescription,
		&report.Language,
		&report.Result.OverallScore,
		&report.Result.MarketAnalysis,
		&report.Result.CompetitionAnalysis,
		&report.Result.TechnicalFeasibility,
		&report.Result.BusinessModel,
		&report.Result.Risks,
		&report.Result.Suggestions,
		&report.Result.Summary,
		&report.CreatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
