package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/densematrix/idea-validator/internal/analysis"
	"github.com/densematrix/idea-validator/internal/api"
	"github.com/densematrix/idea-validator/internal/billing"
	"github.com/densematrix/idea-validator/internal/entitlement"
	"github.com/densematrix/idea-validator/internal/metrics"
	"github.com/densematrix/idea-validator/pkg/config"
	"github.com/densematrix/idea-validator/pkg/httpserver"
	"github.com/densematrix/idea-validator/pkg/logger"
	"github.com/densematrix/idea-validator/pkg/pg"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ToolName    string `env:"TOOL_NAME" envDefault:"idea-validator"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"https://idea-validator.demo.densematrix.ai"`
}

func main() {
	var (
		appCfg   appConfig
		pgCfg    pg.Config
		httpCfg  httpserver.Config
		apiCfg   api.Config
		creemCfg billing.CreemConfig
		llmCfg   analysis.LLMConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&apiCfg)
	config.MustLoad(&creemCfg)
	config.MustLoad(&llmCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, appCfg.ToolName))
	logger.SetAsDefault(log)

	if err := run(context.Background(), appCfg, pgCfg, httpCfg, apiCfg, creemCfg, llmCfg, log); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	appCfg appConfig,
	pgCfg pg.Config,
	httpCfg httpserver.Config,
	apiCfg api.Config,
	creemCfg billing.CreemConfig,
	llmCfg analysis.LLMConfig,
	log *slog.Logger,
) error {
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return errors.Join(errors.New("connect to postgres"), err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return errors.Join(errors.New("apply migrations"), err)
	}

	providerIDs, err := billing.ParseProviderIDs(creemCfg.ProductIDs)
	if err != nil {
		return errors.Join(errors.New("parse provider product ids"), err)
	}

	engine := entitlement.NewEngine(entitlement.NewPostgresRepository(pool), log)
	catalog := billing.NewCatalog(providerIDs)

	checkout := billing.NewCheckoutService(
		billing.NewPostgresTransactionRepository(pool),
		catalog,
		billing.NewCreemClient(creemCfg),
		appCfg.FrontendURL,
		log,
	)
	reconciler := billing.NewReconciler(
		billing.NewPostgresTransactionRepository(pool),
		engine,
		catalog,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return pg.RunInTx(ctx, pool, fn)
		},
		log,
	)

	analysisSvc := analysis.NewService(
		engine,
		analysis.NewLLMClient(llmCfg),
		analysis.NewPostgresReportRepository(pool),
		log,
	)

	m := metrics.New(appCfg.ToolName)
	handler := api.NewHandler(analysisSvc, engine, checkout, reconciler, creemCfg.WebhookSecret, m, log)
	ready := httpserver.HealthCheckHandler(ctx, log, pg.Healthcheck(pool))
	router := api.Router(apiCfg, handler, m, ready)

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	log.InfoContext(ctx, "starting server",
		slog.String("addr", httpCfg.Addr),
		slog.String("environment", appCfg.Environment),
	)
	return srv.Run(ctx, router)
}
