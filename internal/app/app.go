package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ArticlesPublisher/internal/config"
	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/events"
	"ArticlesPublisher/internal/infrastructure/extractor"
	"ArticlesPublisher/internal/infrastructure/fetch"
	"ArticlesPublisher/internal/infrastructure/httpapi"
	"ArticlesPublisher/internal/infrastructure/images"
	"ArticlesPublisher/internal/infrastructure/llm"
	"ArticlesPublisher/internal/infrastructure/parser"
	"ArticlesPublisher/internal/infrastructure/scheduler"
	"ArticlesPublisher/internal/infrastructure/storage"
	"ArticlesPublisher/internal/infrastructure/telegram"
	"ArticlesPublisher/internal/infrastructure/wordpress"
	"ArticlesPublisher/internal/logging"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/usecase"
	"ArticlesPublisher/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	source    *parser.StrategySource
	cms       ports.CMSFactory
	catalog   *usecase.StaticCatalog
	scheduler *usecase.Scheduler
	records   *usecase.Records
	logs      *events.Broadcaster
	registry  *prometheus.Registry
	closeDB   func() error
}

// New builds every adapter from cfg. The caller owns Close.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	campaigns, err := cfg.DomainCampaigns()
	if err != nil {
		return nil, fmt.Errorf("campaigns: %w", err)
	}

	ledger, runs, closeDB, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	fetcher := fetch.New(fetchConfig(cfg.Fetch), &http.Client{}, baseLogger.With("component", "fetch"), m)
	source := parser.NewStrategySource(
		parser.NewDefaultRegistry(fetcher, baseLogger.With("component", "scanner")),
		baseLogger.With("component", "source"),
	)

	cmsHTTP := &http.Client{Timeout: 60 * time.Second}
	cms := wordpress.Factory(cmsHTTP)

	downloader := images.NewDownloader(imagesConfig(cfg.Images), &http.Client{}, baseLogger.With("component", "images"), m)
	acquirer := images.NewAcquirer(downloader, baseLogger.With("component", "images"), m)

	logs := events.NewBroadcaster()
	sink := events.Multi(events.NewLogSink(baseLogger.With("component", "events")), logs)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Extractor: extractor.New(fetcher, baseLogger.With("component", "extractor")),
		Rewriter:  llm.NewRouter(cfg.LLM, baseLogger.With("component", "llm")),
		Images:    acquirer,
		Ledger:    ledger,
		Metrics:   m,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	runner := usecase.NewCampaignRunner(usecase.CampaignRunnerDeps{
		Source:   source,
		Ledger:   ledger,
		Pipeline: pipeline,
		CMS:      cms,
		Notifier: notifier,
		Sink:     sink,
		Metrics:  m,
		Logger:   baseLogger.With("component", "campaign"),
	})

	catalog := usecase.NewStaticCatalog(campaigns)
	loc := cfg.Scheduler.Location()
	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:   scheduler.NewCronScheduler(cfg.Scheduler.Tick, loc, baseLogger.With("component", "cron")),
		Catalog:  catalog,
		Runs:     runs,
		Runner:   runner,
		Location: loc,
		Metrics:  m,
		Logger:   baseLogger.With("component", "scheduler"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		source:    source,
		cms:       cms,
		catalog:   catalog,
		scheduler: sched,
		records:   usecase.NewRecords(ledger, catalog, cms, baseLogger.With("component", "records")),
		logs:      logs,
		registry:  registry,
		closeDB:   closeDB,
	}, nil
}

// Run starts the scheduler and the control API and blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "tick", a.cfg.Scheduler.Tick, "timezone", a.cfg.Scheduler.Location().String())

	var (
		srv     *http.Server
		srvErrs = make(chan error, 1)
	)
	if a.cfg.HTTP.Addr != "" {
		srv = &http.Server{
			Addr:              a.cfg.HTTP.Addr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.New(a.logger, "http", slog.LevelError),
		}
		go func() {
			a.logger.Info("control api listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErrs <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErrs:
		runErr = fmt.Errorf("control api: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("shutdown control api: %w", err))
		}
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("stop scheduler: %w", err))
	}
	return runErr
}

// Handler returns the control API.
func (a *Application) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Catalog:  a.catalog,
		Runs:     a.scheduler,
		Records:  a.records,
		Sources:  a.source,
		CMS:      a.cms,
		Logs:     a.logs,
		Gatherer: a.registry,
		Logger:   a.logger.With("component", "httpapi"),
	})
}

// RunOnce evaluates a single tick, or runs campaignID immediately when set,
// and waits for the run to finish.
func (a *Application) RunOnce(ctx context.Context, campaignID string) (*usecase.RunInfo, error) {
	if campaignID == "" {
		return a.scheduler.Tick(ctx, time.Now())
	}
	info, err := a.scheduler.Trigger(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	a.scheduler.Wait()
	return &info, nil
}

// Discover runs source detection for url.
func (a *Application) Discover(ctx context.Context, url string) ([]domain.CandidateRef, string, error) {
	return a.source.Detect(ctx, url)
}

// Verify checks the CMS credentials of a campaign and lists its categories.
func (a *Application) Verify(ctx context.Context, campaignID string) ([]ports.Category, error) {
	campaign, err := a.catalog.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return a.cms(campaign.CMS).VerifyConnection(ctx)
}

// Close releases the database.
func (a *Application) Close() error {
	if a.closeDB == nil {
		return nil
	}
	return a.closeDB()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (ports.Ledger, ports.RunStateStore, func() error, error) {
	if cfg.Driver == "memory" {
		store := storage.NewMemoryStore()
		return store, store, nil, nil
	}

	db, dialect, err := storage.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	if err := storage.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	repo := storage.NewSQLRepository(db, dialect)
	return repo, repo, db.Close, nil
}

func fetchConfig(c config.FetchConfig) fetch.Config {
	out := fetch.DefaultConfig()
	if len(c.Proxies) > 0 {
		out.Proxies = c.Proxies
	}
	if c.Retries > 0 {
		out.Retries = c.Retries
	}
	if c.BaseDelay > 0 {
		out.BaseDelay = c.BaseDelay
	}
	if c.DirectTimeout > 0 {
		out.DirectTimeout = c.DirectTimeout
	}
	if c.ProxyTimeout > 0 {
		out.ProxyTimeout = c.ProxyTimeout
	}
	if c.MinBodyLength > 0 {
		out.MinBodyLength = c.MinBodyLength
	}
	if len(c.BlockMarkers) > 0 {
		out.BlockMarkers = c.BlockMarkers
	}
	return out
}

func imagesConfig(c config.ImagesConfig) images.Config {
	out := images.DefaultConfig()
	if len(c.Sources) > 0 {
		out.Sources = make([]images.Source, 0, len(c.Sources))
		for _, s := range c.Sources {
			out.Sources = append(out.Sources, images.Source{Name: s.Name, Template: s.Template})
		}
	}
	if c.Direct {
		out.Sources = append(out.Sources, images.Source{Name: "direct"})
	}
	if c.MinBytes > 0 {
		out.MinBytes = c.MinBytes
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	return out
}
