package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach-service/internal/domain/repository"
	"outreach-service/internal/infrastructure/cache"
	"outreach-service/internal/infrastructure/config"
	"outreach-service/internal/infrastructure/oauth"
	"outreach-service/internal/infrastructure/persistence"
	"outreach-service/internal/infrastructure/router"
	"outreach-service/internal/infrastructure/scheduler"
	"outreach-service/internal/interface/delivery"
	"outreach-service/internal/interface/gmail"
	"outreach-service/internal/interface/httpapi"
	repo "outreach-service/internal/interface/repository"
	"outreach-service/internal/usecase"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/metrics"
	"outreach-service/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Outreach Service", "version", cfg.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up repositories
	automationRepo, err := repo.NewMongoAutomationRepository(ctx, db)
	if err != nil {
		log.Fatal("Failed to set up automation repository", "error", err)
	}
	inboundRepo, err := repo.NewMongoInboundEmailRepository(ctx, db)
	if err != nil {
		log.Fatal("Failed to set up inbound email repository", "error", err)
	}
	statsRepo := repo.NewMongoEmailStatsRepository(db)
	leadRepo := repo.NewMongoLeadRepository(db)
	ownerRepo := repo.NewGormOwnerRepository(gormDB)

	var statsCache repository.StatsCache = cache.NewMemoryStatsCache(cfg.StatsCacheTTL)
	if cfg.RedisURL != "" {
		redisClient, err := persistence.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()
		statsCache = cache.NewRedisStatsCache(redisClient, cfg.StatsCacheTTL)
	}

	appMetrics := metrics.NewMetrics("outreach", prometheus.DefaultRegisterer)

	// Gmail is used for delivery and for reading replies when a token is configured
	var tokenSource oauth2.TokenSource
	if cfg.GmailRefreshToken != "" {
		gmailOAuth := oauth.NewGmailOAuth(cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken, log)
		tokenSource = gmailOAuth.GetTokenSource(ctx)
	}

	deliveryClient, err := newDeliveryClient(ctx, cfg, tokenSource, log)
	if err != nil {
		log.Fatal("Failed to set up delivery client", "provider", cfg.DeliveryProvider, "error", err)
	}

	renderer, err := templates.NewRenderer(templates.RendererConfig{
		SenderName:  cfg.FromName,
		CompanyName: cfg.CompanyName,
		BaseURL:     cfg.CRMBaseURL,
	})
	if err != nil {
		log.Fatal("Failed to parse email templates", "error", err)
	}

	// Set up use cases
	statsService := usecase.NewStatsService(statsRepo, statsCache, log)
	sender := usecase.NewRetryingSender(deliveryClient, statsService, appMetrics, log, usecase.SenderConfig{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	machine := usecase.NewStageMachine(usecase.StageRules{
		Cadence:                    cfg.FollowUpCadence,
		ProposalFirstFollowUpDelay: cfg.ProposalFirstFollowUpDelay,
		FailureCooldown:            cfg.FailureCooldown,
		LeadMaxEmails:              cfg.LeadMaxEmails,
	})
	automationService := usecase.NewAutomationService(automationRepo, leadRepo, ownerRepo, machine, sender, renderer, log)
	replyHandler := usecase.NewReplyHandler(automationService, automationRepo, leadRepo, appMetrics, log)
	scanner := usecase.NewDueScanner(automationRepo, automationService, appMetrics, log, cfg.ScanBatchLimit)

	subjectRouter := router.NewSubjectRouter(log)
	subjectRouter.Register(usecase.NewAutoResponderFilter(cfg.FromEmail, log))
	subjectRouter.Register(usecase.NewLeadReplyHandler(leadRepo, replyHandler, log))
	orchestrator := usecase.NewEmailOrchestrator(inboundRepo, subjectRouter, log)

	// Start Gmail polling in a goroutine
	if tokenSource != nil {
		poller, err := gmail.NewInboxPoller(ctx, tokenSource, cfg.GmailUser, inboundRepo, orchestrator, log, cfg.GmailPollInterval)
		if err != nil {
			log.Fatal("Failed to create Gmail poller", "error", err)
		}
		go poller.StartPolling(ctx)
	} else {
		log.Warn("GMAIL_REFRESH_TOKEN not set, replies will not be detected")
	}

	jobs := scheduler.NewScheduler(log, 30*time.Minute)
	err = jobs.Add("due_scan", cfg.ScanSchedule, func(ctx context.Context) error {
		_, err := scanner.RunScan(ctx)
		if errors.Is(err, usecase.ErrScanInProgress) {
			return nil
		}
		return err
	})
	if err != nil {
		log.Fatal("Failed to schedule due scan", "error", err)
	}
	err = jobs.Add("pending_inbound", "@every 5m", orchestrator.ProcessPendingEmails)
	if err != nil {
		log.Fatal("Failed to schedule inbound retry", "error", err)
	}
	jobs.Start()

	// Set up HTTP server for metrics and admin reads
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	httpapi.NewHandler(statsService, automationService, log).Register(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	// a scan in progress stops after its current record
	jobs.Stop(shutdownCtx)
	cancel()

	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Outreach Service stopped")
}

func newDeliveryClient(ctx context.Context, cfg *config.Config, tokenSource oauth2.TokenSource, log logger.Logger) (repository.DeliveryClient, error) {
	from := delivery.Sender{Email: cfg.FromEmail, Name: cfg.FromName}
	switch cfg.DeliveryProvider {
	case config.ProviderGmail:
		return delivery.NewGmailClient(ctx, tokenSource, cfg.GmailUser, from)
	case config.ProviderSendGrid:
		return delivery.NewSendGridClient(cfg.SendGridAPIKey, from), nil
	case config.ProviderSMTP:
		return delivery.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, from), nil
	}
	return delivery.NewLogClient(log), nil
}
