package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/handler"
	"github.com/brightpath/agency-api/internal/middleware"
	"github.com/brightpath/agency-api/internal/repository"
	"github.com/brightpath/agency-api/internal/service"
	"github.com/brightpath/agency-api/pkg/cache"
	"github.com/brightpath/agency-api/pkg/config"
	"github.com/brightpath/agency-api/pkg/database"
	"github.com/brightpath/agency-api/pkg/export"
	"github.com/brightpath/agency-api/pkg/jobs"
	"github.com/brightpath/agency-api/pkg/logger"
	corsmiddleware "github.com/brightpath/agency-api/pkg/middleware/cors"
	reqidmiddleware "github.com/brightpath/agency-api/pkg/middleware/requestid"
)

// @title BrightPath Agency API
// @version 1.0.0
// @description Tutoring agency back office: timesheets, invoicing, alerts and ledger reports
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.MigrationsUp {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	timesheetRepo := repository.NewTimesheetRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	tutorInvoiceRepo := repository.NewTutorInvoiceRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Background notification delivery.
	notifyQueue := jobs.NewQueue("notifications", deliverNotification(logr), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		Logger:     logr,
	})

	// Services.
	settingsSvc := service.NewSettingsService(settingRepo, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, notifyQueue, logr)
	rateResolver := service.NewRateResolver(studentRepo, allocationRepo, logr)
	alertSvc := service.NewAlertService(alertRepo, sessionRepo, invoiceRepo, notificationSvc,
		cfg.Alerts.SessionLoggingGrace, cfg.Alerts.InvoiceAlertAfter, cfg.Billing.ReminderDays, logr, metricsSvc)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, studentRepo, tutorInvoiceRepo,
		settingsSvc, alertSvc, cfg.Billing.InvoiceDueDays, validate, logr, metricsSvc)
	timesheetSvc := service.NewTimesheetService(timesheetRepo, studentRepo, tutorRepo,
		sessionRepo, tutorInvoiceRepo, rateResolver, invoiceSvc, alertSvc,
		cfg.Billing.RecomputeFromAllocation, validate, logr, metricsSvc)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	tutorSvc := service.NewTutorService(tutorRepo, validate, logr)
	allocationSvc := service.NewAllocationService(allocationRepo, studentRepo, tutorRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, studentRepo, tutorRepo, validate, logr)
	ledgerSvc := service.NewLedgerService(ledgerRepo, settingsSvc, time.Month(cfg.Billing.FiscalYearStartMonth), logr)

	// Handlers.
	pdfExporter := export.NewPDFExporter()
	csvExporter := export.NewCSVExporter()
	timesheetHandler := handler.NewTimesheetHandler(timesheetSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc, pdfExporter)
	studentHandler := handler.NewStudentHandler(studentSvc, allocationSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	allocationHandler := handler.NewAllocationHandler(allocationSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	alertHandler := handler.NewAlertHandler(alertSvc)
	reportHandler := handler.NewReportHandler(ledgerSvc, alertSvc, csvExporter)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.POST("/students/:id/top-up", studentHandler.TopUp)
		api.GET("/students/:id/allocations", studentHandler.ListAllocations)
		api.POST("/students/:id/invoices/package", invoiceHandler.GeneratePackage)
		api.POST("/students/:id/invoices/recurring", invoiceHandler.GenerateRecurring)

		api.POST("/tutors", tutorHandler.Create)
		api.GET("/tutors/:id", tutorHandler.Get)

		api.POST("/allocations", allocationHandler.Create)
		api.DELETE("/allocations/:id", allocationHandler.Delete)

		api.POST("/sessions", sessionHandler.Schedule)
		api.GET("/sessions/:id", sessionHandler.Get)

		api.GET("/timesheets", timesheetHandler.List)
		api.GET("/timesheets/:id", timesheetHandler.Get)
		api.GET("/timesheets/:id/totals", timesheetHandler.Totals)
		api.GET("/timesheets/:id/history", timesheetHandler.History)
		api.POST("/timesheets/:id/submit", timesheetHandler.Submit)
		api.POST("/timesheets/:id/review", timesheetHandler.Review)
		api.POST("/timesheets/entries", timesheetHandler.LogSession)
		api.PUT("/timesheets/entries/:id", timesheetHandler.UpdateEntry)
		api.DELETE("/timesheets/entries/:id", timesheetHandler.DeleteEntry)

		api.GET("/invoices", invoiceHandler.List)
		api.GET("/invoices/:id", invoiceHandler.Get)
		api.GET("/invoices/:id/pdf", invoiceHandler.DownloadPDF)
		api.POST("/invoices/adhoc", invoiceHandler.CreateAdhoc)
		api.POST("/invoices/process-scheduled", invoiceHandler.ProcessScheduled)
		api.POST("/invoices/:id/payments", invoiceHandler.RecordPayment)
		api.POST("/invoices/:id/claim-paid", invoiceHandler.ClaimPaid)
		api.POST("/invoices/:id/cancel", invoiceHandler.Cancel)

		api.GET("/tutor-invoices", invoiceHandler.ListTutorInvoices)
		api.POST("/tutor-invoices/:id/pay", invoiceHandler.MarkTutorInvoicePaid)

		api.GET("/alerts/sessions", alertHandler.ListSessionAlerts)
		api.GET("/alerts/invoices", alertHandler.ListInvoiceAlerts)
		api.POST("/alerts/sessions/:id/dismiss", alertHandler.DismissSessionAlert)
		api.POST("/alerts/invoices/:id/dismiss", alertHandler.DismissInvoiceAlert)
		api.POST("/alerts/scan", alertHandler.Scan)

		api.GET("/notifications", notificationHandler.List)

		api.GET("/settings", settingsHandler.List)
		api.PUT("/settings/:key", settingsHandler.Set)

		reports := api.Group("/reports")
		reports.Use(middleware.ReportCache(redisClient, cfg.Reports.CacheTTL, metricsSvc, logr))
		reports.GET("/stats", reportHandler.Stats)
		reports.GET("/ledger", reportHandler.Ledger)
		reports.GET("/ledger/csv", reportHandler.LedgerCSV)
		reports.GET("/compliance", reportHandler.Compliance)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifyQueue.Start(ctx)
	defer notifyQueue.Stop()

	if cfg.Alerts.Enabled {
		go runSweeper(ctx, cfg.Alerts.ScanInterval, logr, alertSvc, invoiceSvc)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// runSweeper drives the periodic compliance and billing sweeps. Every sweep is
// idempotent, so overlapping restarts are harmless.
func runSweeper(ctx context.Context, interval time.Duration, logr *zap.Logger, alerts *service.AlertService, invoices *service.InvoiceService) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep := func() {
		if _, err := invoices.ProcessScheduled(ctx); err != nil {
			logr.Warn("scheduled invoice sweep failed", zap.Error(err))
		}
		if _, err := alerts.ScanSessionLogging(ctx); err != nil {
			logr.Warn("session logging sweep failed", zap.Error(err))
		}
		if _, err := alerts.ScanInvoicePayment(ctx); err != nil {
			logr.Warn("invoice payment sweep failed", zap.Error(err))
		}
		if _, err := alerts.CheckAndSendInvoiceReminders(ctx); err != nil {
			logr.Warn("reminder sweep failed", zap.Error(err))
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// deliverNotification is the background delivery hook. Email/SMS transport is
// provisioned per deployment; the default build just records the hand-off.
func deliverNotification(logr *zap.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != service.NotificationDeliveryJob {
			logr.Sugar().Warnw("unknown job type", "job_id", job.ID, "type", job.Type)
			return nil
		}
		logr.Sugar().Infow("notification dispatched", "job_id", job.ID, "notification_id", job.Payload)
		return nil
	}
}
