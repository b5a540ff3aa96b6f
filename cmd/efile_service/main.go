package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	efilehttp "github.com/sherpatax/golang_services/internal/efile_service/adapters/http"
	"github.com/sherpatax/golang_services/internal/efile_service/app"
	"github.com/sherpatax/golang_services/internal/efile_service/auth"
	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/encoder"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
	"github.com/sherpatax/golang_services/internal/efile_service/interpreter"
	"github.com/sherpatax/golang_services/internal/efile_service/repository/postgres"
	"github.com/sherpatax/golang_services/internal/efile_service/schema"
	"github.com/sherpatax/golang_services/internal/efile_service/transport"
	"github.com/sherpatax/golang_services/internal/platform/config"
	"github.com/sherpatax/golang_services/internal/platform/database"
	"github.com/sherpatax/golang_services/internal/platform/logger"
)

const pollBatchLimit = 50

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("E-File Service starting...", "log_level", cfg.LogLevel, "environment", cfg.Environment)

	endpoints, err := cfg.Endpoints()
	if err != nil {
		appLogger.Error("Invalid endpoint configuration", "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	ring, err := fieldcrypt.ParseKeyRing(cfg.TINKeys)
	if err != nil {
		appLogger.Error("Invalid TIN key ring", "error", err)
		os.Exit(1)
	}
	keeper, err := fieldcrypt.NewKeeper(ring, cfg.TINActiveKeyVersion)
	if err != nil {
		appLogger.Error("Failed to build TIN keeper", "error", err)
		os.Exit(1)
	}

	transmitterTIN, err := keeper.Encrypt(cfg.TransmitterTIN)
	if err != nil {
		appLogger.Error("Invalid transmitter TIN", "error", err)
		os.Exit(1)
	}
	transmitter := domain.Transmitter{
		TIN:          transmitterTIN,
		TINType:      domain.TINType(cfg.TransmitterTINType),
		TCC:          cfg.TCC,
		CompanyName:  cfg.TransmitterName,
		ContactName:  cfg.TransmitterContact,
		ContactEmail: cfg.TransmitterEmail,
		ContactPhone: cfg.TransmitterPhone,
		Address: domain.Address{
			Line1:   cfg.TransmitterAddr1,
			City:    cfg.TransmitterCity,
			State:   cfg.TransmitterState,
			ZIP:     cfg.TransmitterZIP,
			Country: "US",
		},
		SoftwareID: cfg.SoftwareID,
	}

	env := domain.Environment(cfg.Environment)
	table := schema.Default()

	tokenSource := auth.NewTokenSource(auth.Options{
		TokenURL:       endpoints.TokenURL,
		ClientID:       cfg.ClientID,
		KeyID:          cfg.KeyID,
		PrivateKeyPEM:  cfg.PrivateKeyPEM,
		PrivateKeyPath: cfg.PrivateKeyPath,
	}, appLogger)

	rawResponseRepo := postgres.NewPgRawResponseRepository(dbPool, appLogger)
	statusRepo := postgres.NewPgFilingStatusRepository(dbPool, appLogger)
	txRepo := postgres.NewPgTransmissionRepository(dbPool, appLogger)

	interp := interpreter.New(table, appLogger)
	client := transport.NewClient(env, transport.Endpoints{
		SubmitURL: endpoints.SubmitURL,
		StatusURL: endpoints.StatusURL,
		AckURL:    endpoints.AckURL,
	}, tokenSource, interp, rawResponseRepo, appLogger, transport.Options{})

	enc := encoder.New(table, keeper, appLogger)
	efileService := app.NewEFileService(enc, client, statusRepo, txRepo, transmitter, env, cfg.SoftwareID, appLogger)

	handler := efilehttp.NewEFileHandler(efileService, keeper, appLogger)
	router := efilehttp.NewRouter(handler)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Background status polling for in-flight receipts.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.PollSchedule, func() {
		efileService.PollPending(appCtx, pollBatchLimit)
	}); err != nil {
		appLogger.Error("Invalid poll schedule", "schedule", cfg.PollSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	appLogger.Info("Status poller started", "schedule", cfg.PollSchedule)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", "error", err)
			cancelAppCtx()
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case receivedSignal := <-quitChan:
		appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())
	case <-appCtx.Done():
	}

	appLogger.Info("Attempting graceful shutdown of E-File Service...")
	cancelAppCtx()
	<-scheduler.Stop().Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown error", "error", err)
	}
	appLogger.Info("E-File Service shut down successfully.")
}
