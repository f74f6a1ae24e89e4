package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cospese/internal/backend"
	"cospese/internal/cli"
	"cospese/internal/core"
	apphttp "cospese/internal/http"
	applog "cospese/internal/log"
	"cospese/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	wf := services.NewExpenseWorkflow(be.Store, core.UpdateWindow{MonthsBack: cfg.UpdateWindowMonths}, be.Events)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:       ":" + cfg.Port,
		UserHeader: cfg.UserHeader,
		PageSize:   cfg.MaxItemsPerPage,
		Years:      cfg.YearsToFilter,
		Logger:     logger,
	}, wf, be.Store, be.Store)
	if err != nil {
		logger.Error("Failed to initialize HTTP server", applog.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting cospese server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", be.Events != nil,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		_ = be.Cleanup()
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
