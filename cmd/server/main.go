package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/produce-classifier/internal/config"
	"github.com/Brownie44l1/produce-classifier/internal/errlog"
	"github.com/Brownie44l1/produce-classifier/internal/handlers"
	"github.com/Brownie44l1/produce-classifier/internal/i18n"
	"github.com/Brownie44l1/produce-classifier/internal/model"
	"github.com/Brownie44l1/produce-classifier/internal/telegram"
	"github.com/cyclopcam/logs"
)

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := run(logger); err != nil {
		logger.Errorf("%v", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run(logger logs.Log) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := i18n.New(cfg.DefaultLocale)
	if err != nil {
		return err
	}
	errorLog := errlog.New(cfg.ErrorLogPath, logger)

	// The model is opened by the first request, so a missing model does not stop the server
	opener := model.ONNXOpener(cfg.OnnxRuntimeLib, cfg.MetadataPath, cfg.Metadata())
	loader := model.NewLoader(logger, cfg.ModelPath, cfg.FallbackModelPath, opener)
	defer model.DestroyRuntime()
	defer loader.Close()

	pipeline := model.NewPipeline(loader, cfg.Labels, cfg.PreprocessOptions())

	handler, err := handlers.NewHandler(logger, pipeline, errorLog, catalog)
	if err != nil {
		return err
	}
	router, err := handler.Routes(cfg.RateLimitPerMinute)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, logger, pipeline, errorLog, catalog)
		if err != nil {
			// The web front-end still works without the bot
			logger.Errorf("Failed to start telegram bot: %v", err)
		} else {
			go bot.Run(ctx)
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Server starting on port %v", cfg.Port)
	logger.Infof("Model path: %v (fallback %v)", cfg.ModelPath, cfg.FallbackModelPath)
	logger.Infof("Classes: %v", len(cfg.Labels))
	logger.Infof("Endpoints:")
	logger.Infof("  GET  /              - Upload form")
	logger.Infof("  POST /              - Classify from the upload form")
	logger.Infof("  GET  /health        - Health check")
	logger.Infof("  GET  /labels        - Class labels")
	logger.Infof("  POST /predict       - Raw array prediction")
	logger.Infof("  POST /predict/image - Predict from image upload")
	logger.Infof("Upload test: curl -X POST -F \"image=@tomato.jpg\" http://localhost:%v/predict/image", cfg.Port)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Infof("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Shutdown complete, with error: %v", err)
		} else {
			logger.Infof("Shutdown complete")
		}
	}
	return nil
}
