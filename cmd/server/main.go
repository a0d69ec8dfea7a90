package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	wooweb "github.com/vraagmijnoverheid/woo-web"
	"github.com/vraagmijnoverheid/woo-web/internal/handlers"
	"github.com/vraagmijnoverheid/woo-web/internal/services"
)

const errLoggerKey = "err"

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		fatal(slog.Default(), fmt.Errorf("error getting user config dir: %w", err))
	}
	appDir := filepath.Join(cfgDir, "woo-web")

	cfgFilePath := flag.String("config", filepath.Join(appDir, "config.yaml"), "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath, os.Getenv)
	if err != nil {
		fatal(slog.Default(), err)
	}
	logger := cfg.logger()

	if cfg.StorePath == "" {
		if err := os.MkdirAll(appDir, 0755); err != nil {
			fatal(logger, fmt.Errorf("error creating config directory: %w", err))
		}
		cfg.StorePath = filepath.Join(appDir, "store.db")
	}
	boltDB, err := services.NewBoltDB(cfg.StorePath)
	if err != nil {
		fatal(logger, err)
	}

	dialer, err := services.NewWebSocketDialer(cfg.BackendURL)
	if err != nil {
		fatal(logger, err)
	}
	backend := services.NewBackend(cfg.BackendURL, logger)
	documents := services.NewDocumentReader(&http.Client{Timeout: 30 * time.Second}, cfg.documentHosts())

	m, err := handlers.NewMain(backend, boltDB, documents, dialer, handlers.Config{
		SiteURL:     cfg.SiteURL,
		Greeting:    cfg.Greeting,
		TypingSpeed: cfg.TypingSpeed,
		ViewTTL:     cfg.ViewTTL,
	}, logger)
	if err != nil {
		fatal(logger, err)
	}

	// Serve static files
	staticFS, err := fs.Sub(wooweb.StaticFS, "static")
	if err != nil {
		fatal(logger, err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/start", m.HandleStart)
	mux.HandleFunc("/request", m.HandleRequest)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/questions", m.HandleQuestions)
	mux.HandleFunc("/finalize", m.HandleFinalize)
	mux.HandleFunc("/completed-request", m.HandleCompleted)
	mux.HandleFunc("/status", m.HandleStatus)
	mux.HandleFunc("/admin", m.HandleAdmin)
	mux.HandleFunc("/search", m.HandleSearch)
	mux.HandleFunc("/document", m.HandleDocument)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
		if err := boltDB.Close(); err != nil {
			logger.Error("Failed to close store", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("backend", cfg.BackendURL),
			slog.String("socket", dialer.URL()))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String(errLoggerKey, err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}
}

func fatal(logger *slog.Logger, err error) {
	logger.Error("Startup failed", slog.String(errLoggerKey, err.Error()))
	os.Exit(1)
}
