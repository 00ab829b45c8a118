package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samvad-hq/fileio-go/internal/config"
	"github.com/samvad-hq/fileio-go/internal/logger"
	"github.com/samvad-hq/fileio-go/pkg/fileio/fileiotest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fileio-sandbox failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:8088", "listen address")
	apiKey := flag.String("api-key", "", "bearer token required on authenticated routes (default: fileio_api_key)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	key := *apiKey
	if key == "" {
		key = cfg.APIKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           accessLog(log, fileiotest.NewFake(key)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("sandbox listening", "sandbox", map[string]any{
			"addr":          *addr,
			"authenticated": key != "",
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.InfoObj("sandbox stopped", "reason", ctx.Err())
	return nil
}

// statusRecorder captures the response status for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.InfoObj("sandbox request", "request", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	})
}
