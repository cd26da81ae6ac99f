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

	"github.com/fystack/modelstore/pkg/config"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/versionlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

func watchVersions(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.NATs == nil || cfg.NATs.URL == "" {
		return errors.New("nats.url is required to watch version events")
	}
	subject := versionlog.DefaultSubject
	if cfg.VersionLog.Subject != "" {
		subject = cfg.VersionLog.Subject
	}
	if cfg.VersionLog.Backend != config.VersionLogNATS {
		logger.Warn("Local version log backend does not publish events, only other nodes will show up",
			"backend", cfg.VersionLog.Backend)
	}

	a := &app{cfg: cfg}
	defer a.Close()
	pubsub, err := a.connectNATS()
	if err != nil {
		return err
	}

	sub, err := pubsub.Subscribe(subject, printVersionEvent)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			logger.Error("Failed to unsubscribe", err, "subject", subject)
		}
	}()

	if addr := c.String("metrics-addr"); addr != "" {
		server := serveMetrics(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to stop metrics server", err)
			}
		}()
	}

	logger.Info("Watching version events", "subject", subject)
	waitForSignal(ctx)
	return nil
}

func printVersionEvent(data []byte) {
	entry, err := versionlog.DecodeEntry(data)
	if err != nil {
		logger.Warn("Skipping malformed version event", "error", err.Error())
		return
	}
	fmt.Printf("%s  %s/%s  %s\n", entry.CreatedAt.Format(time.RFC3339), entry.Namespace, entry.Name, entry.Message)
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", err, "addr", addr)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)
	return server
}

func waitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Warn("Shutdown signal received, stopping...")
}
