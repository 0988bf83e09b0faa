package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xela07ax/mmonit-hub/internal/connectors/healthchecks"
	"github.com/xela07ax/mmonit-hub/internal/console/handler"
	"github.com/xela07ax/mmonit-hub/internal/console/server"
	"github.com/xela07ax/mmonit-hub/internal/console/service"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"github.com/xela07ax/mmonit-hub/internal/engine"
	"github.com/xela07ax/mmonit-hub/internal/infra"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the JSON config file")
	hashPassword := pflag.String("hash-password", "", "print a bcrypt hash for users[].password and exit")
	bcryptCost := pflag.Int("bcrypt-cost", 12, "bcrypt cost for --hash-password")
	pflag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword, *bcryptCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// 1. Конфигурация: без валидного конфига не стартуем
	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := infra.NewLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("path", cfg.Path),
		zap.String("source", cfg.Source),
		zap.Int("tenants", len(cfg.Instances)),
		zap.Int("users", len(cfg.Users)),
		zap.Bool("auth_required", cfg.AuthRequired()))

	// В Go нет предупреждения на каждый запрос, как у requests/urllib3: предупреждаем один раз
	if insecure := cfg.InsecureInstances(); len(insecure) > 0 {
		logger.Warn("TLS certificate verification disabled", zap.Strings("targets", insecure))
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)

	// 3. Движок: M/Monit (primary) + Healthchecks (secondary)
	secondary := engine.NewSecondarySource(
		healthchecks.NewClient(cfg.Hub.RequestTimeout),
		engine.NewCheckCache(),
		metrics,
		logger,
	)

	aggregator, err := engine.NewAggregator(cfg.Instances, engine.Options{
		RefreshInterval: cfg.AutoRefreshSeconds,
		RequestTimeout:  cfg.Hub.RequestTimeout,
		ListLimit:       cfg.Hub.MaxHosts,
		TenantWorkers:   cfg.Hub.TenantWorkers,
		HostWorkers:     cfg.Hub.HostWorkers,
		UpstreamRPS:     cfg.Hub.UpstreamRPS,
		UpstreamBurst:   cfg.Hub.UpstreamBurst,
		Breaker: engine.BreakerSettings{
			Enabled:     cfg.Hub.Breaker.Enabled,
			MaxFailures: cfg.Hub.Breaker.MaxFailures,
			OpenTimeout: cfg.Hub.Breaker.OpenTimeout,
		},
	}, secondary, metrics, logger)
	if err != nil {
		logger.Fatal("failed to build aggregator", zap.Error(err))
	}

	// 4. Доступ и HTTP-слой
	authService := service.NewAuthService(cfg.Users, cfg.SecretKey, cfg.Auth.TokenTTL)
	accessService := service.NewAccessService(cfg.Users)

	dashHandler := handler.NewDashboardHandler(aggregator, accessService, domain.Settings{
		RefreshInterval: cfg.AutoRefreshSeconds,
		UIThresholds:    cfg.UIThresholds,
	}, logger)
	authHandler := handler.NewAuthHandler(authService, cfg.Auth.CookieSecure, logger)

	hub := server.NewHubServer(logger, authService, cfg.AuthRequired(), authHandler, dashHandler)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      hub,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus на отдельном адресе
	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}

		go func() {
			logger.Info("metrics listener started", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	// 5. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("M/Monit Hub started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("M/Monit Hub stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("M/Monit Hub exited properly")
}
