package main

import (
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/jenkinsprobe/internal/config"
	"github.com/hamed0406/jenkinsprobe/internal/httpapi"
	apimw "github.com/hamed0406/jenkinsprobe/internal/httpapi/middleware"
	"github.com/hamed0406/jenkinsprobe/internal/logging"
	"github.com/hamed0406/jenkinsprobe/internal/probe"
	"github.com/hamed0406/jenkinsprobe/internal/repo/memory"
	"github.com/hamed0406/jenkinsprobe/internal/scanner"
)

func main() {
	cfg := config.FromEnv()
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	logger, err := logging.NewLogger(cfg.LogDir, level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Warn("config_warning", zap.Error(err))
	}

	checker := probe.NewHTTPChecker(cfg.ProbePort, cfg.ProbePath, cfg.ProbeTimeout)
	engine := scanner.New(logger, checker, scanner.Options{
		Concurrency: cfg.MaxConcurrent,
		Timeout:     cfg.ProbeTimeout,
	})
	api := httpapi.NewServer(logger, memory.New(0), engine)
	api.TrustedProxies = cfg.TrustedProxies
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.CORSOrigins, cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Int("probe_port", cfg.ProbePort),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
	)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
