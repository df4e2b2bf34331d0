//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/resonance/internal/config"
	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/resonance"
)

var (
	configPath     string
	addr           string
	dbPath         string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", os.Getenv("RESONANCE_CONFIG"), "Path to YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address, overrides server.listen_addr")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database, overrides storage.db_path")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed origins (use * for all)")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		return 1
	}
	if addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if allowedOrigins != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(allowedOrigins, ",") {
			cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, strings.TrimSpace(o))
		}
	}
	level, _ := logger.ParseLevel(cfg.Server.LogLevel)
	log.SetLevel(level)
	log.SetShowCaller(level == logger.DEBUG)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: "1.0.0"})
	if err != nil {
		log.Errorf("Failed to init metrics: %v", err)
		return 1
	}
	defer shutdownMetrics(context.Background())
	metrics := observe.DefaultMetrics()

	opts := append(cfg.ServiceOptions(),
		resonance.WithLogger(log),
		resonance.WithMetrics(metrics),
	)
	service, err := resonance.NewService(opts...)
	if err != nil {
		log.Errorf("Failed to create service: %v", err)
		return 1
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Addr:            cfg.Server.ListenAddr,
		DBPath:          cfg.Storage.DBPath,
		TempDir:         cfg.Audio.TempDir,
		SampleRate:      cfg.Audio.SampleRate,
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, metrics)

	if err := server.Run(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		return 1
	}
	log.Infof("Goodbye")
	return 0
}
