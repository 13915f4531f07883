package main

import (
	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"go.uber.org/zap"
)

// version is stamped at build time via -ldflags
var version = "dev"

func main() {
	// Load configuration
	cfg := config.DefaultConfig()

	// Initialize logger
	if err := logger.Init(cfg.Logging.Path, cfg.Logging.Level); err != nil {
		panic(err)
	}
	defer logger.Info("Server shutting down")

	// Setup and start server
	srv, scheduler, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}

	if err := StartServer(srv, scheduler); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
