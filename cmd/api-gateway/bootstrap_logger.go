package main

import (
	config "github.com/NordCoder/Aurum/internal/config/api-gateway"
	"github.com/NordCoder/Aurum/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.AsLoggerConfig())
}
