package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haowjy/docsearch-go/api"
	"github.com/haowjy/docsearch-go/config"
	"github.com/haowjy/docsearch-go/internal/logging"
	"github.com/haowjy/docsearch-go/session"
)

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *session.FileStore
	client  *api.Client
	manager *session.Manager
}

var current *app

func setup(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, JSON: cfg.Log.JSON})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	store := session.NewFileStore(cfg.TokenFile)
	client, err := api.NewClient(cfg.APIBaseURL, store,
		api.WithLogger(logger.Named("api")),
		api.WithCacheTTL(cfg.CacheTTL),
	)
	if err != nil {
		return err
	}

	current = &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		client:  client,
		manager: session.NewManager(store, client, session.WithLogger(logger.Named("session"))),
	}
	logger.Debug("configured", zap.String("api", cfg.APIBaseURL), zap.String("token_file", store.Path()))
	return nil
}

func teardown() {
	if current != nil {
		_ = current.logger.Sync()
	}
}

// requestContext bounds one non-streaming request by the configured timeout.
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.HTTPTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, a.cfg.HTTPTimeout)
}
