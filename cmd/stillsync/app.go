package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stillapp/stillsync/internal/config"
	"github.com/stillapp/stillsync/internal/engine"
	"github.com/stillapp/stillsync/internal/queue"
	"github.com/stillapp/stillsync/internal/remote"
	"github.com/stillapp/stillsync/internal/store"
)

// app wires the full stack for a command invocation: config, local store,
// pending queue, remote client, and the sync engine.
type app struct {
	cfg    *config.Config
	store  *store.Store
	queue  *queue.Queue
	client *remote.Client
	engine *engine.Engine
	logger *log.Logger
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// Diagnostics go to a rotated file in the state dir; --verbose
	// mirrors them to stderr. Command output stays clean either way.
	var out io.Writer = &lumberjack.Logger{
		Filename:   cfg.LogPath(),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	if verbose {
		out = io.MultiWriter(out, os.Stderr)
	}
	logger := log.New(out, "[stillsync] ", log.LstdFlags)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	q, err := queue.Open(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open pending queue: %w", err)
	}

	client := remote.New(cfg.APIBaseURL, remote.NewStoreTokenSource(st), &remote.Config{
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})

	eng := engine.New(st, client, q, &engine.Config{
		ReplayInterval: cfg.ReplayInterval,
		Logger:         logger,
	})

	return &app{
		cfg:    cfg,
		store:  st,
		queue:  q,
		client: client,
		engine: eng,
		logger: logger,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Printf("WARNING: failed to close store: %v", err)
	}
}
