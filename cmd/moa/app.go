package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/config"
	"github.com/dusk-indust/moa/internal/logging"
	"github.com/dusk-indust/moa/internal/orchestrator"
	"github.com/dusk-indust/moa/internal/prompt"
	"github.com/dusk-indust/moa/internal/trace"
)

// app is a configured chain and the resources it holds.
type app struct {
	cfg    *config.File
	logger *slog.Logger
	chain  *orchestrator.Chain
	store  trace.Store
}

// appOptions carry per-command wiring.
type appOptions struct {
	traceDB    string
	onProgress func(orchestrator.ProgressEvent)
	backends   map[backend.Kind]backend.Backend
	logOutput  io.Writer
}

// loadConfig reads the --config file, or moa.yml/moa.yaml in the working
// directory. It returns the file and the directory prompt documents are
// resolved against.
func loadConfig(opts *globalOptions) (*config.File, string, error) {
	path := opts.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("resolving working directory: %w", err)
		}
		path, err = config.Find(wd)
		if err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, filepath.Dir(path), nil
}

// newApp builds the chain described by the configuration. Flag values for
// logging take precedence over the file.
func newApp(ctx context.Context, opts *globalOptions, ao appOptions) (*app, error) {
	cfg, root, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level, lc.Format = cfg.Logging.Level, cfg.Logging.Format
	if opts.logLevel != "" {
		lc.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		lc.Format = opts.logFormat
	}
	if ao.logOutput != nil {
		lc.Output = ao.logOutput
	}
	logger := logging.New(lc)

	backends := ao.backends
	if backends == nil {
		backends = backend.DefaultBackends()
	}
	invoker := backend.NewInvoker(cfg.Selector(), backends,
		backend.WithLogger(logger),
		backend.WithBreakers(backend.NewBreakers(cfg.BreakerSettings(), logger)),
	)
	resolver := prompt.NewResolver(root)

	a := &app{cfg: cfg, logger: logger}
	chainOpts := []orchestrator.ChainOption{orchestrator.WithChainLogger(logger)}
	if ao.onProgress != nil {
		chainOpts = append(chainOpts, orchestrator.WithProgress(ao.onProgress))
	}
	if ao.traceDB != "" {
		store, err := trace.Open(ctx, ao.traceDB)
		if err != nil {
			return nil, fmt.Errorf("open trace store: %w", err)
		}
		a.store = store
		chainOpts = append(chainOpts, orchestrator.WithRecorder(trace.NewRecorder(store)))
	}

	a.chain = orchestrator.NewChain(cfg.Pipeline(),
		orchestrator.NewLayerProcessor(resolver, invoker, cfg.MaxParallel, ao.onProgress),
		orchestrator.NewAggregator(resolver, invoker, cfg.SynthesisModel),
		chainOpts...,
	)
	return a, nil
}

// Close releases the trace store, if any.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
