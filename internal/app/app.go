package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/fileio-go/internal/batch"
	"github.com/samvad-hq/fileio-go/internal/config"
	"github.com/samvad-hq/fileio-go/internal/logger"
	"github.com/samvad-hq/fileio-go/internal/reconcile"
	"github.com/samvad-hq/fileio-go/internal/storage"
	"github.com/samvad-hq/fileio-go/pkg/fileio"
	"github.com/samvad-hq/fileio-go/pkg/publishers"
)

// App wires the file.io client with the local ledger, event sinks and the
// batch runner.
type App struct {
	cfg        *config.Config
	client     *fileio.Client
	clientOpts []fileio.Option
	store      storage.Store
	fanout     *publishers.Fanout
	runner     *batch.Runner
	reconciler *reconcile.Service
	log        logger.Logger
	now        func() time.Time
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	publishers []publishers.Publisher
	clientOpts []fileio.Option
}

// WithPublishers replaces the publishers loaded from the publishers file.
func WithPublishers(pubs ...publishers.Publisher) Option {
	return func(o *options) { o.publishers = pubs }
}

// WithClientOptions appends options to the file.io clients.
func WithClientOptions(opts ...fileio.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// New builds the runtime from config.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fanout, err := buildFanout(ctx, cfg, log, o.publishers)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		RecordTTL:       cfg.LedgerTTL,
		CleanupInterval: cfg.LedgerCleanupInterval,
	}
	store, err := storage.NewStore(cfg.LedgerType, cfg.LedgerPath, storeOpts)
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	log.DebugObj("ledger initialized", "ledger_config", map[string]any{
		"type":                     cfg.LedgerType,
		"path":                     cfg.LedgerPath,
		"ttl_seconds":              int(cfg.LedgerTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.LedgerCleanupInterval.Seconds()),
	})

	clientOpts := append([]fileio.Option{
		fileio.WithBaseURL(cfg.BaseURL),
		fileio.WithTimeout(cfg.RequestTimeout),
		fileio.WithLogger(log),
	}, o.clientOpts...)
	client := fileio.New(cfg.APIKey, clientOpts...)
	log.DebugObj("fileio client ready", "fileio_client", map[string]any{
		"base_url":      client.BaseURL(),
		"authenticated": client.Authenticated(),
	})

	return &App{
		cfg:        cfg,
		client:     client,
		clientOpts: clientOpts,
		store:      store,
		fanout:     fanout,
		runner:     batch.NewRunner(cfg.RateLimit, cfg.RateBurst, cfg.Concurrency),
		reconciler: reconcile.NewService(client, store, fanout, log),
		log:        log,
		now:        time.Now,
	}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger, pubs []publishers.Publisher) (*publishers.Fanout, error) {
	if pubs != nil || cfg.PublishersFile == "" {
		return publishers.NewFanout(pubs), nil
	}

	reg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	built, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(built), nil
}

// Client returns the authenticated client.
func (a *App) Client() *fileio.Client { return a.client }

// Close releases the ledger and event sinks.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	if err := a.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	return errors.Join(errs...)
}

// clientFor returns an unauthenticated client when anonymous is set.
func (a *App) clientFor(anonymous bool) *fileio.Client {
	if anonymous {
		return fileio.New("", a.clientOpts...)
	}
	return a.client
}

// publish sends evt to every sink. Failures are logged and never fail the
// file operation.
func (a *App) publish(ctx context.Context, evt publishers.Event) {
	if a.fanout.Size() == 0 {
		return
	}
	n, err := a.fanout.Publish(ctx, evt)
	if err != nil {
		a.log.WarnObj("event publish failed", "publish_error", map[string]any{
			"event_type": evt.Type,
			"key":        evt.Key,
			"delivered":  n,
			"error":      err.Error(),
		})
		return
	}
	a.log.DebugObj("event published", "publish_result", map[string]any{
		"event_type": evt.Type,
		"key":        evt.Key,
		"delivered":  n,
	})
}

// nodeOf extracts the file node carried by an upload or update result.
func nodeOf(res *fileio.Result) fileio.Node {
	var node fileio.Node
	if err := res.Decode(&node); err != nil || node.Key == "" {
		node.Key = res.Key
	}
	if node.Name == "" {
		node.Name = res.Name
	}
	if node.Link == "" {
		node.Link = res.Link
	}
	return node
}
