package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/config"
	"github.com/xkilldash9x/kao/internal/kao"
	"github.com/xkilldash9x/kao/internal/metrics"
	"github.com/xkilldash9x/kao/internal/sparql"
	"github.com/xkilldash9x/kao/internal/store"
)

// repositoryProvider opens the configured statement store. Tests swap it out.
type repositoryProvider interface {
	Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (store.Repository, error)
}

type defaultRepositoryProvider struct{}

func (defaultRepositoryProvider) Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (store.Repository, error) {
	return store.Open(ctx, cfg.Store(), logger)
}

// wiring is what a command needs to drive an access object.
type wiring struct {
	repo    store.Repository
	runner  kao.QueryRunner
	metrics *metrics.Registry
}

// newWiring opens the store and, when an endpoint is configured, the query
// runner. The caller closes repo.
func newWiring(ctx context.Context, provider repositoryProvider, cfg config.Interface, logger *zap.Logger) (*wiring, error) {
	repo, err := provider.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	w := &wiring{repo: repo}
	if cfg.SPARQL().Endpoint != "" {
		runner, err := sparql.NewHTTPRunner(cfg.SPARQL(), nil, logger)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to create query runner: %w", err)
		}
		w.runner = runner
	}
	if cfg.Metrics().Enabled {
		w.metrics = metrics.NewRegistry(cfg.Metrics().Namespace)
	}
	return w, nil
}

// accessObject binds a new access object to class.
func (w *wiring) accessObject(cfg config.Interface, class schemas.IRI, logger *zap.Logger) *kao.KAO {
	return kao.New(schemas.EntityType{IRI: class}, w.repo, w.runner,
		kao.WithLogger(logger),
		kao.WithConfig(cfg.KAO()),
		kao.WithMetrics(w.metrics),
	)
}

// dumpMetrics writes the collected metrics in the text exposition format.
// It is a no-op when metrics are disabled.
func (w *wiring) dumpMetrics(out io.Writer) error {
	if w.metrics == nil {
		return nil
	}
	families, err := w.metrics.Gatherer().Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

func (w *wiring) close(logger *zap.Logger) {
	if err := w.repo.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}
