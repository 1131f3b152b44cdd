package server

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/cache"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/funnel"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/session"
	"github.com/hrygo/servicefunnel/store"
)

// Components are the process-scoped parts of the funnel, shared by the HTTP
// server and the interactive chat.
type Components struct {
	Catalog *catalog.Catalog
	Lexicon *lexicon.Lexicon
	// LLM is nil when no model is configured.
	LLM     ai.LLMClient
	Dialogs session.DialogStore
	Funnel  *funnel.Service
	Metrics *observability.Metrics

	cache *cache.Service
}

// NewComponents wires the funnel from the profile. When dialogs is nil,
// dialogs are kept in the store behind an LRU cache.
func NewComponents(prof *profile.Profile, st *store.Store, metrics *observability.Metrics, dialogs session.DialogStore) (*Components, error) {
	lex, err := lexicon.Load(prof.FeaturesPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load feature table")
	}

	var source catalog.Source
	if prof.CatalogFile != "" {
		source = catalog.NewFileSource(prof.CatalogFile)
	} else {
		source = catalog.NewStoreSource(st)
	}

	c := &Components{
		Catalog: catalog.New(source, prof.CatalogTTL),
		Lexicon: lex,
		Dialogs: dialogs,
		Metrics: metrics,
	}
	if c.Dialogs == nil {
		c.cache = cache.NewService(cache.DefaultServiceConfig())
		c.Dialogs = session.NewDialogStore(st, c.cache)
	}

	aiConfig := ai.NewConfigFromProfile(prof)
	if aiConfig.Enabled {
		if err := aiConfig.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid llm configuration")
		}
		opts := []ai.LLMOption{ai.WithMetrics(metrics)}
		if prof.LLMRecordUsage {
			opts = append(opts, ai.WithUsageRecorder(ai.NewStoreUsageRecorder(st)))
		}
		c.LLM, err = ai.NewLLMClient(&aiConfig.LLM, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create llm client")
		}
		slog.Info("llm enabled", slog.String("provider", aiConfig.LLM.Provider), slog.String("model", aiConfig.LLM.Model))
	} else {
		slog.Info("llm disabled, running the deterministic funnel")
	}

	c.Funnel = funnel.Build(c.Catalog, lex, c.Dialogs, c.LLM, metrics)
	return c, nil
}

// Warmup loads the catalog so that an empty or unreachable catalog is
// reported at startup rather than on the first turn.
func (c *Components) Warmup(ctx context.Context) error {
	snap, err := c.Catalog.Snapshot(ctx)
	if err != nil {
		return err
	}
	slog.Info("catalog ready", slog.Int("services", snap.Len()))
	return nil
}

// Close releases background workers.
func (c *Components) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}
