// Package app builds the infinicraft object graph from a config.Config.
//
// Every surface (CLI commands, the HTTP server) goes through an App so that
// the gate, bus, catalog, canvas and engine are wired the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/infinicraft/internal/config"
	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/engine"
	"github.com/roach88/infinicraft/internal/events"
	"github.com/roach88/infinicraft/internal/feedback"
	"github.com/roach88/infinicraft/internal/generator"
	"github.com/roach88/infinicraft/internal/opstate"
	"github.com/roach88/infinicraft/internal/placement"
	"github.com/roach88/infinicraft/internal/recipe"
	"github.com/roach88/infinicraft/internal/store"
)

// ErrUnknownElement is returned when a name does not match any catalog entry.
var ErrUnknownElement = errors.New("unknown element")

// App holds the wired components. Fields are read-only after New.
type App struct {
	Config      config.Config
	Gate        *opstate.Gate
	Bus         *events.Bus
	Catalog     *element.Catalog
	Ledger      *placement.Ledger
	Recipes     recipe.Cache
	Client      generator.Client
	Engine      *engine.Engine
	Broadcaster *events.WebSocketBroadcaster

	logger   *slog.Logger
	store    *store.Store
	audio    *feedback.Audio
	unsubs   []func()
	ledgerID placement.IDGenerator
}

// Option configures New.
type Option func(*App)

// WithClient uses c instead of building a backend from the config.
func WithClient(c generator.Client) Option {
	return func(a *App) {
		a.Client = c
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithInstanceIDs sets the canvas instance id generator.
func WithInstanceIDs(g placement.IDGenerator) Option {
	return func(a *App) {
		a.ledgerID = g
	}
}

// New wires an App. With cfg.Database set, the catalog and recipes are
// loaded from and journaled to SQLite.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	a.Gate = opstate.New(cfg.Engine.CompletedGrace)
	a.Bus = events.NewBus(events.WithBusLogger(a.logger))
	a.Gate.OnChange(func(s opstate.State) {
		a.Bus.Publish(events.StateChanged(s.String()))
	})

	catalogOpts := []element.CatalogOption{element.WithCatalogLogger(a.logger)}
	if cfg.Database != "" {
		s, err := store.Open(cfg.Database)
		if err != nil {
			a.Gate.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = s

		persisted, err := s.ReadElements(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		hw, err := s.HighWater(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		catalogOpts = append(catalogOpts,
			element.WithJournal(s),
			element.WithElements(persisted),
			element.WithSequenceStart(hw),
		)
		a.Recipes = store.NewRecipeCache(s)
		a.logger.Info("store opened", "path", cfg.Database, "elements", len(persisted), "high_water", hw)
	} else {
		a.Recipes = recipe.NewMemory()
	}
	a.Catalog = element.NewCatalog(a.Gate, catalogOpts...)

	var ledgerOpts []placement.Option
	if a.ledgerID != nil {
		ledgerOpts = append(ledgerOpts, placement.WithIDGenerator(a.ledgerID))
	}
	a.Ledger = placement.NewLedger(a.Gate, a.Bus, ledgerOpts...)

	if a.Client == nil {
		client, err := generator.New(ctx, generator.Config{
			Backend: cfg.Generator.Backend,
			Model:   cfg.Generator.Model,
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey(),
			Timeout: cfg.Generator.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create generator: %w", err)
		}
		a.Client = client
	}

	hooks := feedback.Multi{feedback.NewVisual(a.Bus)}
	if cfg.Audio.Enabled {
		audio := feedback.NewAudio()
		if err := audio.Initialize(); err != nil {
			a.logger.Warn("audio feedback disabled", "error", err)
		} else {
			a.audio = audio
			hooks = append(hooks, audio)
		}
	}

	a.Engine = engine.New(a.Gate, a.Catalog, a.Ledger, a.Recipes, a.Client,
		engine.WithMaxAttempts(cfg.Engine.MaxAttempts),
		engine.WithGenerationOptions(generator.Options{
			MaxNewTokens: cfg.Generator.MaxNewTokens,
			Temperature:  cfg.Generator.Temperature,
		}),
		engine.WithHooks(hooks),
		engine.WithPublisher(a.Bus),
		engine.WithLogger(a.logger),
	)
	a.unsubs = append(a.unsubs, a.Engine.Subscribe(a.Bus))

	a.Broadcaster = events.NewWebSocketBroadcaster(a.logger)
	a.unsubs = append(a.unsubs, a.Bus.SubscribeAll(a.Broadcaster.Handle))

	return a, nil
}

// Lookup finds a catalog element by exact name.
func (a *App) Lookup(name string) (element.Element, error) {
	e, ok := a.Catalog.FindByName(name)
	if !ok {
		return element.Element{}, fmt.Errorf("%w: %q", ErrUnknownElement, name)
	}
	return e, nil
}

// MergeNames places one instance of each named element at random and merges
// them. It is the non-interactive form of a drag and drop.
func (a *App) MergeNames(ctx context.Context, source, target string) (element.Element, error) {
	src, err := a.Lookup(source)
	if err != nil {
		return element.Element{}, err
	}
	tgt, err := a.Lookup(target)
	if err != nil {
		return element.Element{}, err
	}
	w, h := a.Config.Canvas.Width, a.Config.Canvas.Height
	srcID := a.Ledger.PlaceRandom(src, w, h)
	tgtID := a.Ledger.PlaceRandom(tgt, w, h)
	return a.Engine.MergeByID(ctx, srcID, tgtID)
}

// RecipeEntries lists the cached recipes.
func (a *App) RecipeEntries(ctx context.Context) ([]recipe.Entry, error) {
	l, ok := a.Recipes.(recipe.Lister)
	if !ok {
		return nil, errors.New("recipe cache cannot be listed")
	}
	return l.Entries(ctx)
}

// Close waits for in-flight merges, then releases every resource.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Wait()
	}
	for i := len(a.unsubs) - 1; i >= 0; i-- {
		a.unsubs[i]()
	}
	a.unsubs = nil

	var errs []error
	if a.Broadcaster != nil {
		errs = append(errs, a.Broadcaster.Close())
	}
	if a.audio != nil {
		a.audio.Close()
	}
	a.Gate.Close()
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
