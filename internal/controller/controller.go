// Package controller drives one scraper run: resolve the plugin, clear its
// previous data, run it, and release its network session.
package controller

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/clearer"
	"github.com/law-makers/scrape/internal/engine"
	"github.com/law-makers/scrape/internal/registry"
	"github.com/law-makers/scrape/internal/reqctx"
	"github.com/law-makers/scrape/pkg/models"
)

// Clearer drops a plugin's previously stored data.
type Clearer interface {
	Clear(ctx context.Context, parser string) error
}

// Options wires the controller's collaborators. Zero values use defaults.
type Options struct {
	Registry *registry.Registry
	Clearer  Clearer

	// Env is passed to the plugin factory; its Config is replaced by the
	// controller's RunConfig.
	Env engine.Env

	// OnState observes every transition.
	OnState func(models.State)
}

// Controller runs a single plugin once.
type Controller struct {
	cfg  models.RunConfig
	opts Options

	mu       sync.Mutex
	state    models.State
	identity models.Identity
}

// New creates a Controller in the Idle state.
func New(cfg models.RunConfig, opts Options) *Controller {
	cfg.Headers = maps.Clone(cfg.Headers)
	cfg.Params = maps.Clone(cfg.Params)
	if opts.Registry == nil {
		opts.Registry = registry.Default
	}
	return &Controller{
		cfg:   cfg,
		opts:  opts,
		state: models.StateIdle,
	}
}

// State returns the current state.
func (c *Controller) State() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the resolved plugin's identity, empty before Loading
// completes.
func (c *Controller) Identity() models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Controller) setState(s models.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// Run executes the lifecycle once and returns the plugin's record.
//
// Resolution failures and missing capabilities end in Aborted with
// (nil, nil). Cancellation ends in Aborted with ctx.Err(). Any other plugin
// error ends in Failed and is returned. The plugin's session is closed on
// every path that reaches Running. An empty ClearBaseURL with no Clearer
// skips the pre-clear with a warning.
func (c *Controller) Run(ctx context.Context) (models.Record, error) {
	if s := c.State(); s != models.StateIdle {
		if s.Terminal() {
			return nil, errors.New("controller already ran, state " + string(s))
		}
		return nil, errors.New("controller is running, state " + string(s))
	}

	ctx = reqctx.WithRunContext(ctx, c.cfg.PluginID)
	rc := reqctx.GetRunContext(ctx)
	logger := log.With().
		Str("run_id", rc.RunID).
		Str("plugin", c.cfg.PluginID).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Msg("Starting run")

	c.setState(models.StateLoading)
	env := c.opts.Env
	env.Config = c.cfg
	plugin := c.opts.Registry.Resolve(c.cfg.PluginID, env)
	if plugin == nil {
		logger.Error().Msg("No plugin resolved, aborting run")
		c.setState(models.StateAborted)
		return nil, nil
	}
	identity := plugin.Identify()
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	c.setState(models.StateClearing)
	c.clear(ctx, logger, identity.Name)
	if err := ctx.Err(); err != nil {
		logger.Warn().Err(err).Msg("Run cancelled before plugin started")
		c.setState(models.StateAborted)
		return nil, err
	}

	return c.runPlugin(ctx, logger, plugin)
}

func (c *Controller) clear(ctx context.Context, logger zerolog.Logger, name string) {
	if c.cfg.ClearBaseURL == "" && c.opts.Clearer == nil {
		logger.Warn().Msg("No clear endpoint configured, skipping pre-clear")
		return
	}

	cl := c.opts.Clearer
	if cl == nil {
		opts := clearer.Options{BaseURL: c.cfg.ClearBaseURL}
		if c.opts.Env.Fetcher != nil {
			opts.UserAgent = c.opts.Env.Fetcher.UserAgent()
		}
		cl = clearer.New(opts)
	}

	if err := cl.Clear(ctx, name); err != nil {
		logger.Error().Err(err).Str("parser", name).Msg("Failed to clear previous data, continuing")
	}
}

func (c *Controller) runPlugin(ctx context.Context, logger zerolog.Logger, plugin engine.Plugin) (models.Record, error) {
	c.setState(models.StateRunning)

	defer func() {
		if r := recover(); r != nil {
			c.setState(models.StateClosingSession)
			closeSession(logger, plugin)
			c.setState(models.StateFailed)
			panic(r)
		}
	}()

	rec, err := plugin.Run(ctx)

	c.setState(models.StateClosingSession)
	closeSession(logger, plugin)

	identity := plugin.Identify()
	switch {
	case err == nil:
		c.setState(models.StateDone)
		logger.Info().
			Str("identity", identity.Name).
			Bool("record", rec != nil).
			Dur("elapsed", reqctx.GetRunContext(ctx).Elapsed()).
			Msg("Run completed")
		return rec, nil

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Warn().Err(err).Msg("Run cancelled")
		c.setState(models.StateAborted)
		return nil, ctx.Err()

	case errors.Is(err, engine.ErrMissingCapability):
		logger.Error().Err(err).Msg("Plugin lacks a required capability, aborting run")
		c.setState(models.StateAborted)
		return nil, nil

	default:
		ev := logger.Error().Err(err)
		if code := engine.Code(err); code != "" {
			ev = ev.Str("code", string(code))
		}
		var ee *engine.EngineError
		if errors.As(err, &ee) && len(ee.Details) > 0 {
			ev = ev.Fields(ee.Details)
		}
		ev.Msg("Plugin failed")
		c.setState(models.StateFailed)
		return nil, reqctx.NewRunError(ctx, err)
	}
}

func closeSession(logger zerolog.Logger, plugin engine.Plugin) {
	holder, ok := plugin.(engine.SessionHolder)
	if !ok {
		return
	}
	s := holder.Session()
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close network session")
		return
	}
	logger.Debug().Msg("Network session closed")
}
