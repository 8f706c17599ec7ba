// Package daemon wires the X connection, the compositing screen and the
// control surfaces (IPC, hotkeys, config reload) into a running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/1broseidon/compote/internal/composite"
	"github.com/1broseidon/compote/internal/config"
	"github.com/1broseidon/compote/internal/event"
	"github.com/1broseidon/compote/internal/hotkeys"
	"github.com/1broseidon/compote/internal/ipc"
	"github.com/1broseidon/compote/internal/logging"
	"github.com/1broseidon/compote/internal/loop"
	"github.com/1broseidon/compote/internal/window"
	"github.com/1broseidon/compote/internal/x11"
	"github.com/1broseidon/compote/internal/xrender"
	"golang.org/x/sync/errgroup"
)

// Name is written to the selection owner window.
const Name = "compote"

// Options configure Run.
type Options struct {
	// ConfigPath defaults to config.DefaultConfigPath.
	ConfigPath string
	// Display overrides the configured display.
	Display string
}

type daemon struct {
	path   string
	logger *slog.Logger

	conn     *x11.Connection
	renderer *xrender.Renderer
	loop     *loop.Loop
	screen   *composite.Screen
	keys     *hotkeys.Handler

	// applyMu serializes reloads arriving from IPC, SIGHUP and the watcher.
	applyMu sync.Mutex
	current *config.Config
}

// Run composites the display until ctx is cancelled or compositing fails.
func Run(ctx context.Context, opts Options) error {
	path := opts.ConfigPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := res.Config
	if opts.Display != "" {
		cfg.Display = opts.Display
	}

	logger, closer, err := logging.New(cfg.GetLoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", path, "files", len(res.Files))

	d := &daemon{path: path, logger: logger, current: cfg}
	return d.run(ctx)
}

func (d *daemon) run(parent context.Context) error {
	cfg := d.current
	logger := d.logger

	conn, err := x11.NewConnection(cfg.Display, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	d.conn = conn

	if err := conn.InitExtensions(); err != nil {
		return err
	}
	if err := conn.AcquireSelection(Name); err != nil {
		return err
	}
	if err := conn.Redirect(); err != nil {
		return err
	}

	screenRect, err := conn.ScreenRect()
	if err != nil {
		return err
	}
	detected, err := conn.Outputs()
	if err != nil {
		logger.Warn("output detection failed, using the whole screen", "error", err)
		detected = nil
	}
	ccfg, err := compositeConfig(cfg, d.detectedRate(cfg))
	if err != nil {
		return err
	}
	background, err := xrender.ParseColor(cfg.BackgroundColor)
	if err != nil {
		return err
	}
	renderer, err := xrender.New(conn, screenRect.Size(), background, logger)
	if err != nil {
		return err
	}
	d.renderer = renderer

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	d.loop = loop.New(nil, logger)
	screen, err := composite.NewScreen(composite.Options{
		Timers:    d.loop,
		Renderer:  renderer,
		Restacker: conn,
		Root:      window.ID(conn.Root),
		Screen:    screenRect,
		Outputs:   detected,
		Config:    ccfg,
		Logger:    logger,
		OnFatal: func(err error) {
			logger.Error("compositing stopped", "error", err)
			cancel()
		},
	})
	if err != nil {
		return err
	}
	d.screen = screen

	pump := x11.NewPump(conn, func(ev event.Event) {
		d.loop.Post(func() { screen.Handle(ev) })
	}, logger)
	d.keys = hotkeys.NewHandler(conn.XUtil, conn.Root, logger)
	d.registerHotkeys(cfg)
	pump.SetKeyHandler(d.keys)
	if err := pump.Scan(); err != nil {
		return fmt.Errorf("failed to scan existing windows: %w", err)
	}
	d.loop.Post(screen.Start)

	ctrl := NewController(screen, d.loop.Call, d.reload)
	srv, err := ipc.NewServer(ctrl, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := d.loop.Run(gctx)
		screen.Stop()
		renderer.Close()
		// Closing the connection is what ends the pump.
		conn.Close()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return pump.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if interval := cfg.ReconcileInterval.Duration; interval > 0 {
		reconciler := NewReconciler(ReconcilerConfig{Interval: interval, Logger: logger},
			conn.StackingOrder, screen, d.loop.Call)
		g.Go(func() error {
			return reconciler.Run(gctx)
		})
	}
	g.Go(func() error {
		err := config.Watch(gctx, d.path, logger, func(res *config.LoadResult) {
			if err := d.apply(gctx, res.Config); err != nil {
				logger.Warn("failed to apply reloaded configuration", "error", err)
			}
		})
		if err != nil && gctx.Err() == nil {
			logger.Warn("config file watching disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		d.handleSignals(gctx)
		return nil
	})

	logger.Info("compositing", "screen", screenRect.Size(), "outputs", len(detected), "refresh_rate", ccfg.RefreshRate)
	err = g.Wait()
	if fatal := screen.Err(); fatal != nil {
		return fatal
	}
	if err != nil {
		return err
	}
	logger.Info("compositor stopped")
	return nil
}

// handleSignals reloads the configuration on SIGHUP.
func (d *daemon) handleSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			d.logger.Info("received SIGHUP, reloading config")
			if err := d.reload(ctx); err != nil {
				d.logger.Warn("config reload failed", "error", err)
			}
		}
	}
}

func (d *daemon) registerHotkeys(cfg *config.Config) {
	seq := cfg.Hotkeys.Repaint
	if seq == "" {
		return
	}
	err := d.keys.Register(seq, func() {
		d.loop.Post(d.screen.DamageScreen)
	})
	if err != nil {
		d.logger.Warn("failed to register repaint hotkey", "keys", seq, "error", err)
		return
	}
	d.logger.Info("repaint hotkey registered", "keys", seq)
}

func (d *daemon) detectedRate(cfg *config.Config) int {
	if !cfg.DetectRefreshRate {
		return 0
	}
	return d.conn.RefreshRate()
}

func (d *daemon) reload(ctx context.Context) error {
	res, err := config.LoadFromPath(d.path)
	if err != nil {
		return err
	}
	return d.apply(ctx, res.Config)
}

// apply pushes a new configuration into the running compositor. Display
// and logging changes need a restart.
func (d *daemon) apply(ctx context.Context, cfg *config.Config) error {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	background, err := xrender.ParseColor(cfg.BackgroundColor)
	if err != nil {
		return err
	}
	ccfg, err := compositeConfig(cfg, d.detectedRate(cfg))
	if err != nil {
		return err
	}
	err = d.loop.Call(ctx, func() {
		d.renderer.SetBackground(background)
		d.screen.Configure(ccfg)
	})
	if err != nil {
		return err
	}

	prev := d.current
	if cfg.Hotkeys.Repaint != prev.Hotkeys.Repaint {
		d.keys.UnregisterAll()
		d.registerHotkeys(cfg)
	}
	if cfg.Display != "" && cfg.Display != prev.Display {
		d.logger.Warn("display change takes effect after restart", "display", cfg.Display)
	}
	if cfg.Logging != prev.Logging {
		d.logger.Warn("logging changes take effect after restart")
	}
	if cfg.Display == "" {
		cfg.Display = prev.Display
	}
	d.current = cfg
	d.logger.Info("configuration applied", "refresh_rate", ccfg.RefreshRate, "outputs", len(ccfg.OutputOverrides))
	return nil
}

// compositeConfig maps the file configuration onto screen settings. A
// positive detectedRate wins over the configured rate.
func compositeConfig(cfg *config.Config, detectedRate int) (composite.Config, error) {
	overrides, err := cfg.OutputDevices()
	if err != nil {
		return composite.Config{}, err
	}
	rate := cfg.RefreshRate
	if cfg.DetectRefreshRate && detectedRate > 0 {
		rate = detectedRate
	}
	return composite.Config{
		RefreshRate:             rate,
		SyncToVBlank:            cfg.SyncToVBlank,
		ForceIndependentOutputs: cfg.ForceIndependentOutputPainting,
		EnforceStacking:         cfg.EnforceStacking,
		DamageRectLimit:         cfg.DamageRectLimit,
		OutputOverrides:         overrides,
	}, nil
}
