package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/jscyril/golang_media_player/internal/history"
	"github.com/jscyril/golang_media_player/internal/library"
	"github.com/jscyril/golang_media_player/internal/observability"
	"github.com/jscyril/golang_media_player/internal/player"
	"github.com/jscyril/golang_media_player/internal/render"
	"github.com/jscyril/golang_media_player/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runPlay(cmd *cobra.Command, args []string) error {
	headless, _ := cmd.Flags().GetBool("headless")
	cfg, err := loadConfig(cmd, !headless)
	if err != nil {
		return err
	}

	logger, closeLog, err := observability.OpenLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, errs := library.NewScanner(0).Expand(ctx, args)
	for _, err := range errs {
		logger.Warn("skipping source", slog.String("error", err.Error()))
	}
	if headless && len(items) == 0 {
		return errors.New("nothing to play")
	}

	store, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		logger.Warn("history disabled", slog.String("error", err.Error()))
		store = history.NopStore{}
	}

	var out api.AudioOutput
	if o, err := newAudioOutput(cfg.Audio, logger); err != nil {
		logger.Warn("audio disabled", slog.String("error", err.Error()))
	} else {
		out = o
	}

	sampler, err := observability.NewResourceSampler(time.Second)
	if err != nil {
		logger.Warn("resource sampling disabled", slog.String("error", err.Error()))
	}

	var (
		renderer api.Renderer = render.NewNullRenderer()
		terminal *render.TerminalRenderer
	)
	if !headless {
		terminal = render.NewTerminalRenderer(cfg.UI.VideoWidth, cfg.UI.VideoHeight, logger)
		renderer = terminal
	}

	p, err := player.New(player.Options{
		Config:   cfg,
		Renderer: renderer,
		Audio:    out,
		Store:    store,
		Sampler:  sampler,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close player", slog.String("error", err.Error()))
		}
	}()

	if err := p.Enqueue(false, items...); err != nil {
		logger.Error("load failed", slog.String("error", err.Error()))
		if headless {
			return err
		}
	}

	if headless {
		return ignoreCanceled(p.Run(ctx))
	}

	w := ui.NewWindow(cfg.UI, p, terminal, logger)
	p.AttachWindow(w)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		defer w.Close()
		return ignoreCanceled(p.Run(gctx))
	})
	return g.Wait()
}

func newAudioOutput(cfg config.AudioConfig, logger *slog.Logger) (*audio.Output, error) {
	device, err := audio.NewDevice(cfg.Device, cfg.DeviceBuffer)
	if err != nil {
		return nil, err
	}
	curve, err := audio.ParseRampCurve(cfg.RampCurve)
	if err != nil {
		return nil, err
	}
	return audio.NewOutput(device, audio.OutputConfig{
		RingBufferSize: cfg.RingBufferSize,
		MinFillRatio:   cfg.MinFillRatio,
		DeviceLatency:  cfg.DeviceLatency,
		RampSamples:    cfg.RampSamples,
		RampCurve:      curve,
		Normalize:      cfg.Normalize,
		Compress:       cfg.Compress,
	}, logger), nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
