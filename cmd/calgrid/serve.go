package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/metrics"
	"calgrid/internal/refresh"
	"calgrid/internal/web"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	var (
		listen string
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh ICS sources on a schedule and serve the layout API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(gf.configPath)
			if err != nil {
				return err
			}
			applyLogConfig(cfg, gf)

			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, cancel := signalContext()
			defer cancel()

			return serve(ctx, cfg, once)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single refresh, log the summary and exit")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, once bool) error {
	appLog.Info("calgrid starting", "version", version)
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"backfill_days", cfg.BackfillDays,
		"ics_count", len(cfg.ICS),
		"view", cfg.Layout.View,
	)

	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}
	fetcher := ics.NewFetcher(cfg.CacheDir, ics.FetcherOptions{
		Timeout:     cfg.Fetch.Timeout,
		MaxBodySize: maxBody,
	})

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, src := range cfg.ICS {
		sources = append(sources, ics.Source{ID: src.ID, URL: src.URL})
	}

	m := metrics.New()
	r := refresh.New(fetcher, refresh.Options{
		Sources:      sources,
		Location:     cfg.Location(),
		WeekStart:    cfg.WeekStart,
		BackfillDays: cfg.BackfillDays,
		HorizonDays:  cfg.HorizonDays,
		Layout:       cfg.LayoutConfig(),
		Highlight:    cfg.HighlightRed,
	}, m)

	// A failed first refresh is not fatal; the server answers 503 until a
	// scheduled run succeeds.
	snap, err := r.RunOnce(ctx)
	switch {
	case err == nil:
		appLog.Info("initial refresh done",
			"occurrences", len(snap.Occurrences),
			"days", len(snap.Plan.Days),
			"errors", len(snap.Errors),
		)
	case errors.Is(err, refresh.ErrAllSourcesFailed):
		appLog.Warn("initial refresh failed", "err", err)
	default:
		return fmt.Errorf("initial refresh: %w", err)
	}

	if once {
		return nil
	}

	if err := r.Start(ctx, cfg.RefreshCron); err != nil {
		return err
	}
	defer r.Stop()

	srv := web.NewServer(cfg, r, m)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}

	appLog.Info("calgrid exiting")
	return nil
}
