package main

import (
	"github.com/spf13/cobra"

	"calgrid/internal/capture"
)

func snapshotCmd(gf *globalFlags) *cobra.Command {
	var (
		opts capture.Options
		out  string
		view string
		day  int
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture /calendar of a running server to a PNG file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadOptionalConfig(gf.configPath)
			if err != nil {
				return err
			}
			applyLogConfig(cfg, gf)

			if opts.URL == "" {
				opts.URL = capture.CalendarURL(cfg.Listen, view, day)
			}
			if cfg.BasicAuth != nil {
				opts.Username = cfg.BasicAuth.Username
				opts.Password = cfg.BasicAuth.Password
			}

			ctx, cancel := signalContext()
			defer cancel()

			return capture.CalendarToFile(ctx, opts, out)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "Calendar URL (default http://<listen>/calendar)")
	cmd.Flags().StringVarP(&out, "output", "o", "calendar.png", "Output PNG path")
	cmd.Flags().StringVar(&view, "view", "", "View type: week or day")
	cmd.Flags().IntVar(&day, "day", 0, "Day index for the day view")
	cmd.Flags().IntVar(&opts.Width, "width", capture.DefaultWidth, "Viewport width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", capture.DefaultHeight, "Viewport height in pixels")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", capture.DefaultTimeout, "Capture timeout")
	cmd.Flags().StringVar(&opts.ExecPath, "chrome", "", "Chromium binary path")

	return cmd
}
