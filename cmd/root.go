package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coupon_spider/internal/app"
	"coupon_spider/internal/config"
)

// NewRootCmd creates the coupon_spider command. Flags override values read
// from the YAML config; a missing config file is fine when flags name the
// target.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon_spider",
		Short: "Scrape a numbered range of coupon pages and keep the unredeemed ones",
		Long: `coupon_spider builds <base-url>?<param>=<n> for every n in [start, end],
skips what robots.txt disallows, fetches the rest with retries and keeps the
pages whose visible text lacks the exclusion marker.

Results are written as JSON to --output and, when db.connection is set in
the config file, stored in MongoDB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSpider,
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "config.yaml", "Path to YAML configuration file")
	flags.String("base-url", "", "Base URL of the coupon pages")
	flags.String("param", "", "Query parameter that carries the index")
	flags.Int("start", 0, "First index of the range (inclusive)")
	flags.Int("end", 0, "Last index of the range (inclusive)")
	flags.IntP("workers", "w", config.DefaultWorkers, "Number of concurrent workers")
	flags.Int("retries", config.DefaultMaxRetries, "Fetch attempts per URL")
	flags.Float64("retry-delay", config.DefaultRetryDelaySec, "Seconds to wait between fetch attempts")
	flags.Float64("timeout", config.DefaultTimeoutSec, "Per-request timeout in seconds")
	flags.Int("delay-ms", 0, "Politeness delay before each fetch in milliseconds")
	flags.String("marker", config.DefaultExclusionMarker, "Text that marks a redeemed coupon")
	flags.String("robots-url", "", "robots.txt location (default <scheme>://<host>/robots.txt)")
	flags.StringP("output", "o", config.DefaultOutputPath, "Path of the JSON result file")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")

	return cmd
}

func runSpider(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := resolveConfig(cmd, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spiderApp, err := app.NewSpiderApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return spiderApp.Run(ctx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveConfig loads the config file and applies every flag the user set.
func resolveConfig(cmd *cobra.Command, logger *slog.Logger) (*config.SpiderConfig, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		if flags.Changed("config") {
			return nil, err
		}
		logger.Debug("no config file, using defaults", "path", path)
		cfg = config.Default()
	case err != nil:
		return nil, err
	}

	if flags.Changed("base-url") {
		cfg.Target.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("param") {
		cfg.Target.Param, _ = flags.GetString("param")
	}
	if flags.Changed("start") {
		cfg.Target.Start, _ = flags.GetInt("start")
	}
	if flags.Changed("end") {
		cfg.Target.End, _ = flags.GetInt("end")
	}
	if flags.Changed("robots-url") {
		cfg.Target.RobotsURL, _ = flags.GetString("robots-url")
	}
	if flags.Changed("workers") {
		cfg.Logic.MaxConcurrentWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("retries") {
		cfg.Logic.MaxRetries, _ = flags.GetInt("retries")
	}
	if flags.Changed("retry-delay") {
		cfg.Logic.RetryDelaySec, _ = flags.GetFloat64("retry-delay")
	}
	if flags.Changed("timeout") {
		cfg.Logic.TimeoutSec, _ = flags.GetFloat64("timeout")
	}
	if flags.Changed("delay-ms") {
		cfg.Logic.DelayMS, _ = flags.GetInt("delay-ms")
	}
	if flags.Changed("marker") {
		cfg.Filter.ExclusionMarker, _ = flags.GetString("marker")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
