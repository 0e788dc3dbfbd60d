package app

import (
	"context"
	"fmt"
	"log/slog"

	"coupon_spider/internal/config"
	"coupon_spider/internal/db"
	"coupon_spider/internal/output"
)

// SpiderApp wires a CouponSpider to its collaborators: the optional MongoDB
// store and the JSON output file.
type SpiderApp struct {
	config *config.SpiderConfig
	db     *db.MongoDB
	spider *CouponSpider
	logger *slog.Logger
}

func NewSpiderApp(ctx context.Context, cfg *config.SpiderConfig, logger *slog.Logger) (*SpiderApp, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &SpiderApp{
		config: cfg,
		logger: logger,
	}

	opts := []Option{WithLogger(logger)}
	if cfg.DB.Enabled() {
		mongoDB, err := db.NewMongoDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		a.db = mongoDB
		opts = append(opts, WithSink(mongoDB))
	}

	spider, err := NewCouponSpider(cfg, opts...)
	if err != nil {
		a.closeDB()
		return nil, err
	}
	a.spider = spider

	return a, nil
}

func (a *SpiderApp) Run(ctx context.Context) error {
	defer a.closeDB()

	a.logger.Info("🤖 starting spider",
		"output", a.config.Output.Path,
		"database", a.dbName(),
		"retries", a.config.Logic.MaxRetries,
		"retry_delay_sec", a.config.Logic.RetryDelaySec,
		"timeout_sec", a.config.Logic.TimeoutSec,
	)

	results, err := a.spider.Run(ctx)
	if err != nil {
		return fmt.Errorf("run spider: %w", err)
	}

	if err := output.WriteJSON(a.config.Output.Path, results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	stats := a.spider.Stats()
	a.logger.Info("run statistics",
		"generated", stats.Generated,
		"disallowed", stats.Disallowed,
		"accepted", stats.Accepted,
		"redeemed", stats.Redeemed,
		"failed", stats.Failed,
		"duration", stats.Duration.String(),
	)
	a.logger.Info(fmt.Sprintf("✅ Scraping completed. Found %d unredeemed coupons.", len(results)))
	return nil
}

func (a *SpiderApp) dbName() string {
	if a.db == nil {
		return "disabled"
	}
	return a.config.DB.Database
}

func (a *SpiderApp) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close MongoDB", "error", err)
	}
	a.db = nil
}
