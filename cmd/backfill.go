package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudadoption/media-log-ingestor/internal/config"
	"github.com/cloudadoption/media-log-ingestor/internal/delivery"
	"github.com/cloudadoption/media-log-ingestor/internal/logging"
	"github.com/cloudadoption/media-log-ingestor/internal/mediaref"
	"github.com/cloudadoption/media-log-ingestor/internal/pipeline"
	"github.com/cloudadoption/media-log-ingestor/internal/site"
)

// newBackfillCmd creates and configures the 'backfill' subcommand, which
// runs the whole discovery/extraction/delivery pipeline once.
func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Runs a media-usage log backfill for one site",
		Long: `Discovers the site's resources through a bulk status job, scans every
page's markdown for media references, and delivers them to the media log.
The admin token is read from MEDIALOG_AUTH_TOKEN (or auth.token in the
config file).`,

		RunE: runBackfillCommand,
	}

	flags := cmd.Flags()
	flags.String("org", "", "organization the site belongs to")
	flags.String("site", "", "site name")
	flags.String("ref", "main", "ref (branch) to read content from")
	flags.String("admin-url", "", "admin API base URL")
	flags.StringSlice("paths", nil, "path filters for discovery (default /*)")
	flags.Int("concurrency", 3, "concurrent content fetches")
	flags.String("fallback-user", "", "user attributed when no preview user is found")
	flags.Int("batch-size", 10, "entries per submission batch (max 10)")
	flags.Bool("dry-run", false, "extract and classify without submitting")
	flags.Bool("verify", false, "read back recent media-log entries after delivery")
	flags.String("failure-file", "", "file collecting batches that could not be delivered")

	return cmd
}

func runBackfillCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := buildAndRun(ctx, cfg, logger)
	if err != nil {
		logger.Error("backfill aborted", zap.Error(err))
		return err
	}

	fmt.Printf("discovered %d resources, scanned %d pages, found %d references: %d sent, %d failed, %d page errors\n",
		summary.Discovered, summary.Pages, summary.Found, summary.Sent, summary.Failed, summary.Errors)
	return nil
}

func buildAndRun(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	client := site.NewClient(site.Config{
		AdminURL:     cfg.Admin.URL,
		Token:        cfg.Auth.Token,
		Timeout:      cfg.AdminTimeout(),
		PollInterval: cfg.PollInterval(),
	}, logger)

	sc := mediaref.SiteContext{Org: cfg.Site.Org, Site: cfg.Site.Name, Ref: cfg.Site.Ref}
	engine := delivery.NewEngine(client, sc, delivery.Config{
		FailurePath: cfg.Delivery.FailureFile,
		DryRun:      cfg.Delivery.DryRun,
	}, logger)

	return pipeline.New(cfg, client, engine, logger).Run(ctx)
}
