// Package pipeline orchestrates a backfill run: discovery, content
// fetch and extraction, deduplication, user attribution, and delivery.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudadoption/media-log-ingestor/internal/auth"
	"github.com/cloudadoption/media-log-ingestor/internal/config"
	"github.com/cloudadoption/media-log-ingestor/internal/delivery"
	"github.com/cloudadoption/media-log-ingestor/internal/mediaref"
	"github.com/cloudadoption/media-log-ingestor/internal/site"
	"github.com/cloudadoption/media-log-ingestor/internal/userindex"
)

// Summary reports run outcomes; it is produced for every run that gets
// past the fatal discovery phase, no matter how many partial failures
// occurred along the way.
type Summary struct {
	// Discovered counts resources returned by the discovery job.
	Discovered int
	// Pages counts pages whose content was fetched and scanned.
	Pages int
	// Found counts media references entering delivery.
	Found int
	// Sent and Failed count delivered vs. terminally failed entries.
	Sent   int
	Failed int
	// Errors counts isolated per-page fetch/extraction failures.
	Errors int
}

// Pipeline wires the run's collaborators together.
type Pipeline struct {
	cfg    config.Config
	client *site.Client
	engine *delivery.Engine
	logger *zap.Logger
}

// New constructs a Pipeline from already-built collaborators.
func New(cfg config.Config, client *site.Client, engine *delivery.Engine, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, client: client, engine: engine, logger: logger}
}

// Run executes one backfill. Only fatal-class failures return an error:
// a missing or structurally invalid token, and discovery-phase failures.
// Everything after discovery degrades per resource or per batch.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	logger := p.logger.With(zap.String("run_id", uuid.NewString()))
	var summary Summary

	claims, err := auth.Validate(p.cfg.Auth.Token)
	if err != nil {
		return summary, err
	}
	logger.Info("backfill starting",
		zap.String("org", p.cfg.Site.Org),
		zap.String("site", p.cfg.Site.Name),
		zap.String("ref", p.cfg.Site.Ref),
		zap.String("token_subject", claims.Subject),
	)
	now := time.Now()
	switch {
	case claims.Expired(now):
		logger.Warn("admin token is expired; submissions will likely be rejected",
			zap.Time("expiry", claims.Expiry))
	case claims.ExpiresSoon(now):
		logger.Warn("admin token expires soon", zap.Time("expiry", claims.Expiry))
	}

	sc := toSiteContext(p.cfg)

	resources, err := p.discover(ctx, sc, logger)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(resources)

	// Standalone media files are synthesized directly; everything else is
	// treated as a page whose markdown source gets scanned.
	var pages []string
	var refs []mediaref.MediaReference
	for _, res := range resources {
		if mediaref.ContentTypeOf(res.Path) != "" {
			refs = append(refs, mediaref.NewStandaloneReference(res.Path))
		} else {
			pages = append(pages, res.Path)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	// Pages are sorted into a stable order before fetch so the dedup
	// traversal order is reproducible across runs regardless of fetch
	// completion order.
	sort.Strings(pages)

	extracted, pagesScanned, fetchErrors := p.extractPages(ctx, sc, pages, logger)
	summary.Pages = pagesScanned
	summary.Errors = fetchErrors
	refs = append(refs, extracted...)

	refs = mediaref.Deduplicate(refs)
	index := userindex.Build(ctx, p.client, sc, logger)
	refs = mediaref.Enrich(refs, index, p.cfg.Pipeline.FallbackUser)
	summary.Found = len(refs)

	firstSeen := 0
	for _, ref := range refs {
		if ref.Operation == mediaref.OperationAdd {
			firstSeen++
		}
	}
	logger.Info("delivery starting",
		zap.Int("entries", len(refs)),
		zap.Int("first_seen", firstSeen),
		zap.Int("reused", len(refs)-firstSeen),
		zap.Int("batch_size", p.cfg.Delivery.BatchSize),
		zap.Bool("dry_run", p.cfg.Delivery.DryRun),
	)
	result, err := p.engine.Deliver(ctx, delivery.Partition(refs, p.cfg.Delivery.BatchSize))
	if err != nil {
		return summary, err
	}
	summary.Sent = result.Sent
	summary.Failed = result.Failed

	if p.cfg.Delivery.Verify && !p.cfg.Delivery.DryRun {
		if count, verr := p.engine.Verify(ctx); verr != nil {
			logger.Warn("verification read failed", zap.Error(verr))
		} else {
			logger.Info("verification read", zap.Int("recent_entries", count))
		}
	}

	logger.Info("backfill summary",
		zap.Int("discovered", summary.Discovered),
		zap.Int("pages", summary.Pages),
		zap.Int("found", summary.Found),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// toSiteContext maps the configured site onto the domain context.
func toSiteContext(cfg config.Config) mediaref.SiteContext {
	return mediaref.SiteContext{Org: cfg.Site.Org, Site: cfg.Site.Name, Ref: cfg.Site.Ref}
}

// discover runs the bulk status job to completion and returns its
// resource list. Any failure here aborts the run.
func (p *Pipeline) discover(ctx context.Context, sc mediaref.SiteContext, logger *zap.Logger) ([]site.Resource, error) {
	job, err := p.client.StartBulkStatus(ctx, sc, p.cfg.Pipeline.Paths)
	if err != nil {
		return nil, err
	}
	logger.Info("discovery job created", zap.String("job", job.Name))

	job, err = p.client.PollJob(ctx, job)
	if err != nil {
		return nil, err
	}
	if job.State == "failed" {
		return nil, fmt.Errorf("discovery job %s failed", job.Name)
	}

	resources, err := p.client.JobResults(ctx, job)
	if err != nil {
		return nil, err
	}
	logger.Info("discovery finished", zap.Int("resources", len(resources)))
	return resources, nil
}

// extractPages fetches and scans page markdown through a bounded worker
// pool. A single page's failure is isolated: it increments the error
// count and never aborts the run. Results keep per-page document order
// and overall page order irrespective of completion order.
func (p *Pipeline) extractPages(
	ctx context.Context,
	sc mediaref.SiteContext,
	pages []string,
	logger *zap.Logger,
) ([]mediaref.MediaReference, int, int) {
	perPage := make([][]mediaref.MediaReference, len(pages))
	var mu sync.Mutex
	scanned, failed := 0, 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			markdown, err := p.client.FetchMarkdown(gctx, sc, page)
			if err != nil {
				logger.Warn("page fetch failed", zap.String("path", page), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			refs := mediaref.Extract(markdown, page, sc)
			mu.Lock()
			perPage[i] = refs
			scanned++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers swallow their own errors

	var out []mediaref.MediaReference
	for _, refs := range perPage {
		out = append(out, refs...)
	}
	return out, scanned, failed
}
