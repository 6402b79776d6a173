// Package delivery partitions media references into batches and submits
// them to the media-log endpoint under the service's rate constraints,
// with bounded retry on throttling and durable capture of batches that
// exhaust their attempts.
package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cloudadoption/media-log-ingestor/internal/mediaref"
	"github.com/cloudadoption/media-log-ingestor/internal/site"
)

// Delivery tuning. The inter-request pause keeps the aggregate request
// rate at or below the service's documented 10 req/s ceiling; the settling
// pause lets concurrent content-fetch traffic clear the same budget before
// the first batch goes out.
const (
	MaxBatchSize        = 10
	defaultMaxRetries   = 3
	defaultPause        = 100 * time.Millisecond
	defaultSettle       = time.Second
	defaultBackoffBase  = time.Second
	defaultVerifyWindow = 15 * time.Minute
	defaultVerifyLimit  = 100
)

// LogEntry is the wire form of one media reference.
type LogEntry struct {
	Path       string `json:"path"`
	SourcePath string `json:"sourcePath,omitempty"`
	Alt        string `json:"alt,omitempty"`
	Action     string `json:"action"`
}

// Partition splits records into ordered batches of at most size entries.
// The size is clamped to [1, MaxBatchSize] regardless of configuration.
func Partition(refs []mediaref.MediaReference, size int) [][]mediaref.MediaReference {
	if size < 1 {
		size = 1
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	var batches [][]mediaref.MediaReference
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		batches = append(batches, refs[start:end])
	}
	return batches
}

// Config holds engine construction knobs. Zero durations take defaults;
// a negative Settle disables the settling pause. Tests shrink them.
type Config struct {
	FailurePath string
	DryRun      bool
	MaxRetries  int
	Pause       time.Duration
	Settle      time.Duration
	BackoffBase time.Duration
}

// Engine delivers batches strictly sequentially; concurrent delivery
// would break both ordering and the rate-limit contract.
type Engine struct {
	client      *site.Client
	sc          mediaref.SiteContext
	limiter     *rate.Limiter
	failurePath string
	dryRun      bool
	maxRetries  int
	settle      time.Duration
	backoffBase time.Duration
	logger      *zap.Logger
}

// Result summarizes a delivery run.
type Result struct {
	Sent   int
	Failed int
}

// NewEngine constructs an Engine.
func NewEngine(client *site.Client, sc mediaref.SiteContext, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	if cfg.Settle == 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	return &Engine{
		client:      client,
		sc:          sc,
		limiter:     rate.NewLimiter(rate.Every(cfg.Pause), 1),
		failurePath: cfg.FailurePath,
		dryRun:      cfg.DryRun,
		maxRetries:  cfg.MaxRetries,
		settle:      cfg.Settle,
		backoffBase: cfg.BackoffBase,
		logger:      logger,
	}
}

// Deliver submits every batch in order. A batch that exhausts its retries
// or hits a non-retryable response is appended to the failure file and
// never blocks the batches after it.
func (e *Engine) Deliver(ctx context.Context, batches [][]mediaref.MediaReference) (Result, error) {
	var res Result
	if len(batches) == 0 {
		return res, nil
	}

	if !e.dryRun && e.settle > 0 {
		if err := sleep(ctx, e.settle); err != nil {
			return res, err
		}
	}

	for i, batch := range batches {
		entries := wireEntries(batch)

		if e.dryRun {
			e.logger.Info("dry run: batch not submitted",
				zap.Int("batch", i+1),
				zap.Int("entries", len(entries)),
			)
			res.Sent += len(entries)
			continue
		}

		if err := e.sendBatch(ctx, i, entries); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed += len(entries)
			e.logger.Error("batch delivery failed",
				zap.Int("batch", i+1),
				zap.Int("entries", len(entries)),
				zap.Error(err),
			)
			rec := FailureRecord{Timestamp: time.Now().UTC(), Error: err.Error(), Entries: entries}
			if ferr := AppendFailure(e.failurePath, rec); ferr != nil {
				e.logger.Error("failure capture write failed", zap.Error(ferr))
			}
			continue
		}

		res.Sent += len(entries)
		e.logger.Info("batch delivered",
			zap.Int("batch", i+1),
			zap.Int("of", len(batches)),
			zap.Int("entries", len(entries)),
		)
	}
	return res, nil
}

// sendBatch runs the per-batch state machine: submit, back off on a
// throttling response while attempts remain, fail terminally otherwise.
func (e *Engine) sendBatch(ctx context.Context, index int, entries []LogEntry) error {
	target := e.client.MediaURL(e.sc)
	body := map[string]any{"entries": entries}

	for attempt := 0; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pace submission: %w", err)
		}

		status, snippet, err := e.client.PostJSON(ctx, target, body)
		if err != nil {
			return fmt.Errorf("submit batch %d: %w", index+1, err)
		}
		if status >= 200 && status < 300 {
			return nil
		}
		if !throttled(status) {
			return fmt.Errorf("submit batch %d: status %d: %s", index+1, status, snippet)
		}
		if attempt >= e.maxRetries {
			return fmt.Errorf("submit batch %d: rate limited after %d attempts", index+1, attempt+1)
		}

		wait := e.backoffBase << attempt
		e.logger.Warn("rate limited; backing off",
			zap.Int("batch", index+1),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// throttled reports whether the status code signals service throttling.
func throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// Verify reads back the media log over a short recency window and returns
// the number of entries the service reports.
func (e *Engine) Verify(ctx context.Context) (int, error) {
	target := fmt.Sprintf("%s?since=%s&limit=%d",
		e.client.MediaURL(e.sc),
		time.Now().Add(-defaultVerifyWindow).UTC().Format(time.RFC3339),
		defaultVerifyLimit,
	)
	var page struct {
		Entries []LogEntry `json:"entries"`
	}
	status, err := e.client.GetJSON(ctx, target, &page)
	if err != nil {
		return 0, fmt.Errorf("verify read: %w", err)
	}
	if status < 200 || status >= 300 {
		return 0, fmt.Errorf("verify read: unexpected status %d", status)
	}
	return len(page.Entries), nil
}

func wireEntries(batch []mediaref.MediaReference) []LogEntry {
	entries := make([]LogEntry, len(batch))
	for i, ref := range batch {
		entries[i] = LogEntry{
			Path:       ref.Path,
			SourcePath: ref.SourcePath,
			Alt:        ref.AltText,
			Action:     "add",
		}
	}
	return entries
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
