// Package userindex folds the site's event log into a path->user index
// used to attribute extracted media references.
package userindex

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cloudadoption/media-log-ingestor/internal/mediaref"
	"github.com/cloudadoption/media-log-ingestor/internal/site"
)

const (
	// window is the trailing period of the event log consulted per run.
	window = 30 * 24 * time.Hour
	// pageSize is the requested event-log page size.
	pageSize = 1000
)

// event is one event-log record; only preview events with both fields
// populated contribute to the index.
type event struct {
	Route string `json:"route"`
	Path  string `json:"path"`
	User  string `json:"user"`
}

type logPage struct {
	Entries []event `json:"entries"`
	Links   struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Build reads the paginated event log and returns a path->user index.
// The feed is newest-first, so the first occurrence per path wins and
// captures the most recent preview user. Any transport or authorization
// failure ends pagination and keeps whatever partial index was
// accumulated; Build never fails the run.
func Build(ctx context.Context, client *site.Client, sc mediaref.SiteContext, logger *zap.Logger) map[string]string {
	index := make(map[string]string)
	since := time.Now().Add(-window)
	next := client.LogURL(sc, since, pageSize)

	for next != "" {
		var page logPage
		status, err := client.GetJSON(ctx, next, &page)
		if err != nil {
			logger.Warn("user index fetch failed; continuing with partial index",
				zap.Int("paths", len(index)),
				zap.Error(err),
			)
			break
		}
		if status == http.StatusForbidden {
			logger.Warn("no permission to read the site log; media entries will not carry preview users")
			break
		}
		if status < 200 || status >= 300 {
			logger.Warn("user index read ended early",
				zap.Int("status", status),
				zap.Int("paths", len(index)),
			)
			break
		}

		for _, ev := range page.Entries {
			if ev.Route != "preview" || ev.Path == "" || ev.User == "" {
				continue
			}
			if _, ok := index[ev.Path]; !ok {
				index[ev.Path] = ev.User
			}
		}
		next = page.Links.Next
	}

	return index
}
