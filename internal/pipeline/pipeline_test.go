package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudadoption/media-log-ingestor/internal/config"
	"github.com/cloudadoption/media-log-ingestor/internal/delivery"
	"github.com/cloudadoption/media-log-ingestor/internal/site"
)

func testToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "backfill@acme.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

// fakeSite serves the whole admin surface plus markdown content for one
// scripted backfill scenario.
type fakeSite struct {
	t         *testing.T
	resources []map[string]any
	markdown  map[string]string
	logPages  []map[string]any

	mu        sync.Mutex
	submitted [][]delivery.LogEntry
}

func (f *fakeSite) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /status/acme/website/main/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test handler
			"job":   map[string]any{"name": "job-1", "state": "created"},
			"links": map[string]any{"self": "http://" + r.Host + "/job/job-1"},
		})
	})
	mux.HandleFunc("GET /job/job-1", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "job-1", "state": "stopped"}) //nolint:errcheck // test handler
	})
	mux.HandleFunc("GET /job/job-1/details", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test handler
			"data": map[string]any{"resources": f.resources},
		})
	})
	mux.HandleFunc("GET /log/acme/website/main", func(w http.ResponseWriter, _ *http.Request) {
		page := map[string]any{"entries": []map[string]any{}}
		if len(f.logPages) > 0 {
			page = f.logPages[0]
		}
		json.NewEncoder(w).Encode(page) //nolint:errcheck // test handler
	})
	mux.HandleFunc("POST /media/acme/website/main", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Entries []delivery.LogEntry `json:"entries"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.submitted = append(f.submitted, body.Entries)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		md, ok := f.markdown[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(md)) //nolint:errcheck // test handler
	})

	return httptest.NewServer(mux)
}

func (f *fakeSite) entries() []delivery.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []delivery.LogEntry
	for _, batch := range f.submitted {
		all = append(all, batch...)
	}
	return all
}

func testConfig(token string) config.Config {
	return config.Config{
		Site:     config.SiteConfig{Org: "acme", Name: "website", Ref: "main"},
		Auth:     config.AuthConfig{Token: token},
		Pipeline: config.PipelineConfig{Paths: []string{"/*"}, Concurrency: 3, FallbackUser: "importer@acme.com"},
		Delivery: config.DeliveryConfig{BatchSize: 10},
	}
}

func buildPipeline(t *testing.T, f *fakeSite, cfg config.Config, serverURL string) *Pipeline {
	t.Helper()
	client := site.NewClient(site.Config{
		AdminURL:     serverURL,
		ContentURL:   serverURL,
		Token:        cfg.Auth.Token,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())
	engine := delivery.NewEngine(client, toSiteContext(cfg), delivery.Config{
		FailurePath: filepath.Join(t.TempDir(), "failures.json"),
		DryRun:      cfg.Delivery.DryRun,
		Pause:       time.Millisecond,
		Settle:      -1,
		BackoffBase: time.Millisecond,
	}, zap.NewNop())
	return New(cfg, client, engine, zap.NewNop())
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	f := &fakeSite{
		t: t,
		resources: []map[string]any{
			{"path": "/products/x"},
			{"path": "/about"},
			{"path": "/broken"},
			{"path": "/media_77aa88bb.png"},
		},
		markdown: map[string]string{
			"/products/x.md": "![Product shot](/img/p1_abc123.png \"Main\")\n[spec sheet](/docs/spec.pdf)\n",
			"/about.md":      "![Team](/img/p1_abc123.png)\n",
		},
		logPages: []map[string]any{{
			"entries": []map[string]any{
				{"route": "preview", "path": "/products/x", "user": "author@acme.com"},
			},
		}},
	}
	server := f.server()
	defer server.Close()

	cfg := testConfig(testToken(t))
	summary, err := buildPipeline(t, f, cfg, server.URL).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, summary.Discovered)
	require.Equal(t, 2, summary.Pages)
	require.Equal(t, 1, summary.Errors) // /broken has no markdown
	require.Equal(t, 4, summary.Found)  // standalone + 2 from /products/x + 1 from /about
	require.Equal(t, 4, summary.Sent)
	require.Zero(t, summary.Failed)

	entries := f.entries()
	require.Len(t, entries, 4)

	// Standalone asset first, no source path.
	require.Equal(t, "/media_77aa88bb.png", entries[0].Path)
	require.Empty(t, entries[0].SourcePath)

	// Pages follow in stable sorted order: /about before /products/x.
	require.Equal(t, "/img/p1_abc123.png", entries[1].Path)
	require.Equal(t, "https://main--website--acme.aem.page/about", entries[1].SourcePath)
	require.Equal(t, "Team", entries[1].Alt)

	require.Equal(t, "/img/p1_abc123.png", entries[2].Path)
	require.Equal(t, "https://main--website--acme.aem.page/products/x", entries[2].SourcePath)
	require.Equal(t, "Main", entries[2].Alt)

	require.Equal(t, "/docs/spec.pdf", entries[3].Path)
	require.Empty(t, entries[3].Alt)

	for _, e := range entries {
		require.Equal(t, "add", e.Action)
	}
}

func TestRunInvalidTokenIsFatal(t *testing.T) {
	t.Parallel()

	f := &fakeSite{t: t}
	server := f.server()
	defer server.Close()

	cfg := testConfig("garbage")
	_, err := buildPipeline(t, f, cfg, server.URL).Run(context.Background())
	require.Error(t, err)
	require.Empty(t, f.entries())
}

func TestRunDiscoveryFailureIsFatal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := &fakeSite{t: t}
	cfg := testConfig(testToken(t))
	_, err := buildPipeline(t, f, cfg, server.URL).Run(context.Background())
	require.Error(t, err)
}

func TestRunDryRunSkipsSubmission(t *testing.T) {
	t.Parallel()

	f := &fakeSite{
		t:         t,
		resources: []map[string]any{{"path": "/media_11aa22bb.png"}},
	}
	server := f.server()
	defer server.Close()

	cfg := testConfig(testToken(t))
	cfg.Delivery.DryRun = true
	summary, err := buildPipeline(t, f, cfg, server.URL).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Sent)
	require.Empty(t, f.entries())
}
