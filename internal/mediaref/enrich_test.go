package mediaref

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcePagePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://main--website--acme.aem.page/products/x", "/products/x"},
		{"https://main--website--acme.hlx.page/products/x", "/products/x"},
		{"https://main--website--acme.aem.page/a/b?q=1", "/a/b"},
		{"https://example.com/products/x", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SourcePagePath(tc.url), "SourcePagePath(%q)", tc.url)
	}
}

func TestEnrichResolvesFromIndex(t *testing.T) {
	t.Parallel()

	index := map[string]string{"/products/x": "author@acme.com"}
	refs := []MediaReference{
		{Path: "/img/a.png", SourcePath: "https://main--website--acme.aem.page/products/x"},
		{Path: "/img/b.png", SourcePath: "https://main--website--acme.aem.page/unknown"},
	}

	out := Enrich(refs, index, "fallback@acme.com")
	require.Equal(t, "author@acme.com", out[0].User)
	require.Equal(t, "fallback@acme.com", out[1].User)
}

func TestEnrichWithoutFallbackLeavesUnattributed(t *testing.T) {
	t.Parallel()

	refs := []MediaReference{
		{Path: "/img/a.png", SourcePath: "https://main--website--acme.aem.page/unknown"},
		{Path: "/img/b.png"},
	}

	out := Enrich(refs, map[string]string{}, "")
	require.Empty(t, out[0].User)
	require.Empty(t, out[1].User)
}

func TestEnrichStandaloneGetsFallback(t *testing.T) {
	t.Parallel()

	refs := []MediaReference{{Path: "/media_abc123.png"}}
	out := Enrich(refs, map[string]string{"/media_abc123.png": "never@acme.com"}, "fallback@acme.com")
	require.Equal(t, "fallback@acme.com", out[0].User, "standalone records skip the index entirely")
}

func TestEnrichMalformedSourcePath(t *testing.T) {
	t.Parallel()

	refs := []MediaReference{
		{Path: "/img/a.png", SourcePath: "https://unrelated-host.example.com/products/x"},
		{Path: "/img/b.png", SourcePath: ":::"},
	}

	out := Enrich(refs, map[string]string{"/products/x": "author@acme.com"}, "fallback@acme.com")
	require.Equal(t, "fallback@acme.com", out[0].User)
	require.Equal(t, "fallback@acme.com", out[1].User)
}

func TestEnrichPreservesOtherFields(t *testing.T) {
	t.Parallel()

	refs := []MediaReference{{
		Path:      "/img/a_abc123.png",
		AltText:   "Alt",
		Operation: OperationAdd,
	}}
	out := Enrich(refs, nil, "fallback@acme.com")
	require.Equal(t, "Alt", out[0].AltText)
	require.Equal(t, OperationAdd, out[0].Operation)
}
