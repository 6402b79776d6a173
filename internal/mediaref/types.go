// Package mediaref defines the media-usage records extracted from site
// content and the pure transforms applied to them: markdown extraction,
// hash-based deduplication, and user attribution.
package mediaref

import (
	"fmt"
	"strings"
)

// Operation classifies a reference within a single run.
type Operation string

// Operation values assigned by Deduplicate.
const (
	// OperationAdd marks the first record in traversal order bearing a
	// given content hash (or any record with no extractable hash).
	OperationAdd Operation = "add"
	// OperationReuse marks every subsequent record bearing an
	// already-seen content hash.
	OperationReuse Operation = "reuse"
)

// SiteContext identifies the org/site/ref triple a backfill run operates on.
type SiteContext struct {
	Org  string
	Site string
	Ref  string
}

// PreviewHost returns the preview hostname for the site context.
func (s SiteContext) PreviewHost() string {
	return fmt.Sprintf("%s--%s--%s.aem.page", s.Ref, s.Site, s.Org)
}

// PageURL builds the fully qualified preview URL for a site-relative path.
func (s SiteContext) PageURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://" + s.PreviewHost() + path
}

// MediaReference is one media asset observed at one usage site.
type MediaReference struct {
	// Path is the asset URL or site-relative path as written in the source.
	Path string `json:"path"`
	// SourcePath is the fully qualified URL of the page that referenced
	// the asset; empty for assets discovered as standalone files.
	SourcePath string `json:"sourcePath,omitempty"`
	// AltText carries the resolved alt text, title taking precedence over
	// bracket text; empty when neither is present.
	AltText string `json:"alt,omitempty"`
	// ContentType is the MIME type derived from the path extension, when
	// determinable.
	ContentType string `json:"contentType,omitempty"`
	// Width and Height are parsed from a #width=N&height=M URL fragment.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Operation is assigned once per run by Deduplicate.
	Operation Operation `json:"operation,omitempty"`
	// User is the attributed user resolved by Enrich, if any.
	User string `json:"user,omitempty"`
}

// NewStandaloneReference synthesizes a record for an asset discovered
// directly by the site crawl rather than referenced from a page. It never
// passes through the extractor and carries no source path.
func NewStandaloneReference(path string) MediaReference {
	ref := MediaReference{
		Path:        path,
		ContentType: ContentTypeOf(path),
	}
	ref.Width, ref.Height = DimensionsOf(path)
	return ref
}
