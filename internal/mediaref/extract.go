package mediaref

import (
	"regexp"
	"strings"
)

// Markdown constructs recognized by the extractor. Regex-as-parser is a
// deliberate choice for this constrained subset; unmatched or malformed
// constructs are silently ignored.
var (
	// [id]: url "optional title", anchored at line start.
	refDefRe = regexp.MustCompile(`(?m)^\[([^\]]+)\]:\s*(\S+)(?:\s+"([^"]*)")?\s*$`)
	// ![alt](url "optional title")
	inlineImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(\s*([^)\s]*)(?:\s+"([^"]*)")?\s*\)`)
	// ![alt][id]
	refImageRe = regexp.MustCompile(`!\[([^\]]*)\]\[([^\]]+)\]`)
	// [text](url "optional title"); the image prefix '!' is excluded by
	// checking the byte before each match, not by the pattern itself, so
	// adjacent links stay matchable.
	plainLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(\s*([^)\s]*)(?:\s+"([^"]*)")?\s*\)`)
)

// referenceDefinition maps a reference id to its resolved url and title.
type referenceDefinition struct {
	url   string
	title string
}

// Extract scans markdown text for media references and returns them in
// document order. The same resolved URL introduced through multiple
// constructs is emitted once, keeping the first resolution's alt text.
// sourcePagePath is the site-relative path of the page being scanned; the
// emitted records carry its fully qualified preview URL.
func Extract(markdown, sourcePagePath string, site SiteContext) []MediaReference {
	defs := referenceDefinitions(markdown)
	sourceURL := site.PageURL(sourcePagePath)

	seen := make(map[string]struct{})
	var refs []MediaReference

	emit := func(rawURL, alt string) {
		rawURL = strings.TrimSpace(rawURL)
		if rawURL == "" {
			return
		}
		if _, dup := seen[rawURL]; dup {
			return
		}
		seen[rawURL] = struct{}{}
		ref := MediaReference{
			Path:        rawURL,
			SourcePath:  sourceURL,
			AltText:     strings.TrimSpace(alt),
			ContentType: ContentTypeOf(rawURL),
		}
		ref.Width, ref.Height = DimensionsOf(rawURL)
		refs = append(refs, ref)
	}

	// Inline images.
	for _, m := range inlineImageRe.FindAllStringSubmatch(markdown, -1) {
		emit(m[2], firstNonBlank(m[3], m[1]))
	}

	// Reference-style images, resolved against the definition index.
	// Unresolved ids are dropped.
	for _, m := range refImageRe.FindAllStringSubmatch(markdown, -1) {
		def, ok := defs[strings.ToLower(m[2])]
		if !ok {
			continue
		}
		emit(def.url, firstNonBlank(def.title, m[1]))
	}

	// Plain links pointing at non-image media (video or document
	// families). Images are already captured above; everything else is
	// ignored. Link text is not carried as alt.
	for _, m := range plainLinkRe.FindAllStringSubmatchIndex(markdown, -1) {
		if m[0] > 0 && markdown[m[0]-1] == '!' {
			continue
		}
		switch linkURL := markdown[m[4]:m[5]]; Classify(linkURL) {
		case ClassVideo, ClassDocument:
			emit(linkURL, "")
		}
	}

	return refs
}

// referenceDefinitions builds the per-document id index consulted by
// reference-style image resolution. Ids compare case-insensitively.
func referenceDefinitions(markdown string) map[string]referenceDefinition {
	defs := make(map[string]referenceDefinition)
	for _, m := range refDefRe.FindAllStringSubmatch(markdown, -1) {
		id := strings.ToLower(strings.TrimSpace(m[1]))
		if id == "" || m[2] == "" {
			continue
		}
		if _, dup := defs[id]; dup {
			continue
		}
		defs[id] = referenceDefinition{url: m[2], title: m[3]}
	}
	return defs
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
