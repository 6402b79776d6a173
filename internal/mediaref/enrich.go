package mediaref

import "regexp"

// previewPathRe extracts the site-relative path from a preview URL.
// Both the current and the legacy preview host suffixes are accepted.
var previewPathRe = regexp.MustCompile(`^https://[^/]+\.(?:aem|hlx)\.page(/[^?#]*)`)

// SourcePagePath derives the site-relative page path from a fully
// qualified source URL. It returns the empty string when the URL does not
// match the expected preview host shape.
func SourcePagePath(sourceURL string) string {
	m := previewPathRe.FindStringSubmatch(sourceURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Enrich resolves the attributed user for every record. Records with a
// source path are looked up in the path->user index by their site-relative
// page path; on a miss, or for standalone records, the fallback user is
// assigned when configured. A source path that does not match the expected
// URL shape is treated as a lookup miss.
func Enrich(refs []MediaReference, index map[string]string, fallbackUser string) []MediaReference {
	out := make([]MediaReference, len(refs))
	for i, ref := range refs {
		if ref.SourcePath != "" {
			if path := SourcePagePath(ref.SourcePath); path != "" {
				if user, ok := index[path]; ok {
					ref.User = user
					out[i] = ref
					continue
				}
			}
		}
		if fallbackUser != "" {
			ref.User = fallbackUser
		}
		out[i] = ref
	}
	return out
}
