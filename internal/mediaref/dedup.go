package mediaref

import (
	"regexp"
	"strings"
)

// contentHashRe matches the asset naming pattern ..._<hex-hash>.<ext>.
var contentHashRe = regexp.MustCompile(`_([0-9a-f]{4,})\.[a-z0-9]+`)

// ContentHash extracts the content hash embedded in an asset path.
// It returns the empty string when the path carries no recognizable hash.
func ContentHash(path string) string {
	m := contentHashRe.FindStringSubmatch(strings.ToLower(path))
	if m == nil {
		return ""
	}
	return m[1]
}

// Deduplicate annotates every record with its operation, scoped to the
// whole run. The first record in traversal order bearing a given content
// hash is marked as an add, every subsequent one as a reuse. Records whose
// path carries no extractable hash cannot be deduplicated and are always
// marked as adds.
func Deduplicate(refs []MediaReference) []MediaReference {
	seen := make(map[string]struct{}, len(refs))
	out := make([]MediaReference, len(refs))
	for i, ref := range refs {
		hash := ContentHash(ref.Path)
		switch {
		case hash == "":
			ref.Operation = OperationAdd
		default:
			if _, dup := seen[hash]; dup {
				ref.Operation = OperationReuse
			} else {
				seen[hash] = struct{}{}
				ref.Operation = OperationAdd
			}
		}
		out[i] = ref
	}
	return out
}
