package mediaref

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// MediaClass is the coarse media family of an asset URL.
type MediaClass int

// Media classes recognized by the extractor.
const (
	ClassNone MediaClass = iota
	ClassImage
	ClassVideo
	ClassDocument
)

var (
	imageExts    = []string{"jpg", "jpeg", "png", "gif", "webp", "avif", "svg", "ico"}
	videoExts    = []string{"mp4", "mov", "webm", "avi", "m4v", "mkv"}
	documentExts = []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt"}
)

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"m4v":  "video/x-m4v",
	"mkv":  "video/x-matroska",
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
}

// Classify reports the media family of a URL. Matching is a
// case-insensitive substring check against the lowercased URL, so a
// matching extension anywhere in the URL qualifies.
func Classify(rawURL string) MediaClass {
	lowered := strings.ToLower(rawURL)
	for _, ext := range imageExts {
		if strings.Contains(lowered, ext) {
			return ClassImage
		}
	}
	for _, ext := range videoExts {
		if strings.Contains(lowered, ext) {
			return ClassVideo
		}
	}
	for _, ext := range documentExts {
		if strings.Contains(lowered, ext) {
			return ClassDocument
		}
	}
	return ClassNone
}

// ContentTypeOf derives a MIME type from the URL's path extension.
// It returns the empty string when the extension is not a known media type.
func ContentTypeOf(rawURL string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(urlPath(rawURL)), "."))
	return mimeTypes[ext]
}

// DimensionsOf parses optional width/height hints from a URL fragment of
// the form #width=N&height=M. Both values are zero when absent or invalid.
func DimensionsOf(rawURL string) (width, height int) {
	_, frag, ok := strings.Cut(rawURL, "#")
	if !ok {
		return 0, 0
	}
	values, err := url.ParseQuery(frag)
	if err != nil {
		return 0, 0
	}
	width, _ = strconv.Atoi(values.Get("width"))
	height, _ = strconv.Atoi(values.Get("height"))
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return width, height
}

// urlPath strips query and fragment so extension checks see only the path.
func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
