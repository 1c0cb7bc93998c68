package capture

import (
	"encoding/base64"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// localRef matches file:// locators embedded in markup attributes or CSS
// url() values.
var localRef = regexp.MustCompile(`file://[^"'()\s>]+`)

// inlineLocalResources rewrites every readable file:// reference in text
// to an inline base64 data URI. Unreadable or malformed references are
// left unchanged rather than failing the capture.
func inlineLocalResources(text string) string {
	if !strings.Contains(text, "file://") {
		return text
	}
	return localRef.ReplaceAllStringFunc(text, func(ref string) string {
		path := strings.TrimPrefix(ref, "file://")
		if unescaped, err := url.PathUnescape(path); err == nil {
			path = unescaped
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return ref
		}

		mt := mime.TypeByExtension(filepath.Ext(path))
		if mt == "" {
			mt = "application/octet-stream"
		}
		return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
	})
}
