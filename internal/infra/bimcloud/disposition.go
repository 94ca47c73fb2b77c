package bimcloud

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ParseDispositionParams splits a Content-Disposition style header into its key=value
// parameters. Keys are lower-cased; values have surrounding quotes removed. Parts without '='
// (such as the "attachment" disposition type) are skipped.
func ParseDispositionParams(header string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, seen := params[key]; !seen {
			params[key] = value
		}
	}
	return params
}

// FileNameFromDisposition returns the file name carried by a Content-Disposition header, or ""
// when none can be derived. The plain filename parameter wins over the RFC 5987 filename*
// form. Directory components are dropped so a server-supplied name can never escape the
// artifact directory.
func FileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	params := ParseDispositionParams(header)
	name := params["filename"]
	if name == "" {
		name = decodeExtValue(params["filename*"])
	}
	return sanitizeFileName(name)
}

// decodeExtValue decodes charset'lang'percent-encoded values.
func decodeExtValue(v string) string {
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		return ""
	}
	decoded, err := url.PathUnescape(parts[2])
	if err != nil {
		return ""
	}
	return decoded
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(filepath.Clean("/" + name))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}
