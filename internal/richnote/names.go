package richnote

import (
	"regexp"
	"strings"
)

var (
	uriScheme     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\d+\-.]*:`)
	trailingExt   = regexp.MustCompile(`\.[^.]+$`)
	pathSeparator = strings.NewReplacer("/", "-", `\`, "-")
)

// EnsureHTTPURL prefixes https:// to a URL that carries no scheme.
func EnsureHTTPURL(url string) string {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return ""
	}
	if uriScheme.MatchString(trimmed) {
		return trimmed
	}
	return "https://" + trimmed
}

// RenameKeepingExtension returns desired as a file name, carrying over the
// extension of original when desired has none. Path separators in desired
// are replaced so the result is always a single path segment.
func RenameKeepingExtension(original, desired string) string {
	cleaned := pathSeparator.Replace(strings.TrimSpace(desired))
	if cleaned == "" {
		return original
	}
	ext := ""
	if i := strings.LastIndex(original, "."); i >= 0 {
		ext = original[i:]
	}
	if ext == "" || trailingExt.MatchString(cleaned) {
		return cleaned
	}
	return cleaned + ext
}
