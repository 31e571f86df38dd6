package fetch

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// NormalizeURL cleans a caller-supplied URL before it is fetched.
//
// Surrounding whitespace and one pair of matching quotes are stripped, the
// result is percent-decoded (path rules, so '+' stays literal) and internal
// whitespace is re-escaped as %20. Callers send both raw and already-escaped
// URLs and both must resolve to a fetchable URL.
//
// Known ambiguity: an input that was escaped twice loses one level of escaping
// ("%2520" becomes "%20"), and an escaped reserved character such as "%2F"
// comes back as a literal "/". This is accepted; callers that need those bytes
// preserved must not double-escape.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	if s == "" {
		return ""
	}

	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}

	return escapeWhitespace(s)
}

func escapeWhitespace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if unicode.IsSpace(r) {
			b.WriteString("%20")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// knownSuffixes maps lower-case URL path extensions to the suffix used on disk.
var knownSuffixes = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".webp": ".webp",
	".gif":  ".gif",
	".bmp":  ".bmp",
	".mp3":  ".mp3",
	".wav":  ".wav",
	".m4a":  ".m4a",
	".aac":  ".aac",
	".ogg":  ".ogg",
	".opus": ".opus",
	".flac": ".flac",
}

// SuffixFor returns a file suffix derived from the extension of the URL's path,
// or fallback when the extension is missing or unrecognized. The URL is parsed
// as given, so pass the normalized form.
func SuffixFor(rawURL, fallback string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fallback
	}
	if s, ok := knownSuffixes[strings.ToLower(path.Ext(u.Path))]; ok {
		return s
	}
	return fallback
}
