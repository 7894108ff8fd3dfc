// Package fingerprint derives stable identities for inbound announcements.
package fingerprint

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s\n]+`)
	multiSpace       = regexp.MustCompile(`[ \t]+`)
	anyWhitespace    = regexp.MustCompile(`\s+`)
	multiNewline     = regexp.MustCompile(`\n{3,}`)
	bulletPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`^[-–—]\s+`),
		regexp.MustCompile(`^[*]\s+`),
		regexp.MustCompile(`^[•·∙◦▪▫]\s+`),
		regexp.MustCompile(`^\d+\.\s+`),
		regexp.MustCompile(`^\d+\)\s+`),
	}
	trackingParams = map[string]bool{
		"utm_source": true, "utm_medium": true, "utm_campaign": true,
		"utm_term": true, "utm_content": true, "fbclid": true, "gclid": true,
		"ref": true,
	}
)

// BeautifyText normalizes raw announcement text: line breaks, in-line
// whitespace, bullet symbols, and duplicate URLs. It never fails; malformed
// input degrades to best-effort cleanup.
func BeautifyText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			normalized = append(normalized, "")
			continue
		}
		line = multiSpace.ReplaceAllString(line, " ")
		for _, pattern := range bulletPatterns {
			if pattern.MatchString(line) {
				line = pattern.ReplaceAllString(line, "• ")
				break
			}
		}
		normalized = append(normalized, line)
	}
	text = strings.Join(normalized, "\n")

	// Drop repeated URLs, keeping the first occurrence.
	seen := map[string]bool{}
	text = urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		if seen[u] {
			return ""
		}
		seen[u] = true
		return u
	})

	text = anyWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// normalizeForDigest prepares text for fingerprinting: case-fold, strip
// emoji and other symbols, strip URL tracking parameters, collapse all
// whitespace. Two reposts differing only in formatting must collapse to the
// same normalized form.
func normalizeForDigest(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllStringFunc(text, stripTrackingParams)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsSymbol(r) || unicode.Is(unicode.So, r):
			// emoji and pictographs are volatile decoration
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// stripTrackingParams removes per-share query parameters so that the same
// link shared through different campaigns still collides.
func stripTrackingParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for key := range q {
		if trackingParams[strings.ToLower(key)] {
			q.Del(key)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
