// Package token turns texture labels and file names into normalized token
// sequences for the channel classifier.
package token

import (
	"regexp"
	"strings"
	"unicode"
)

// Tokens is an ordered sequence of lowercase tokens derived from one label.
type Tokens []string

func (t Tokens) String() string {
	return strings.Join(t, " ")
}

// imageExts lists the extensions stripped before splitting.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".tga": true, ".bmp": true, ".exr": true, ".hdr": true, ".webp": true,
	".dds": true, ".psd": true, ".gif": true,
}

var (
	// host editors append ".001", ".002" to duplicated names
	duplicateSuffix = regexp.MustCompile(`\.\d{3}$`)
	// 2k, 4K, 4096, 1, 2048x2048
	resolutionMarker = regexp.MustCompile(`^(\d+k|\d+|\d+x\d+)$`)
)

// Normalize splits a label or file name into lowercase tokens. It never
// fails; an empty or meaningless input yields an empty sequence.
func Normalize(s string) Tokens {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, "/"))
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	for {
		trimmed := stripExtension(duplicateSuffix.ReplaceAllString(s, ""))
		if trimmed == s {
			break
		}
		s = trimmed
	}

	var out Tokens
	for _, field := range strings.FieldsFunc(s, isSeparator) {
		for _, part := range splitCamel(field) {
			if part != "" {
				out = append(out, strings.ToLower(part))
			}
		}
	}

	for len(out) > 0 && resolutionMarker.MatchString(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func stripExtension(s string) string {
	i := strings.LastIndex(s, ".")
	if i <= 0 {
		return s
	}
	if imageExts[strings.ToLower(s[i:])] {
		return s[:i]
	}
	return s
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}

// splitCamel breaks "BaseColor" into "Base", "Color" and "AOMap" into
// "AO", "Map". Digit boundaries are left alone so "4K" survives intact.
func splitCamel(s string) []string {
	runes := []rune(s)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		lowerToUpper := unicode.IsLower(prev) && unicode.IsUpper(cur)
		acronymEnd := unicode.IsUpper(prev) && unicode.IsUpper(cur) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if lowerToUpper || acronymEnd {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}
