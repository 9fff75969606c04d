// Package language normalizes the language tags that appear in source
// config so they can be compared against detector output.
package language

import "strings"

func isTagSeparator(r rune) bool {
	return r == '-' || r == '_'
}

// NormalizeTag lowercases a language tag and canonicalizes its separators
// to "-". Empty subtags collapse; a non-alphabetic subtag invalidates the
// whole tag and yields "".
func NormalizeTag(raw string) string {
	subtags := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), isTagSeparator)
	if len(subtags) == 0 {
		return ""
	}
	for _, subtag := range subtags {
		for _, r := range subtag {
			if r < 'a' || r > 'z' {
				return ""
			}
		}
	}
	return strings.Join(subtags, "-")
}

// NormalizeCode reduces a tag to its primary subtag: "KO_kr" becomes "ko".
// This is the form matched against language detection results.
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	code, _, _ := strings.Cut(tag, "-")
	return code
}
