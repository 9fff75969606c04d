// Package textnorm implements the text and URL normalization primitives the
// dedup pipeline hashes over. Every function here is pure; canonical forms
// must stay stable across releases because persisted hashes depend on them.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	maxTokens     = 500
	minTokenRunes = 2
)

// NormalizeWS collapses every whitespace run (spaces, tabs, newlines) into a
// single space and trims both ends.
func NormalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalizeURL strips the fragment and utm_* tracking parameters from a
// URL without reordering or re-encoding anything else. The result is the
// stable dedup key for the article, so the transform has to be idempotent:
// canonicalizing a canonical URL returns it unchanged.
func CanonicalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}

	q := strings.IndexByte(s, '?')
	if q < 0 {
		return s
	}

	base, query := s[:q], s[q+1:]
	kept := make([]string, 0, strings.Count(query, "&")+1)
	for _, param := range strings.Split(query, "&") {
		if param == "" {
			continue
		}
		key := param
		if eq := strings.IndexByte(param, '='); eq >= 0 {
			key = param[:eq]
		}
		if strings.HasPrefix(key, "utm_") {
			continue
		}
		kept = append(kept, param)
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// SHA256Hex returns the lowercase hex SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TitleHash returns the exact-match key for a title: SHA-256 over the
// lower-cased, whitespace-normalized form.
func TitleHash(title string) string {
	return SHA256Hex(strings.ToLower(NormalizeWS(title)))
}

// Tokenize converts free text into the token sequence fed to the fingerprint.
// Text is whitespace-normalized and lower-cased; only digits, ASCII letters,
// and Hangul syllables survive (everything else separates tokens). Tokens
// shorter than two runes are dropped and the sequence is cut at 500 tokens so
// fingerprint cost stays bounded on long articles.
func Tokenize(text string) []string {
	normalized := strings.ToLower(NormalizeWS(text))
	if normalized == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= '가' && r <= '힣', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if utf8.RuneCountInString(tok) < minTokenRunes {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == maxTokens {
			break
		}
	}
	return tokens
}
