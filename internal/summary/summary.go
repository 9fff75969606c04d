// Package summary builds the short extractive summary persisted with each
// article. The summary feeds the near-duplicate fingerprint, so the sentence
// selection rules are part of dedup behavior, not presentation.
package summary

import (
	"strings"
	"unicode/utf8"

	"horse.fit/clipper/internal/textnorm"
)

const (
	maxSentences     = 4
	minSentenceRunes = 20
	maxSummaryRunes  = 800
)

// Terminators covers Korean news copy: ASCII sentence punctuation plus the
// ideographic full stop and fullwidth variants.
const terminators = ".!?。！？"

// Extract picks the first few substantial sentences of article text. Text is
// split on terminal punctuation; sentences shorter than 20 runes after
// whitespace normalization are noise (bylines, timestamps, captions) and are
// skipped. The result is capped at 4 sentences and hard-truncated to 800
// runes.
func Extract(text string) string {
	if text == "" {
		return ""
	}

	kept := make([]string, 0, maxSentences)
	for _, sentence := range splitSentences(text) {
		normalized := textnorm.NormalizeWS(sentence)
		if utf8.RuneCountInString(normalized) < minSentenceRunes {
			continue
		}
		kept = append(kept, normalized)
		if len(kept) == maxSentences {
			break
		}
	}

	return truncateRunes(strings.Join(kept, " "), maxSummaryRunes)
}

// splitSentences cuts text after each terminator rune. A trailing segment
// without a terminator still counts as a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(terminators, r) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
