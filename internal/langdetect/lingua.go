// Package langdetect guesses article languages so ingest can warn when a
// feed delivers something other than what its source config promises.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

const (
	// A headline plus lede is plenty for lingua; longer samples only cost time.
	maxSampleRunes = 400

	// Below this many letters the guess is a coin flip, so no call is made.
	minSampleLetters = 6
)

// candidateLanguages restricts the detector to what the watched feeds can
// plausibly deliver. A small set loads fewer models and avoids spurious
// guesses on short headlines.
var candidateLanguages = []lingua.Language{
	lingua.Korean,
	lingua.English,
	lingua.Japanese,
	lingua.Chinese,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 guesses the dominant language of text and returns its
// ISO 639-1 code, or "" when the sample is too thin to call.
func DetectISO6391(text string) string {
	sample := clipRunes(strings.TrimSpace(text), maxSampleRunes)
	if countLetters(sample) < minSampleLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func clipRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func countLetters(s string) int {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
