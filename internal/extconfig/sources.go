package extconfig

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"horse.fit/clipper/internal/language"
)

// Source is one watched feed. Language, when present, is the ISO 639-1 code
// the feed is expected to publish in; it only drives a sanity-check warning
// during ingest.
type Source struct {
	Name     string `json:"name"`
	FeedURL  string `json:"feed_url"`
	Language string `json:"language,omitempty"`
}

type sourcesFile struct {
	Sources []Source `json:"sources"`
}

// LoadSources reads and validates the feed source config file.
func LoadSources(path string) ([]Source, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources config: %w", err)
	}
	sources, err := ValidateSourcesPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("sources config %s: %w", path, err)
	}
	return sources, nil
}

// ValidateSourcesPayload checks a raw sources document against the embedded
// schema and the semantic rules, returning the normalized source list.
func ValidateSourcesPayload(payload []byte) ([]Source, error) {
	var file sourcesFile
	if err := validatePayload(sourcesSchema, payload, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]

		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			return nil, fmt.Errorf("sources[%d].name must not be blank", i)
		}
		if _, dup := seen[src.Name]; dup {
			return nil, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = struct{}{}

		src.FeedURL = strings.TrimSpace(src.FeedURL)
		parsed, err := url.ParseRequestURI(src.FeedURL)
		if err != nil {
			return nil, fmt.Errorf("sources[%d].feed_url is not a valid URL: %w", i, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("sources[%d].feed_url must use http or https", i)
		}

		if src.Language != "" {
			code := language.NormalizeCode(src.Language)
			if code == "" {
				return nil, fmt.Errorf("sources[%d].language %q is not a valid language tag", i, src.Language)
			}
			src.Language = code
		}
	}

	return file.Sources, nil
}
