package extconfig

import (
	"fmt"
	"os"
	"strings"

	"horse.fit/clipper/internal/classify"
)

type taxonomyCategory struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

type taxonomyFile struct {
	Categories    []taxonomyCategory `json:"categories"`
	NegativeHints []string           `json:"negative_hints,omitempty"`
}

// LoadTaxonomy reads and validates the keyword taxonomy config file.
func LoadTaxonomy(path string) (*classify.Taxonomy, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy config: %w", err)
	}
	taxonomy, err := ValidateTaxonomyPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("taxonomy config %s: %w", path, err)
	}
	return taxonomy, nil
}

// ValidateTaxonomyPayload checks a raw taxonomy document against the embedded
// schema and the semantic rules, returning the compiled matcher.
func ValidateTaxonomyPayload(payload []byte) (*classify.Taxonomy, error) {
	var file taxonomyFile
	if err := validatePayload(taxonomySchema, payload, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Categories))
	categories := make([]classify.Category, 0, len(file.Categories))
	for i, c := range file.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("categories[%d].name must not be blank", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate category name %q", name)
		}
		seen[name] = struct{}{}

		keywords := make([]string, 0, len(c.Keywords))
		for j, keyword := range c.Keywords {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				return nil, fmt.Errorf("categories[%d].keywords[%d] must not be blank", i, j)
			}
			keywords = append(keywords, keyword)
		}
		categories = append(categories, classify.Category{Name: name, Keywords: keywords})
	}

	for i, hint := range file.NegativeHints {
		if strings.TrimSpace(hint) == "" {
			return nil, fmt.Errorf("negative_hints[%d] must not be blank", i)
		}
	}

	return classify.NewTaxonomy(categories, file.NegativeHints), nil
}
