package app

import (
	"os"
	"path/filepath"
	"testing"
)

const validSourcesJSON = `{
  "sources": [
    {"name": "연합뉴스", "feed_url": "https://www.yna.co.kr/rss/news.xml", "language": "ko"}
  ]
}`

const validTaxonomyJSON = `{
  "categories": [
    {"name": "보건/공공보건", "keywords": ["질병관리청", "감염병"]}
  ],
  "negative_hints": ["연예"]
}`

func TestValidateConfigFilesAccepted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sourcesPath := filepath.Join(root, "sources.json")
	taxonomyPath := filepath.Join(root, "taxonomy.json")
	mustWriteFile(t, sourcesPath, validSourcesJSON)
	mustWriteFile(t, taxonomyPath, validTaxonomyJSON)

	if code := validateConfigFiles(sourcesPath, taxonomyPath); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestValidateConfigFilesRejectsBadSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sourcesPath := filepath.Join(root, "sources.json")
	taxonomyPath := filepath.Join(root, "taxonomy.json")
	mustWriteFile(t, sourcesPath, `{"sources": [{"name": "연합뉴스", "feed_url": "ftp://example.com/feed"}]}`)
	mustWriteFile(t, taxonomyPath, validTaxonomyJSON)

	if code := validateConfigFiles(sourcesPath, taxonomyPath); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestValidateConfigFilesRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sourcesPath := filepath.Join(root, "sources.json")
	taxonomyPath := filepath.Join(root, "taxonomy.json")
	mustWriteFile(t, sourcesPath, validSourcesJSON)
	mustWriteFile(t, taxonomyPath, `{"categories": [{"name": "AI", "keywords": ["ai"], "extra": true}]}`)

	if code := validateConfigFiles(sourcesPath, taxonomyPath); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestValidateConfigFilesMissingFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	taxonomyPath := filepath.Join(root, "taxonomy.json")
	mustWriteFile(t, taxonomyPath, validTaxonomyJSON)

	if code := validateConfigFiles(filepath.Join(root, "missing.json"), taxonomyPath); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
