// Package extconfig loads the operator-maintained JSON config files (feed
// sources and the keyword taxonomy). Both files are validated against
// embedded JSON schemas before any semantic checks so a typo fails the run at
// startup, not mid-ingest.
package extconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed sources.schema.json
var sourcesSchemaJSON string

//go:embed taxonomy.schema.json
var taxonomySchemaJSON string

// schemaRef compiles one embedded schema on first use.
type schemaRef struct {
	name   string
	source string

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

var (
	sourcesSchema  = &schemaRef{name: "sources.schema.json", source: sourcesSchemaJSON}
	taxonomySchema = &schemaRef{name: "taxonomy.schema.json", source: taxonomySchemaJSON}
)

func (s *schemaRef) load() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(s.name, strings.NewReader(s.source)); err != nil {
			s.err = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(s.name)
		if err != nil {
			s.err = fmt.Errorf("compile schema: %w", err)
			return
		}
		s.compiled = schema
	})

	if s.err != nil {
		return nil, s.err
	}
	if s.compiled == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return s.compiled, nil
}

// validatePayload runs strict decode plus schema validation, then unmarshals
// the payload into out.
func validatePayload(schema *schemaRef, payload []byte, out any) error {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("decode config JSON: %w", err)
	}

	compiled, err := schema.load()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize config JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("config is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config contains trailing content")
	}

	return value, nil
}
