// Package manifest validates batch run manifests against an embedded JSON
// Schema before any work is dispatched.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/presslate/internal/translation"
)

//go:embed manifest.schema.json
var manifestSchemaJSON string

// Manifest selects the items and target language for one batch run.
type Manifest struct {
	ItemIDs     []int64 `json:"item_ids"`
	TargetLang  string  `json:"target_lang"`
	MaxChunkLen int     `json:"max_chunk_len,omitempty"`
	MaxRetries  int     `json:"max_retries,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Validate parses and validates a run manifest payload.
func Validate(payload json.RawMessage) (*Manifest, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode manifest JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize manifest JSON: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(normalized, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := validateSemantics(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("manifest.schema.json", strings.NewReader(manifestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("manifest.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("manifest is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("manifest contains trailing content")
	}

	return value, nil
}

func validateSemantics(m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest is nil")
	}
	if !translation.IsSupportedLanguage(m.TargetLang) {
		return fmt.Errorf("target_lang %q is not a supported language (supported: %s)",
			m.TargetLang, strings.Join(translation.SupportedLanguageCodes(), ", "))
	}
	return nil
}
