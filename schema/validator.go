// Package payloadschema validates raw scraped record payloads before the
// processor touches them. Everything inside "fields" stays loosely typed
// until the normalizer runs; the envelope itself is strict.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scraped_record.schema.json
var scrapedRecordSchemaJSON string

// SubRecord is a nested venue/artist/organizer carried inside an event payload.
type SubRecord struct {
	SourceExternalID string         `json:"source_external_id"`
	Fields           map[string]any `json:"fields"`
}

// ScrapedRecord is the validated envelope a source adapter hands the processor.
type ScrapedRecord struct {
	PayloadVersion   string         `json:"payload_version"`
	EntityType       string         `json:"entity_type"`
	SourceCode       string         `json:"source_code"`
	SourceExternalID string         `json:"source_external_id"`
	Fields           map[string]any `json:"fields"`
	Venue            *SubRecord     `json:"venue,omitempty"`
	Organizer        *SubRecord     `json:"organizer,omitempty"`
	Artists          []SubRecord    `json:"artists,omitempty"`
	ScrapedAt        *string        `json:"scraped_at,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidateScrapedRecordPayload(payload json.RawMessage) (*ScrapedRecord, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
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
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var record ScrapedRecord
	if err := json.Unmarshal(normalized, &record); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&record); err != nil {
		return nil, err
	}

	return &record, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("scraped_record.schema.json", strings.NewReader(scrapedRecordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("scraped_record.schema.json")
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
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(record *ScrapedRecord) error {
	if record == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(record.SourceCode) == "" {
		return fmt.Errorf("source_code must not be empty")
	}
	if strings.TrimSpace(record.SourceExternalID) == "" {
		return fmt.Errorf("source_external_id must not be empty")
	}
	if strings.TrimSpace(record.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}

	if record.ScrapedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*record.ScrapedAt)); err != nil {
			return fmt.Errorf("scraped_at must be RFC3339: %w", err)
		}
	}

	for i, artist := range record.Artists {
		if strings.TrimSpace(artist.SourceExternalID) == "" {
			return fmt.Errorf("artists[%d].source_external_id must not be empty", i)
		}
	}

	return nil
}
