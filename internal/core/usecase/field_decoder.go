package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// fieldDecoder turns a model reply into an ExtractionResult. It first tries
// a strict JSON decode validated against the schema and falls back to a
// per-field pattern search over the raw reply.
type fieldDecoder struct {
	schema    domain.Schema
	validator *jsonschema.Schema
	patterns  map[string]*regexp.Regexp
}

func newFieldDecoder(schema domain.Schema) (*fieldDecoder, error) {
	d := &fieldDecoder{
		schema:   schema,
		patterns: make(map[string]*regexp.Regexp, len(schema.Fields)),
	}
	for _, field := range schema.Fields {
		names := append([]string{field.Key}, field.Aliases...)
		quoted := make([]string, 0, len(names))
		for _, name := range names {
			quoted = append(quoted, regexp.QuoteMeta(name))
		}
		d.patterns[field.Key] = regexp.MustCompile(`(?i)"(?:` + strings.Join(quoted, "|") + `)"\s*:\s*"([^"]*)"`)
	}

	validator, err := compileFieldSchema(schema)
	if err != nil {
		return d, err
	}
	d.validator = validator
	return d, nil
}

func compileFieldSchema(schema domain.Schema) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(schema.Fields))
	for _, field := range schema.Fields {
		properties[field.Key] = map[string]any{"type": []string{"string", "number", "null"}}
	}
	schemaMap := map[string]any{
		"type":       "object",
		"required":   schema.Keys(),
		"properties": properties,
	}

	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal field schema: %w", err)
	}
	name := strings.ReplaceAll(string(schema.Type), " ", "_") + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add field schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile field schema: %w", err)
	}
	return compiled, nil
}

func (d *fieldDecoder) Decode(reply string) domain.ExtractionResult {
	if result, ok := d.decodeStrict(reply); ok {
		return result
	}
	return d.decodeTolerant(reply)
}

func (d *fieldDecoder) decodeStrict(reply string) (domain.ExtractionResult, bool) {
	if d.validator == nil {
		return domain.ExtractionResult{}, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &payload); err != nil {
		return domain.ExtractionResult{}, false
	}
	d.normalizeAliases(payload)
	if err := d.validator.Validate(payload); err != nil {
		return domain.ExtractionResult{}, false
	}

	result := domain.NewExtractionResult(d.schema)
	result.Decoder = domain.DecoderStrict
	for _, field := range d.schema.Fields {
		result.Set(field.Key, normalizeFieldValue(payload[field.Key]))
	}
	return result, true
}

func (d *fieldDecoder) decodeTolerant(reply string) domain.ExtractionResult {
	result := domain.NewExtractionResult(d.schema)
	result.Decoder = domain.DecoderTolerant
	for _, field := range d.schema.Fields {
		match := d.patterns[field.Key].FindStringSubmatch(reply)
		if len(match) < 2 {
			continue
		}
		result.Set(field.Key, normalizeFieldValue(match[1]))
	}
	return result
}

// normalizeAliases copies aliased keys onto their canonical names.
func (d *fieldDecoder) normalizeAliases(payload map[string]any) {
	for _, field := range d.schema.Fields {
		if _, ok := payload[field.Key]; ok {
			continue
		}
		for _, alias := range field.Aliases {
			if v, ok := payload[alias]; ok {
				payload[field.Key] = v
				break
			}
		}
	}
}

func normalizeFieldValue(v any) string {
	switch value := v.(type) {
	case nil:
		return domain.MissingValue
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.EqualFold(trimmed, "null") || strings.EqualFold(trimmed, domain.MissingValue) {
			return domain.MissingValue
		}
		return trimmed
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
