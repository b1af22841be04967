package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidImport is returned when a JSON document fails the schema.
var ErrInvalidImport = errors.New("invalid layout document")

// DocumentSchema is the JSON schema of Document.
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["header", "events"],
  "additionalProperties": false,
  "properties": {
    "header": {"$ref": "#/definitions/plant"},
    "events": {"type": ["array", "null"], "items": {"$ref": "#/definitions/plant"}}
  },
  "definitions": {
    "plant": {
      "type": "object",
      "required": ["leaves"],
      "additionalProperties": false,
      "properties": {
        "leaves": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/leaf"}}
      }
    },
    "leaf": {
      "type": "object",
      "required": ["key", "seed", "values"],
      "additionalProperties": false,
      "properties": {
        "key": {"type": "string", "minLength": 1},
        "seed": {"enum": ["int", "double", "boolean", "string", "int64", "ref"]},
        "values": {"type": "array"}
      },
      "anyOf": [
        {"properties": {"seed": {"enum": ["int", "int64", "ref"]}, "values": {"items": {"type": "integer"}}}},
        {"properties": {"seed": {"const": "double"}, "values": {"items": {"type": "number"}}}},
        {"properties": {"seed": {"const": "boolean"}, "values": {"items": {"type": "boolean"}}}},
        {"properties": {"seed": {"const": "string"}, "values": {"items": {"type": "string"}}}}
      ]
    }
  }
}`

// SchemaError is one schema violation.
type SchemaError struct {
	Field       string
	Description string
}

// ImportError lists every violation of a rejected document.
type ImportError struct {
	Errors []SchemaError
}

func (e *ImportError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		parts[i] = se.Field + ": " + se.Description
	}

	return fmt.Sprintf("%s: %s", ErrInvalidImport, strings.Join(parts, "; "))
}

// Unwrap makes errors.Is match ErrInvalidImport.
func (e *ImportError) Unwrap() error { return ErrInvalidImport }

// ParseJSON validates data against DocumentSchema and decodes it. Numbers
// keep their exact text so 64-bit identifiers survive.
func ParseJSON(data []byte) (*Document, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(DocumentSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	if !result.Valid() {
		ie := &ImportError{}
		for _, re := range result.Errors() {
			ie.Errors = append(ie.Errors, SchemaError{Field: re.Field(), Description: re.Description()})
		}

		return nil, ie
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document

	err = dec.Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	return &doc, nil
}
