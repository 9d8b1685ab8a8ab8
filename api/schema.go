package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request body schemas, keyed by name.
var schemas = map[string]string{
	"message": `{
		"type": "object",
		"required": ["id", "channel_id", "author_id"],
		"properties": {
			"id":          {"type": "string", "minLength": 1},
			"channel_id":  {"type": "string", "minLength": 1},
			"author_id":   {"type": "integer"},
			"author_name": {"type": "string"},
			"guild_name":  {"type": "string"},
			"content":     {"type": "string"},
			"bot":         {"type": "boolean"},
			"timestamp":   {"type": "string"},
			"attachments": {"type": "array", "items": {"$ref": "#/$defs/attachment"}}
		},
		"$defs": {
			"attachment": {
				"type": "object",
				"required": ["url"],
				"properties": {
					"filename":     {"type": "string"},
					"url":          {"type": "string", "minLength": 1},
					"content_type": {"type": "string"},
					"size":         {"type": "integer", "minimum": 0}
				}
			}
		}
	}`,
	"edit": `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"content":    {"type": "string"},
			"author_id":  {"type": "integer"},
			"guild_name": {"type": "string"}
		}
	}`,
	"beam": `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name":     {"type": "string", "pattern": "^[a-zA-Z0-9_]+$"},
			"admin_id": {"type": "integer"}
		}
	}`,
	"wormhole": `{
		"type": "object",
		"required": ["beam", "channel_id"],
		"properties": {
			"beam":       {"type": "string", "minLength": 1},
			"channel_id": {"type": "string", "minLength": 1}
		}
	}`,
	"user": `{
		"type": "object",
		"required": ["account_id", "nickname"],
		"properties": {
			"account_id": {"type": "integer"},
			"nickname":   {"type": "string", "minLength": 1},
			"home_id":    {"type": "string"}
		}
	}`,
	"attribute": `{
		"type": "object",
		"required": ["key", "value"],
		"properties": {
			"key":   {"type": "string", "minLength": 1},
			"value": {"type": "string"},
			"actor": {"type": "integer"}
		}
	}`,
	"announce": `{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text": {"type": "string", "minLength": 1}
		}
	}`,
}

// validator validates request bodies against the compiled schemas.
type validator struct {
	compiled map[string]*jsonschema.Schema
}

// newValidator compiles every schema. The schemas are constants, so a
// compile failure is a programming error.
func newValidator() *validator {
	c := jsonschema.NewCompiler()
	v := &validator{compiled: make(map[string]*jsonschema.Schema, len(schemas))}

	for name, src := range schemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			panic(fmt.Sprintf("api: parse schema %s: %v", name, err))
		}
		url := "wormhole://schema/" + name
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("api: add schema %s: %v", name, err))
		}
	}
	for name := range schemas {
		compiled, err := c.Compile("wormhole://schema/" + name)
		if err != nil {
			panic(fmt.Sprintf("api: compile schema %s: %v", name, err))
		}
		v.compiled[name] = compiled
	}
	return v
}

func (v *validator) validate(name string, body []byte) error {
	schema, ok := v.compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
