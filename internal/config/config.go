// Package config loads the optional checker extensions file, which lets
// a project extend the primitive type and builtin name sets without
// rebuilding the tool.
package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/extensions.json
var schemaFS embed.FS

// Extensions holds project-local additions to the checker's closed name
// sets. Both lists are additive only.
type Extensions struct {
	ExtraPrimitives []string `json:"extra_primitives"`
	ExtraBuiltins   []string `json:"extra_builtins"`
}

func compileSchema() (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/extensions.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	var schemaDoc any
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("extensions.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := c.Compile("extensions.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Load reads, schema-validates, and decodes an extensions file.
func Load(path string) (*Extensions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse schema-validates and decodes raw extensions JSON.
func Parse(data []byte) (*Extensions, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var ext Extensions
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &ext, nil
}
