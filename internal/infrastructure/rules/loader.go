// Package rules loads the classification and permit tables from YAML.
// The tables are data so a regulatory change only needs a new file.
package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
)

//go:embed default_rules.yaml
var defaultRules []byte

//go:embed rules.schema.json
var schemaJSON []byte

const schemaURL = "rules.schema.json"

// Default returns the rule set compiled into the binary.
func Default() (domain.RuleSet, error) {
	return Parse(defaultRules)
}

// Load reads a rule set from path, or the built-in one when path is empty.
func Load(path string) (domain.RuleSet, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("read rules file %s: %w", path, err)
	}
	rs, err := Parse(raw)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes YAML strictly and validates the result against the embedded schema.
func Parse(raw []byte) (domain.RuleSet, error) {
	var rs domain.RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.RuleSet{}, domain.WrapError(domain.ErrInvalidInput, "decode rules", errors.New("empty document"))
		}
		return domain.RuleSet{}, domain.WrapError(domain.ErrInvalidInput, "decode rules", err)
	}
	if err := validate(rs); err != nil {
		return domain.RuleSet{}, domain.WrapError(domain.ErrInvalidInput, "validate rules", err)
	}
	return rs, nil
}

func validate(rs domain.RuleSet) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
