package job

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Parse parses YAML data into a Template. It returns an error if the YAML
// is malformed, contains unknown fields, or has type mismatches. Missing
// optional fields become zero values. Empty input returns a zero-value
// Template.
func Parse(data []byte) (*Template, error) {
	var tpl Template
	if err := strictUnmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parse job template: %w", err)
	}
	return &tpl, nil
}

// strictUnmarshal unmarshals YAML data into v, rejecting unknown fields.
// This helps catch typos in job files early.
// Empty input is treated as valid, leaving v at its zero value.
func strictUnmarshal(data []byte, v any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(v)
	if errors.Is(err, io.EOF) {
		// Empty input is valid - v remains at zero value
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode YAML: %w", err)
	}
	return nil
}

// Marshal marshals a Template to YAML.
func Marshal(tpl *Template) ([]byte, error) {
	data, err := yaml.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("marshal job template: %w", err)
	}
	return data, nil
}
