package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

const defaultIndent = "  "

// ErrUnknownFormat is returned by CodecFor for unsupported format names.
var ErrUnknownFormat = errors.New("unknown output format")

// Codec writes a report in one output format.
type Codec interface {
	// Encode writes the report to w.
	Encode(w io.Writer, rep Report) error
	// Format returns the format name.
	Format() string
}

// CodecFor returns the codec of a format name.
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return NewJSONCodec(), nil
	case FormatYAML, "yml":
		return YAMLCodec{}, nil
	case FormatTable:
		return TableCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// JSONCodec encodes reports as JSON with optional indentation.
type JSONCodec struct {
	// Indent is the indentation string. Empty means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with two-space indentation.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.
func (c *JSONCodec) Encode(w io.Writer, rep Report) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(rep)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Format implements Codec.
func (c *JSONCodec) Format() string { return FormatJSON }

// Decode reads a JSON report.
func Decode(r io.Reader) (Report, error) {
	var rep Report

	err := json.NewDecoder(r).Decode(&rep)
	if err != nil {
		return Report{}, fmt.Errorf("json decode: %w", err)
	}

	return rep, nil
}

// YAMLCodec encodes reports as YAML.
type YAMLCodec struct{}

// Encode implements Codec.
func (YAMLCodec) Encode(w io.Writer, rep Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(len(defaultIndent))

	err := encoder.Encode(rep)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	return nil
}

// Format implements Codec.
func (YAMLCodec) Format() string { return FormatYAML }
