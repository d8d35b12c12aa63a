package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format represents the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Formatter formats data for output.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TextFormatter{}
	}
}

// NewFormatterFor creates a formatter for output written to w. Text output
// is colored when w is a terminal.
func NewFormatterFor(format Format, w io.Writer) Formatter {
	if format == FormatText || format == "" {
		return &TextFormatter{Palette: PaletteFor(w)}
	}
	return NewFormatter(format)
}

// normalize turns data into plain maps, slices and scalars by a JSON round
// trip, so struct tags decide the field names in every format.
func normalize(data any) (any, error) {
	if raw, ok := data.(json.RawMessage); ok {
		data = []byte(raw)
	}
	var b []byte
	if raw, ok := data.([]byte); ok {
		b = raw
	} else {
		var err error
		if b, err = json.Marshal(data); err != nil {
			return nil, err
		}
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
