package output

import (
	"io"

	"github.com/knadh/koanf/parsers/yaml"
)

// YAMLFormatter formats data as YAML. Values that are not objects are
// wrapped under a "value" key.
type YAMLFormatter struct{}

// Format implements Formatter.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	v, err := normalize(data)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		m = map[string]any{"value": v}
	}
	b, err := yaml.Parser().Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
