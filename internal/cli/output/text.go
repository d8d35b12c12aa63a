package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// TextFormatter prints objects as aligned "key  value" lines with nested
// keys joined by dots, lists one item per line, and scalars as they are.
type TextFormatter struct {
	// Palette colors the keys. Every key gets the same escape codes, so
	// the columns stay aligned.
	Palette Palette
}

// Format implements Formatter.
func (f *TextFormatter) Format(w io.Writer, data any) error {
	v, err := normalize(data)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case map[string]any:
		flat := make(map[string]string)
		flatten("", v, flat)
		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%s\n", f.Palette.KeyText(k), flat[k])
		}
		return tw.Flush()
	case []any:
		for _, item := range v {
			if _, err := fmt.Fprintln(w, scalar(item)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, scalar(v))
		return err
	}
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = scalar(v)
	}
}

func scalar(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = scalar(item)
		}
		return strings.Join(parts, ",")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
