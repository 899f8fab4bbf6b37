package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how rows are rendered.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// FormatRows renders a row slice (or any JSON-taggable value) in the
// requested format.
func FormatRows(v interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(v)
	case FormatYAML:
		return formatYAML(v)
	case FormatTable, "":
		return formatTable(v)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatTable round-trips rows through their JSON tags so every row type
// renders without its own formatter. Column order follows the first
// row's tag order; non-slice values fall back to JSON.
func formatTable(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return formatJSON(v)
	}
	if len(rows) == 0 {
		return "(no rows)", nil
	}

	columns := columnOrder(data, rows[0])

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = renderCell(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// columnOrder recovers the first row's key order from the raw JSON, since
// unmarshaling into a map loses it.
func columnOrder(data []byte, first map[string]interface{}) []string {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil && len(raw) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(raw[0])))
		var columns []string
		depth := 0
		for {
			tok, err := dec.Token()
			if err != nil {
				break
			}
			switch t := tok.(type) {
			case json.Delim:
				switch t {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			case string:
				// Keys at depth 1 alternate with values; skip values by
				// decoding them away.
				if depth == 1 {
					columns = append(columns, t)
					var discard json.RawMessage
					if err := dec.Decode(&discard); err != nil {
						return columns
					}
				}
			}
			if depth == 0 && len(columns) > 0 {
				break
			}
		}
		if len(columns) > 0 {
			return columns
		}
	}

	columns := make([]string, 0, len(first))
	for k := range first {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func renderCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	case bool:
		return fmt.Sprintf("%v", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
