// Package export renders pipeline reports as JSON, YAML, XLSX or GeoJSON.
package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/address-scraper/internal/model"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts a format name case-insensitively. "yml" is an
// alias for yaml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx":
		return FormatXLSX, nil
	case "geojson":
		return FormatGeoJSON, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Write encodes report to w in the given format.
func Write(w io.Writer, f Format, report *model.PipelineReport) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatYAML:
		return WriteYAML(w, report)
	case FormatXLSX:
		return WriteXLSX(w, report)
	case FormatGeoJSON:
		return WriteGeoJSON(w, report)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *model.PipelineReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(report), "export: encode json")
}

// WriteYAML writes the report as YAML using the same field names and
// order as the JSON encoding.
func WriteYAML(w io.Writer, report *model.PipelineReport) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(report); err != nil {
		return eris.Wrap(err, "export: encode report")
	}

	// JSON is valid YAML; decoding into a node keeps key order.
	var node yaml.Node
	if err := yaml.Unmarshal(buf.Bytes(), &node); err != nil {
		return eris.Wrap(err, "export: convert to yaml")
	}
	plainStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// plainStyle drops the flow style and quoting inherited from JSON input.
func plainStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plainStyle(c)
	}
}
