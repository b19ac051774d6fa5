package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/address-scraper/internal/model"
)

func testReport() *model.PipelineReport {
	return &model.PipelineReport{
		RunID: "run-1",
		Query: model.Query{Term: "bakery"},
		Addresses: []model.NormalizedAddress{
			{
				Components: []model.Component{
					{Label: "house_number", Value: "221b"},
					{Label: "road", Value: "baker street"},
					{Label: "city", Value: "london"},
				},
				Canonical:   "221b baker street london",
				Sources:     []string{"maps-1", "url-2"},
				Confidence:  0.9,
				Coordinates: &model.LatLon{Latitude: 51.5238, Longitude: -0.1586},
				Listing:     &model.Listing{Name: "Baker & Co", Phone: "020 7946 0000", Website: "https://bakerco.example"},
			},
			{
				Components: []model.Component{{Label: "road", Value: "jalan ampang"}},
				Canonical:  "jalan ampang",
				Sources:    []string{"url-3"},
				Confidence: 0.4,
			},
		},
		Failures: []model.Failure{{SourceID: "url-1", Kind: model.ErrRateLimited, Detail: "status 429"}},
		Sources:  []string{"maps-1", "url-1", "url-2", "url-3"},
		Counts:   model.ReportCounts{Requested: 4, Succeeded: 3, Failed: 1, Addresses: 2, Geocoded: 1},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xlsx", FormatXLSX, false},
		{" geojson ", FormatGeoJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, testReport()))

	var got model.PipelineReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Addresses, 2)
	assert.Equal(t, []string{"maps-1", "url-2"}, got.Addresses[0].Sources)
}

func TestWriteYAML_KeepsJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, testReport()))

	out := buf.String()
	assert.Contains(t, out, "run_id: run-1")
	assert.Contains(t, out, "canonical: 221b baker street london")
	assert.NotContains(t, out, "{")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	addrs, ok := decoded["addresses"].([]any)
	require.True(t, ok)
	assert.Len(t, addrs, 2)
	first := addrs[0].(map[string]any)
	assert.Equal(t, "221b", first["components"].([]any)[0].(map[string]any)["value"])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, testReport()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	addrs, ok := f.Sheet["Addresses"]
	require.True(t, ok)
	require.Len(t, addrs.Rows, 3)
	assert.Equal(t, "Canonical", addrs.Rows[0].Cells[0].String())
	assert.Equal(t, "221b baker street london", addrs.Rows[1].Cells[0].String())
	assert.Equal(t, "house_number=221b; road=baker street; city=london", addrs.Rows[1].Cells[1].String())
	assert.Equal(t, "maps-1, url-2", addrs.Rows[1].Cells[2].String())
	assert.Equal(t, "Baker & Co", addrs.Rows[1].Cells[6].String())
	assert.Equal(t, "https://bakerco.example", addrs.Rows[1].Cells[8].String())
	require.Len(t, addrs.Rows[2].Cells, len(addressHeader))
	assert.Empty(t, addrs.Rows[2].Cells[4].String(), "no coordinates")
	assert.Empty(t, addrs.Rows[2].Cells[6].String(), "no listing")

	fails, ok := f.Sheet["Failures"]
	require.True(t, ok)
	require.Len(t, fails.Rows, 2)
	assert.Equal(t, "url-1", fails.Rows[1].Cells[0].String())
	assert.Equal(t, "RateLimited", fails.Rows[1].Cells[1].String())
}

func TestWriteGeoJSON_OnlyGeocoded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatGeoJSON, testReport()))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	feat := fc.Features[0]
	assert.Equal(t, "Point", feat.Geometry.Type)
	assert.Equal(t, []float64{-0.1586, 51.5238}, feat.Geometry.Coordinates)
	assert.Equal(t, "221b baker street london", feat.Properties["canonical"])
	assert.Equal(t, "london", feat.Properties["components"].(map[string]any)["city"])
	assert.Equal(t, "020 7946 0000", feat.Properties["listing"].(map[string]any)["phone"])
}

func TestFeatureCollection_Empty(t *testing.T) {
	fc := FeatureCollection(&model.PipelineReport{})
	assert.Empty(t, fc.Features)
}
