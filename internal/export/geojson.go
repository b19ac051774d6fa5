package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/address-scraper/internal/model"
)

// FeatureCollection builds a GeoJSON collection with one Point feature per
// geocoded address. Addresses without coordinates are left out.
func FeatureCollection(report *model.PipelineReport) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(report.Addresses))}
	for _, a := range report.Addresses {
		if a.Coordinates == nil {
			continue
		}
		components := make(map[string]any, len(a.Components))
		for _, c := range a.Components {
			if _, dup := components[c.Label]; !dup {
				components[c.Label] = c.Value
			}
		}
		props := map[string]any{
			"canonical":  a.Canonical,
			"sources":    a.Sources,
			"confidence": a.Confidence,
			"components": components,
		}
		if !a.Listing.Empty() {
			props["listing"] = a.Listing
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{a.Coordinates.Longitude, a.Coordinates.Latitude}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the geocoded addresses as a FeatureCollection.
func WriteGeoJSON(w io.Writer, report *model.PipelineReport) error {
	data, err := json.Marshal(FeatureCollection(report))
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	_, err = w.Write(append(data, '\n'))
	return eris.Wrap(err, "export: write geojson")
}
