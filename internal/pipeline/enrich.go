package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/geocode"
)

// enrich attaches coordinates to addresses that lack them. Lookup
// failures become GeocodeUnavailable warnings; the address is kept.
func (p *Pipeline) enrich(ctx context.Context, report *model.PipelineReport) {
	if p.geocoder == nil || len(report.Addresses) == 0 {
		return
	}

	warnings := make([]*model.Warning, len(report.Addresses))
	g := new(errgroup.Group)
	g.SetLimit(p.geocodeConcurrency)

	for i := range report.Addresses {
		addr := &report.Addresses[i]
		if addr.Coordinates != nil {
			continue
		}
		g.Go(func() error {
			res, err := p.geocoder.Geocode(ctx, addr.Canonical)
			if err != nil {
				detail := err.Error()
				if errors.Is(err, geocode.ErrNotFound) {
					detail = "no match for address"
				}
				warnings[i] = &model.Warning{
					Canonical: addr.Canonical,
					Kind:      model.ErrGeocodeUnavailable,
					Detail:    detail,
				}
				return nil
			}
			addr.Coordinates = &model.LatLon{Latitude: res.Latitude, Longitude: res.Longitude}
			return nil
		})
	}
	_ = g.Wait()

	for _, w := range warnings {
		if w != nil {
			report.Warnings = append(report.Warnings, *w)
		}
	}
	for _, a := range report.Addresses {
		if a.Coordinates != nil {
			report.Counts.Geocoded++
		}
	}
	if len(report.Warnings) > 0 {
		zap.L().Info("pipeline: geocoding incomplete", zap.Int("warnings", len(report.Warnings)))
	}
}
