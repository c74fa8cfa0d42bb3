// Package geocode suggests place names for a coordinate through the Google
// Geocoding API.
package geocode

import (
	"context"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"stellerom/internal/adapters/observability"
	"stellerom/internal/domain"
)

const service = "google-geocoding"

// Google reverse-geocodes with the Maps API client.
type Google struct {
	client   *maps.Client
	language string
}

// NewGoogle builds a geocoder for apiKey. Extra options (for example
// maps.WithBaseURL) are passed to the Maps client.
func NewGoogle(apiKey string, opts ...maps.ClientOption) (*Google, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Google{client: c, language: "no"}, nil
}

// ReverseGeocode returns the most specific name Google knows for loc, or ""
// when there is no result.
func (g *Google) ReverseGeocode(ctx context.Context, loc domain.Location) (string, error) {
	start := time.Now()
	res, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: loc.Lat, Lng: loc.Lng},
		Language: g.language,
	})
	if err != nil {
		observability.ObserveExternal(service, "/reverse", 0, time.Since(start))
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return "", nil
		}
		return "", err
	}
	observability.ObserveExternal(service, "/reverse", 200, time.Since(start))
	return bestName(res), nil
}

// bestName prefers a named point of interest over a street address.
func bestName(res []maps.GeocodingResult) string {
	for _, r := range res {
		for _, c := range r.AddressComponents {
			if hasType(c.Types, "point_of_interest", "establishment", "premise") {
				return c.LongName
			}
		}
	}
	if len(res) > 0 {
		return res[0].FormattedAddress
	}
	return ""
}

func hasType(types []string, want ...string) bool {
	for _, t := range types {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}
