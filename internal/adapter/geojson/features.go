// Package geojson renders leg schedules as GeoJSON for map previews.
package geojson

import (
	"fmt"

	"github.com/paulmach/orb"
	geo "github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// AreaFeature returns the leg's bounding box as a closed polygon. The ring
// runs top-left, bottom-left, bottom-right, top-right and back to top-left.
func AreaFeature(leg domain.Leg) *geo.Feature {
	b := leg.Box
	ring := orb.Ring{
		{b.Left, b.Top},
		{b.Left, b.Bottom},
		{b.Right, b.Bottom},
		{b.Right, b.Top},
		{b.Left, b.Top},
	}

	f := geo.NewFeature(orb.Polygon{ring})
	f.Properties["title"] = leg.Name
	f.Properties["description"] = fmt.Sprintf("%s to %s", leg.StartCity, leg.FinishCity)
	f.Properties["stroke"] = leg.ColorCode
	f.Properties["fill"] = leg.ColorCode
	return f
}

// StartFeature returns the leg's departure point.
func StartFeature(leg domain.Leg) *geo.Feature {
	f := geo.NewFeature(orb.Point{leg.Start.Lon, leg.Start.Lat})
	f.Properties["title"] = leg.StartCity
	f.Properties["description"] = fmt.Sprintf("%s to depart %s on %s", leg.Name, leg.StartCity, leg.StartDateTimeUTC)
	return f
}

// FeatureCollection returns an area and a start feature for every leg, in
// schedule order.
func FeatureCollection(legs []domain.Leg) *geo.FeatureCollection {
	fc := geo.NewFeatureCollection()
	for _, leg := range legs {
		fc.Append(AreaFeature(leg))
		fc.Append(StartFeature(leg))
	}
	return fc
}
