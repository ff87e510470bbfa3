package store

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// earthRadiusKM is the IUGG mean Earth radius.
const earthRadiusKM = 6371.0088

// distanceKM is the great-circle distance between two points.
func distanceKM(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * earthRadiusKM
}

// boundingBox is a degree-space prefilter around a search circle. When
// crossesAntimeridian is set the longitude range wraps: MinLng > MaxLng.
type boundingBox struct {
	MinLat, MaxLat      float64
	MinLng, MaxLng      float64
	allLongitudes       bool
	crossesAntimeridian bool
}

// searchBounds returns a rectangle that contains every point within radiusKM
// of (lat, lng).
func searchBounds(lat, lng, radiusKM float64) boundingBox {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	rect := s2.CapFromCenterAngle(center, s1.Angle(radiusKM/earthRadiusKM)).RectBound()

	return boundingBox{
		MinLat:              s1.Angle(rect.Lat.Lo).Degrees(),
		MaxLat:              s1.Angle(rect.Lat.Hi).Degrees(),
		MinLng:              s1.Angle(rect.Lng.Lo).Degrees(),
		MaxLng:              s1.Angle(rect.Lng.Hi).Degrees(),
		allLongitudes:       rect.Lng.IsFull(),
		crossesAntimeridian: rect.Lng.IsInverted(),
	}
}
