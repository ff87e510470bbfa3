package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKM(t *testing.T) {
	assert.InDelta(t, 525.9, distanceKM(6.5244, 3.3792, 9.0765, 7.3986), 0.5, "Lagos to Abuja")
	assert.InDelta(t, 0.1567, distanceKM(6.5, 3.3, 6.501, 3.301), 0.001)
	assert.Zero(t, distanceKM(6.5, 3.3, 6.5, 3.3))
	assert.InDelta(t, 2.224, distanceKM(0, 179.99, 0, -179.99), 0.01, "across the antimeridian")
}

func TestSearchBounds_ContainsCircle(t *testing.T) {
	box := searchBounds(6.5, 3.3, 10)
	assert.False(t, box.allLongitudes)
	assert.False(t, box.crossesAntimeridian)

	// 10 km is roughly 0.09 degrees of latitude.
	assert.InDelta(t, 6.41, box.MinLat, 0.01)
	assert.InDelta(t, 6.59, box.MaxLat, 0.01)
	assert.Less(t, box.MinLng, 3.3-0.09)
	assert.Greater(t, box.MaxLng, 3.3+0.09)
}

func TestSearchBounds_Antimeridian(t *testing.T) {
	box := searchBounds(0, 179.99, 5)
	assert.True(t, box.crossesAntimeridian)
	assert.Greater(t, box.MinLng, 179.9)
	assert.Less(t, box.MaxLng, -179.9)
}

func TestSearchBounds_Pole(t *testing.T) {
	box := searchBounds(89.99, 0, 50)
	assert.True(t, box.allLongitudes)
	assert.InDelta(t, 90, box.MaxLat, 1e-9)
}
