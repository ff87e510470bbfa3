package geodir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchStateByName_CaseAndSuffix(t *testing.T) {
	d := loadTestDirectory(t)

	for _, input := range []string{"Lagos State", "lagos", "LAGOS", "  lagos-state "} {
		s, ok := d.MatchStateByName(input)
		require.True(t, ok, input)
		assert.Equal(t, 1, s.ID, input)
	}
}

func TestMatchStateByName_FCT(t *testing.T) {
	d := loadTestDirectory(t)

	for _, input := range []string{"FCT", "fct", "Abuja", "ABUJA, Nigeria", "Federal Capital Territory", "federal-capital-territory"} {
		s, ok := d.MatchStateByName(input)
		require.True(t, ok, input)
		assert.Equal(t, 15, s.ID, input)
	}
}

func TestMatchStateByName_FCTFallsBackToSlug(t *testing.T) {
	d := New()
	require.NoError(t, d.Load(strings.NewReader(`[
		{"id": 1, "name": "Lagos", "slug": "lagos"},
		{"id": 15, "name": "Abuja Capital", "slug": "fct"}
	]`)))

	s, ok := d.MatchStateByName("fct")
	require.True(t, ok)
	assert.Equal(t, 15, s.ID)
}

func TestMatchStateByName_FCTMissing(t *testing.T) {
	d := New()
	require.NoError(t, d.Load(strings.NewReader(`[{"id": 1, "name": "Lagos", "slug": "lagos"}]`)))

	_, ok := d.MatchStateByName("Abuja")
	assert.False(t, ok, "FCT queries never fall through to general matching")
}

func TestMatchStateByName_Substring(t *testing.T) {
	d := loadTestDirectory(t)

	s, ok := d.MatchStateByName("Cross River State, Nigeria")
	require.True(t, ok)
	assert.Equal(t, 20, s.ID)

	s, ok = d.MatchStateByName("cross")
	require.True(t, ok)
	assert.Equal(t, 20, s.ID)
}

func TestMatchStateByName_ExactBeatsEarlierSubstring(t *testing.T) {
	d := New()
	require.NoError(t, d.Load(strings.NewReader(`[
		{"id": 1, "name": "Niger Delta", "slug": "niger-delta"},
		{"id": 2, "name": "Niger", "slug": "niger"}
	]`)))

	s, ok := d.MatchStateByName("Niger State")
	require.True(t, ok)
	assert.Equal(t, 2, s.ID)
}

func TestMatchStateByName_NoMatch(t *testing.T) {
	d := loadTestDirectory(t)

	_, ok := d.MatchStateByName("Kano")
	assert.False(t, ok)
	_, ok = d.MatchStateByName("")
	assert.False(t, ok)
	_, ok = d.MatchStateByName("---")
	assert.False(t, ok)
}

func TestMatchStateByName_Unloaded(t *testing.T) {
	_, ok := New().MatchStateByName("Lagos")
	assert.False(t, ok)
}

func TestMatchLGAByName_Exact(t *testing.T) {
	d := loadTestDirectory(t)

	lga, ok := d.MatchLGAByName(1, "Ikeja")
	require.True(t, ok)
	assert.Equal(t, 10, lga.ID)

	lga, ok = d.MatchLGAByName(1, "eti osa")
	require.True(t, ok)
	assert.Equal(t, 11, lga.ID)
}

func TestMatchLGAByName_ExactWinsOverEarlierSubstring(t *testing.T) {
	d := loadTestDirectory(t)

	lga, ok := d.MatchLGAByName(20, "Calabar South")
	require.True(t, ok)
	assert.Equal(t, 201, lga.ID)

	d2 := New()
	// "Ikeja North" is scanned first and contains the query.
	require.NoError(t, d2.Load(strings.NewReader(`[{"id": 1, "name": "Lagos", "slug": "lagos", "lgas": [
		{"id": 1, "name": "Ikeja North", "slug": "a"},
		{"id": 2, "name": "Ikeja", "slug": "b"}
	]}]`)))
	lga, ok = d2.MatchLGAByName(1, "Ikeja")
	require.True(t, ok)
	assert.Equal(t, 2, lga.ID)
}

func TestMatchLGAByName_FirstSubstringWins(t *testing.T) {
	d := loadTestDirectory(t)

	lga, ok := d.MatchLGAByName(20, "calabar")
	require.True(t, ok)
	assert.Equal(t, 200, lga.ID)

	lga, ok = d.MatchLGAByName(1, "Ikorodu LGA")
	require.True(t, ok)
	assert.Equal(t, 12, lga.ID)
}

func TestMatchLGAByName_ScopedToState(t *testing.T) {
	d := loadTestDirectory(t)

	_, ok := d.MatchLGAByName(1, "Bwari")
	assert.False(t, ok, "Bwari belongs to FCT, not Lagos")

	_, ok = d.MatchLGAByName(999, "Ikeja")
	assert.False(t, ok, "unknown state yields an empty candidate pool")
}

func TestMatchLGAByName_AllStates(t *testing.T) {
	d := loadTestDirectory(t)

	lga, ok := d.MatchLGAByName(0, "Bwari")
	require.True(t, ok)
	assert.Equal(t, 151, lga.ID)
	assert.Equal(t, 15, lga.StateID)
}

func TestMatchLGAByName_NoMatch(t *testing.T) {
	d := loadTestDirectory(t)

	_, ok := d.MatchLGAByName(1, "Surulere")
	assert.False(t, ok)
	_, ok = d.MatchLGAByName(1, "")
	assert.False(t, ok)
}
