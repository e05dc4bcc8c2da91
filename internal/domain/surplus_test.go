package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		ml   int
		want SurplusLevel
	}{
		{0, LevelCriticalLow},
		{-20, LevelCriticalLow},
		{499, LevelCriticalLow},
		{500, LevelLow},
		{1499, LevelLow},
		{1500, LevelOptimal},
		{2999, LevelOptimal},
		{3000, LevelSurplus},
		{7999, LevelSurplus},
		{8000, LevelHighSurplus},
		{1 << 20, LevelHighSurplus},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.ml), "classify(%d)", c.ml)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Classify(-1000)
	for ml := -999; ml <= 10000; ml++ {
		cur := Classify(ml)
		require.GreaterOrEqual(t, int(cur), int(prev), "classify(%d) < classify(%d)", ml, ml-1)
		prev = cur
	}
}

func TestMatchingCutoffsStayIndependent(t *testing.T) {
	// 5000 ml is already "surplus" for display but not donor-worthy for matching.
	assert.Equal(t, LevelSurplus, Classify(DonorWorthyAboveMl))
	assert.Equal(t, LevelOptimal, Classify(NeedyBelowMl))
}

func TestSurplusLevel_JSON(t *testing.T) {
	b, err := json.Marshal(LevelHighSurplus)
	require.NoError(t, err)
	assert.Equal(t, `"high-surplus"`, string(b))

	var l SurplusLevel
	require.NoError(t, json.Unmarshal([]byte(`"critical-low"`), &l))
	assert.Equal(t, LevelCriticalLow, l)
	assert.Error(t, json.Unmarshal([]byte(`"plenty"`), &l))
}

func TestLevelCounts_Folding(t *testing.T) {
	var c LevelCounts
	for _, l := range []SurplusLevel{LevelCriticalLow, LevelLow, LevelOptimal, LevelSurplus, LevelHighSurplus} {
		c.Add(l)
	}
	assert.Equal(t, LevelCounts{Surplus: 2, Optimal: 1, Low: 1, Critical: 1}, c)
}

func TestSurplusLevel_Predicates(t *testing.T) {
	assert.True(t, LevelCriticalLow.IsShortage())
	assert.True(t, LevelLow.IsShortage())
	assert.False(t, LevelOptimal.IsShortage())
	assert.True(t, LevelSurplus.IsSurplus())
	assert.True(t, LevelHighSurplus.IsSurplus())
	assert.Equal(t, "unknown", SurplusLevel(9).String())
}
