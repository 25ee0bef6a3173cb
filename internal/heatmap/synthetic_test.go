package heatmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRegionsCountScalesWithScore(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		score   float64
		premium bool
		want    int
	}{
		{0, false, 3},
		{45, false, 5},
		{90, false, 7},
		{0, true, 8},
		{90, true, 17},
	}

	for _, tt := range tests {
		got := generateRegions(640, 480, tt.score, tt.premium, rng)
		assert.Len(t, got, tt.want, "score=%v premium=%v", tt.score, tt.premium)
	}
}

func TestGenerateRegionsIntensityBands(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for _, r := range generateRegions(640, 480, 85, false, rng) {
		assert.Equal(t, "high", r.Band)
		assert.GreaterOrEqual(t, r.Intensity, 0.8)
	}
	for _, r := range generateRegions(640, 480, 55, false, rng) {
		assert.Equal(t, "medium", r.Band)
	}
	for _, r := range generateRegions(640, 480, 20, false, rng) {
		assert.Equal(t, "low", r.Band)
	}
}

func TestFacialRegionsFixedFeatureSet(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	regions := facialRegions(640, 480, 80, rng)
	assert.Len(t, regions, 5)
	for _, r := range regions {
		assert.Equal(t, "facial", r.Band)
		assert.GreaterOrEqual(t, r.Intensity, 0.7)
	}
}

func TestCoverage(t *testing.T) {
	regions := []region{
		{W: 10, H: 10},
		{W: 20, H: 5},
	}
	assert.Equal(t, 2.0, coverage(regions, 100, 100))
	assert.Zero(t, coverage(regions, 0, 0))
}
