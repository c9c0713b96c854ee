package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWasteType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plastic", "plastic"},
		{"Plastics", "plastic"},
		{"E-Waste ", "ewaste"},
		{"electronics", "ewaste"},
		{"ELECTRONIC", "ewaste"},
		{"poly-thene", "polythene"},
		{"Papers", "paper"},
		{"metals", "metal"},
		{"Organics", "organic"},
		{"glass", "glass"},
		// Unmapped types pass through stripped, becoming new inventory keys.
		{"Textile", "textile"},
		{"tyres 2024", "tyres"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeWasteType(tc.in), "input %q", tc.in)
	}
}

func TestPointsForDropoff(t *testing.T) {
	assert.Equal(t, 50, PointsForDropoff("ewaste", 1))
	assert.Equal(t, 100, PointsForDropoff("E-Waste", 2))
	assert.Equal(t, 10, PointsForDropoff("plastic", 1))
	assert.Equal(t, 10, PointsForDropoff("polythene", 1))
	assert.Equal(t, 5, PointsForDropoff("glass", 1))
	assert.Equal(t, 5, PointsForDropoff("paper", 1))
	assert.Equal(t, 20, PointsForDropoff("metal", 1))
	assert.Equal(t, 3, PointsForDropoff("organic", 1))

	// Fractional quantities floor.
	assert.Equal(t, 25, PointsForDropoff("plastic", 2.5))
	assert.Equal(t, 7, PointsForDropoff("organic", 2.5))

	// Unknown types use the default rate.
	assert.Equal(t, 5, PointsForDropoff("textile", 1))
	assert.Equal(t, 12, PointsForDropoff("textile", 2.5))
}

func TestResolveFinalPayment(t *testing.T) {
	override := 42.5
	assert.Equal(t, 42.5, resolveFinalPayment(&override, 30, 20), "override wins")
	assert.Equal(t, 30.0, resolveFinalPayment(nil, 30, 20), "proposed price next")
	assert.Equal(t, 20.0, resolveFinalPayment(nil, 0, 20), "offered price is the fallback")
}
