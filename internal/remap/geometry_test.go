package remap_test

import (
	"testing"

	"github.com/nagamine-git/way-thumbsense/internal/remap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(max int32) remap.DeviceGeometry {
	return remap.DeviceGeometry{
		X: remap.AxisBounds{Min: 0, Max: max},
		Y: remap.AxisBounds{Min: 0, Max: max},
	}
}

func TestNewDeviceGeometry(t *testing.T) {
	t.Run("should accept increasing bounds", func(t *testing.T) {
		g, err := remap.NewDeviceGeometry(
			remap.AxisBounds{Min: -3678, Max: 3934},
			remap.AxisBounds{Min: -2478, Max: 2587},
		)

		require.NoError(t, err)
		assert.Equal(t, int32(7612), g.Width())
		assert.Equal(t, int32(5065), g.Height())
	})

	t.Run("should reject empty x axis", func(t *testing.T) {
		_, err := remap.NewDeviceGeometry(
			remap.AxisBounds{Min: 100, Max: 100},
			remap.AxisBounds{Min: 0, Max: 1000},
		)

		assert.ErrorIs(t, err, remap.ErrInvalidBounds)
	})

	t.Run("should reject inverted y axis", func(t *testing.T) {
		_, err := remap.NewDeviceGeometry(
			remap.AxisBounds{Min: 0, Max: 1000},
			remap.AxisBounds{Min: 1000, Max: 0},
		)

		assert.ErrorIs(t, err, remap.ErrInvalidBounds)
	})
}

func TestIsExcluded(t *testing.T) {
	g := square(1000)

	t.Run("no margins exclude nothing", func(t *testing.T) {
		zones := remap.NoExclusion()

		assert.False(t, g.IsExcluded(zones, 500, 500))
		assert.False(t, g.IsExcluded(zones, 0, 0))
		assert.False(t, g.IsExcluded(zones, 1000, 1000))
	})

	t.Run("ten percent on every edge", func(t *testing.T) {
		zones := remap.ExclusionZones{Top: 10, Bottom: 10, Left: 10, Right: 10}

		assert.False(t, g.IsExcluded(zones, 500, 500))
		assert.True(t, g.IsExcluded(zones, 50, 500), "left")
		assert.True(t, g.IsExcluded(zones, 950, 500), "right")
		assert.True(t, g.IsExcluded(zones, 500, 50), "top")
		assert.True(t, g.IsExcluded(zones, 500, 950), "bottom")
	})

	t.Run("thresholds are inclusive of the active zone", func(t *testing.T) {
		zones := remap.ExclusionZones{Top: 10, Bottom: 10, Left: 10, Right: 10}

		assert.False(t, g.IsExcluded(zones, 100, 100))
		assert.False(t, g.IsExcluded(zones, 900, 900))
		assert.True(t, g.IsExcluded(zones, 99, 500))
		assert.True(t, g.IsExcluded(zones, 901, 500))
	})

	t.Run("percentages use the axis maximum even with a negative minimum", func(t *testing.T) {
		g := remap.DeviceGeometry{
			X: remap.AxisBounds{Min: -1000, Max: 1000},
			Y: remap.AxisBounds{Min: -1000, Max: 1000},
		}
		zones := remap.ExclusionZones{Left: 10}

		// 閾値は 1000 * 10 / 100 = 100
		assert.True(t, g.IsExcluded(zones, 99, 0))
		assert.False(t, g.IsExcluded(zones, 100, 0))
	})

	t.Run("negative margins disable the edge", func(t *testing.T) {
		zones := remap.ExclusionZones{Top: -5, Bottom: -5, Left: -5, Right: -5}

		assert.False(t, g.IsExcluded(zones, -10, -10))
		assert.False(t, g.IsExcluded(zones, 1010, 1010))
	})

	t.Run("overlapping margins exclude the whole surface", func(t *testing.T) {
		zones := remap.ExclusionZones{Left: 60, Right: 60}

		for _, x := range []int32{0, 250, 500, 599, 600, 750, 1000} {
			assert.True(t, g.IsExcluded(zones, x, 500), "x=%d", x)
		}
	})

	t.Run("margins over one hundred exclude the whole surface", func(t *testing.T) {
		zones := remap.ExclusionZones{Top: 150}

		assert.True(t, g.IsExcluded(zones, 500, 1000))
	})
}

func TestIsExcludedMonotonic(t *testing.T) {
	g := square(1000)
	edges := []struct {
		name string
		set  func(z *remap.ExclusionZones, v float64)
	}{
		{"top", func(z *remap.ExclusionZones, v float64) { z.Top = v }},
		{"bottom", func(z *remap.ExclusionZones, v float64) { z.Bottom = v }},
		{"left", func(z *remap.ExclusionZones, v float64) { z.Left = v }},
		{"right", func(z *remap.ExclusionZones, v float64) { z.Right = v }},
	}
	base := remap.ExclusionZones{Top: 5, Bottom: 7, Left: 3, Right: 11}

	for _, edge := range edges {
		t.Run(edge.name, func(t *testing.T) {
			for pct := 0.0; pct < 100; pct += 2.5 {
				smaller := base
				larger := base
				edge.set(&smaller, pct)
				edge.set(&larger, pct+2.5)

				for x := int32(0); x <= 1000; x += 25 {
					for y := int32(0); y <= 1000; y += 25 {
						if g.IsExcluded(smaller, x, y) {
							assert.True(t, g.IsExcluded(larger, x, y),
								"%s %.1f%% -> %.1f%% shrank at (%d, %d)", edge.name, pct, pct+2.5, x, y)
						}
					}
				}
			}
		})
	}
}
