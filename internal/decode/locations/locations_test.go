package locations

import (
	"testing"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecoder() *Decoder {
	clock := &core.ClockSync{}
	latest := core.NewLatestRegistry()
	buffer := core.NewChunkBuffer(core.NewDedupWindow(), clock)
	tsd := core.NewTSDProcessorFactory(clock, latest, buffer, nil)
	return New(tsd, 7)
}

func findPatch(patches []core.Patch, attr string) (core.Patch, bool) {
	for _, p := range patches {
		if p.Attr == attr {
			return p, true
		}
	}
	return core.Patch{}, false
}

func TestIsMovingFlag(t *testing.T) {
	d := newDecoder()
	now := time.Unix(1_700_000_000, 0)

	patches, err := d.Translate(now, map[string]any{"status.lastaccel.ismoving": true}, 7, core.Times{})
	require.NoError(t, err)

	p, ok := findPatch(patches, "isMoving")
	require.True(t, ok)
	assert.Equal(t, "locations", p.Coll)
	assert.Equal(t, "tag.7", p.ID)
	assert.Equal(t, true, p.Value)
}

// S2: DMS (degrees + 100*minutes) GPS coordinates convert to decimal
// degrees.
func TestGPSTransformDMSToDecimal(t *testing.T) {
	d := newDecoder()
	now := time.Unix(1_700_000_000, 0)

	data := map[string]any{
		"status.gpsdata_tsd": map[string]any{
			"data": []any{
				map[string]any{"timestamp": float64(0), "values": []any{float64(4729.25), float64(833.4)}},
			},
		},
	}
	patches, err := d.Translate(now, data, 7, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	p, ok := findPatch(patches, "gpsPosition")
	require.True(t, ok)
	coords, ok := p.Value.([]float64)
	require.True(t, ok)
	assert.InDelta(t, 47+29.25/60, coords[0], 1e-9)
	assert.InDelta(t, 8+33.4/60, coords[1], 1e-9)
}

// S2 (extended variant): gpsdata_ex_tsd decodes into gpsPosition,
// quality and velocity as three separate patches.
func TestGPSExTransformSplitsIntoThreePatches(t *testing.T) {
	d := newDecoder()
	now := time.Unix(1_700_000_000, 0)

	// lat/long in degrees*1e7 fixed point, ex packs hdop*100 in bits
	// 8-23 and speed km/h in the low byte.
	ex := int64(50)<<8 | int64(36) // hdop=0.5 (quality clamps to 1.0), 36 km/h
	data := map[string]any{
		"status.gps.gpsdata_ex_tsd": map[string]any{
			"data": []any{
				map[string]any{"timestamp": float64(0), "values": []any{float64(473000000), float64(83000000), float64(ex)}},
			},
		},
	}
	patches, err := d.Translate(now, data, 7, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	pos, ok := findPatch(patches, "gpsPosition")
	require.True(t, ok)
	quality, ok := findPatch(patches, "quality")
	require.True(t, ok)
	velocity, ok := findPatch(patches, "velocity")
	require.True(t, ok)

	assert.Equal(t, 1.0, quality.Value)
	vel, ok := velocity.Value.([]float64)
	require.True(t, ok)
	assert.InDelta(t, 36.0/3.6, vel[0], 1e-9)
	assert.NotNil(t, pos.Value)
}
