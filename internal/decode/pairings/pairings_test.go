package pairings

import (
	"testing"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecoder(rtls *ble.RangeResolver) *Decoder {
	clock := &core.ClockSync{}
	latest := core.NewLatestRegistry()
	buffer := core.NewChunkBuffer(core.NewDedupWindow(), clock)
	tsd := core.NewTSDProcessorFactory(clock, latest, buffer, nil)
	tick := core.NewTickInterpolator()
	return New(tsd, tick, rtls, 9)
}

func findPatch(patches []core.Patch, attr string) (core.Patch, bool) {
	for _, p := range patches {
		if p.Attr == attr {
			return p, true
		}
	}
	return core.Patch{}, false
}

// Legacy firmware's scanout_c is a direct, non-TSD readout.
func TestLegacyScanoutDirect(t *testing.T) {
	d := newDecoder(nil)
	now := time.Unix(1_700_000_000, 0)

	data := map[string]any{
		"data.scannerapp.scanout_c": map[string]any{
			"data.scannerapp.scandata_single":      "BC123",
			"data.scannerapp.scan_cnt":             float64(4),
			"data.scannerapp.scan_associated_num":  "assoc-1",
		},
	}
	patches, err := d.Translate(now, data, 9, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	bc, ok := findPatch(patches, "barCode")
	require.True(t, ok)
	assert.Equal(t, "BC123", bc.Value)

	sc, ok := findPatch(patches, "scanCounter")
	require.True(t, ok)
	assert.Equal(t, float64(4), sc.Value)
}

// New-firmware scanout_c reconstructs measurement time from scan_time
// via the tick interpolator when two tick anchors are already known.
func TestNewFirmwareScanoutUsesMeasTimeCompute(t *testing.T) {
	d := newDecoder(nil)
	now := time.Unix(1_700_000_000, 0)

	d.tick.Observe(9, 1000, 10)
	d.tick.Observe(9, 2000, 20)

	data := map[string]any{
		"scanstatus.scannerapp.scanout_c": map[string]any{
			"scanstatus.scannerapp.scandata_single": "BC999",
			"scanstatus.scannerapp.scan_time":       float64(25),
		},
	}
	patches, err := d.Translate(now, data, 9, core.Times{})
	require.NoError(t, err)

	bc, ok := findPatch(patches, "barCode")
	require.True(t, ok)
	assert.Equal(t, "BC999", bc.Value)
	require.NotNil(t, bc.Times.Measurement)
	assert.Equal(t, int64(2500), *bc.Times.Measurement)
}

func TestIButtonReadout(t *testing.T) {
	d := newDecoder(nil)
	now := time.Unix(1_700_000_000, 0)

	data := map[string]any{
		"status.ibutton.out_c": map[string]any{
			"status.ibutton.serial": "ABCDEF",
			"status.ibutton.seq":    float64(7),
		},
	}
	patches, err := d.Translate(now, data, 9, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	bc, ok := findPatch(patches, "barCode")
	require.True(t, ok)
	assert.Equal(t, "ABCDEF", bc.Value)

	sc, ok := findPatch(patches, "scanCounter")
	require.True(t, ok)
	assert.Equal(t, int64(7), sc.Value)
}

// BLE passive-scan extraction splits one packed TSD sample into
// address+RSSI, unique id and scan counter attributes.
func TestBLEScanExtractSplitsIntoThreeAttributes(t *testing.T) {
	d := newDecoder(nil)
	now := time.Unix(1_700_000_000, 0)

	const x0 = int64(0xC66655) // rssi byte 0xC6 (-58), byte1 0x66, byte0 0x55
	const x1 = int64(0x11223344)
	const x2 = int64(999)

	data := map[string]any{
		"status.blescandata_tsd": map[string]any{
			"data": []any{
				map[string]any{"timestamp": float64(0), "values": []any{float64(x0), float64(x1), float64(x2)}},
			},
		},
	}
	patches, err := d.Translate(now, data, 9, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	bc, ok := findPatch(patches, "barCode")
	require.True(t, ok)
	assert.Equal(t, "443322115566:-58", bc.Value)

	pc, ok := findPatch(patches, "pairingCode")
	require.True(t, ok)
	assert.Equal(t, x2, pc.Value)

	_, ok = findPatch(patches, "scanCounter")
	require.True(t, ok)
}

// When a BLE-RTLS resolver is wired in and its zone resolves, the BLE
// scan also emits a locations position patch.
func TestBLEScanResolvesRTLSPosition(t *testing.T) {
	rtls := ble.NewRangeResolver()
	rtls.SetConfig(ble.Config{
		Beacons: []ble.Beacon{
			{BLEAddress: "443322115566", SecondaryID: "b1", InRangeRSSI: -90, ReferencePoint: [3]float64{1, 2, 3}},
		},
		Zones: []ble.Zone{{Elements: []string{"b1"}}},
	})

	d := newDecoder(rtls)
	now := time.Unix(1_700_000_000, 0)

	const x0 = int64(0xC66655)
	const x1 = int64(0x11223344)
	data := map[string]any{
		"status.blescandata_tsd": map[string]any{
			"data": []any{
				map[string]any{"timestamp": float64(0), "values": []any{float64(x0), float64(x1), float64(1)}},
			},
		},
	}
	patches, err := d.Translate(now, data, 9, core.Times{Measurement: core.Int64Ptr(100)})
	require.NoError(t, err)

	pos, ok := findPatch(patches, "position")
	require.True(t, ok)
	assert.Equal(t, "locations", pos.Coll)
	assert.Equal(t, []float64{1, 2, 3}, pos.Value)
}

func TestTickCountObservedFeedsInterpolator(t *testing.T) {
	d := newDecoder(nil)
	now := time.Unix(1_700_000_000, 0)

	_, err := d.Translate(now, map[string]any{"status.general.tick_count": float64(10)}, 9, core.Times{Measurement: core.Int64Ptr(1000)})
	require.NoError(t, err)
	_, err = d.Translate(now, map[string]any{"status.general.tick_count": float64(20)}, 9, core.Times{Measurement: core.Int64Ptr(2000)})
	require.NoError(t, err)

	m, ok := d.tick.Interpolate(9, 25)
	require.True(t, ok)
	assert.Equal(t, int64(2500), m)
}
