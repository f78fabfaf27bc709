// Package pairings implements the `pairings` collection's LoLaN
// decoders: scanner-app barcode/RFID pairing readouts (legacy and
// current firmware), iButton readouts, BLE passive-scan extraction
// and the device tick-count bookkeeping that lets a scan be assigned a
// measurement time from a tick count alone.
package pairings

import (
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/ble"
	"github.com/indoorassets/telemetry-translator/internal/decode/common"
)

const (
	collection          = "pairings"
	locationsCollection = "locations"
)

// dummyScanCounter is a free-running counter shared across every device,
// wrapping at 256, used only to give the BLE scan's scanCounter
// attribute a changing value.
var dummyScanCounter uint32

// Decoder implements translate.Translator for the pairings collection.
type Decoder struct {
	device int64
	tick   *core.TickInterpolator
	rtls   *ble.RangeResolver

	bleAddrRssi core.TSDProcessFunc
	pairingCode core.TSDProcessFunc
	scanCounter core.TSDProcessFunc

	// currentNow holds the wall-clock time of the in-flight Translate
	// call, for attrSetterBleRtls's RTLS in-range bookkeeping, which
	// tracks real elapsed time rather than reconstructed measurement
	// time. Safe because Core.Process runs every Translate call to
	// completion before the next one starts.
	currentNow time.Time
}

func idString(device int64) string { return "tag." + strconv.FormatInt(device, 10) }

// New builds the pairings decoder for one device. tick is the shared,
// Core-owned tick-count interpolator; rtls is the shared BLE-RTLS
// range resolver (nil disables position-from-BLE output).
func New(tsd *core.TSDProcessor, tick *core.TickInterpolator, rtls *ble.RangeResolver, device int64) *Decoder {
	d := &Decoder{device: device, tick: tick, rtls: rtls}
	d.bleAddrRssi = tsd.New(d.attrSetterBleRtls(), core.CompoundID{Device: device, Field: "barCode"}, true, nil)
	d.pairingCode = tsd.New(attrSetter(device, "pairingCode"), core.CompoundID{Device: device, Field: "pairingCode"}, true, nil)
	d.scanCounter = tsd.New(attrSetter(device, "scanCounter"), core.CompoundID{Device: device, Field: "scanCounter"}, false, nil)
	return d
}

func (d *Decoder) Name() string { return "pairings" }

func attrSetter(device int64, attr string) core.Setter {
	id := idString(device)
	return func(value any, times core.Times) []core.Patch {
		return []core.Patch{{Coll: collection, ID: id, Attr: attr, Value: value, Times: times}}
	}
}

// attrSetterBleRtls sets barCode as usual, and additionally resolves a
// BLE-RTLS position from the "addr:rssi" string value and emits it as
// a locations.position patch.
func (d *Decoder) attrSetterBleRtls() core.Setter {
	id := idString(d.device)
	return func(value any, times core.Times) []core.Patch {
		out := []core.Patch{{Coll: collection, ID: id, Attr: "barCode", Value: value, Times: times}}

		if d.rtls == nil {
			return out
		}
		s, ok := value.(string)
		if !ok {
			return out
		}
		addr, rssi, ok := splitAddrRSSI(s)
		if !ok {
			return out
		}
		if pos, ok := d.rtls.Observe(d.currentNow, d.device, addr, rssi); ok {
			out = append(out, core.Patch{Coll: locationsCollection, ID: id, Attr: "position", Value: []float64{pos[0], pos[1], pos[2]}, Times: times})
		}
		return out
	}
}

// splitAddrRSSI parses the "aabbccddeeff:-62"-shaped value (12 hex
// digits, a colon, the RSSI) produced by bleScanExtract into its
// address and RSSI parts.
func splitAddrRSSI(s string) (addr string, rssi int, ok bool) {
	if len(s) < 14 || s[12] != ':' {
		return "", 0, false
	}
	addr = s[:12]
	n, err := strconv.Atoi(s[13:])
	if err != nil {
		return "", 0, false
	}
	return addr, n, true
}

// bleScanExtract splits a raw BLE scan TSD payload (each sample's
// values a 3-element [x0, x1, x2] packed int triple) into the three
// derived TSD payloads: BLE address+RSSI
// string, scanned-device unique ID, and a free-running scan counter.
func bleScanExtract(payload core.TSDPayload) (addrRssi, uniqueID, scanCounter core.TSDPayload) {
	addrRssi = core.TSDPayload{Timestamp: payload.Timestamp}
	uniqueID = core.TSDPayload{Timestamp: payload.Timestamp}
	scanCounter = core.TSDPayload{Timestamp: payload.Timestamp}

	for _, sample := range payload.Data {
		items, ok := common.AsSlice(sample.Values)
		if !ok || len(items) < 3 {
			continue
		}
		x0, ok0 := common.AsInt64(items[0])
		x1, ok1 := common.AsInt64(items[1])
		x2, ok2 := common.AsInt64(items[2])
		if !ok0 || !ok1 || !ok2 {
			continue
		}

		addr25 := hexBytes(x1, 0, 8, 16, 24)
		addr01 := hexBytes(x0, 0, 8)
		rssi := (x0 >> 16) & 0xFF
		if rssi > 127 {
			rssi -= 256
		}
		addrStr := addr25 + addr01 + ":" + strconv.FormatInt(rssi, 10)

		n := atomic.AddUint32(&dummyScanCounter, 1) % 256

		addrRssi.Data = append(addrRssi.Data, core.TSDSample{Timestamp: sample.Timestamp, Values: addrStr})
		uniqueID.Data = append(uniqueID.Data, core.TSDSample{Timestamp: sample.Timestamp, Values: x2})
		scanCounter.Data = append(scanCounter.Data, core.TSDSample{Timestamp: sample.Timestamp, Values: int64(n)})
	}

	return addrRssi, uniqueID, scanCounter
}

// hexBytes extracts one byte from v at each of shifts (low to high)
// and returns their concatenated lower-case hex encoding, matching
// binascii.hexlify(bytearray([(v >> s & 0xFF) for s in shifts])).
func hexBytes(v int64, shifts ...uint) string {
	buf := make([]byte, len(shifts))
	for i, s := range shifts {
		buf[i] = byte(v >> s & 0xFF)
	}
	return hex.EncodeToString(buf)
}

// Translate implements translate.Translator.
func (d *Decoder) Translate(now time.Time, data map[string]any, device int64, times core.Times) ([]core.Patch, error) {
	d.currentNow = now
	var patches []core.Patch

	if v, ok := data["data.scannerapp.scanout_c"]; ok {
		if obj, ok := common.AsMap(v); ok {
			patches = append(patches, directScanout(device, obj,
				"data.scannerapp.scandata_single", "data.scannerapp.scan_cnt", "data.scannerapp.scan_associated_num",
				times)...)
		}
	}

	if v, ok := data["scanstatus.scannerapp.scanout_c"]; ok {
		if obj, ok := common.AsMap(v); ok {
			newTimes := d.measTimeCompute(obj, times)
			patches = append(patches, directScanout(device, obj,
				"scanstatus.scannerapp.scandata_single", "scanstatus.scannerapp.scan_cnt", "scanstatus.scannerapp.scan_associated_num",
				newTimes)...)
		}
	}

	if v, ok := data["status.ibutton.out_c"]; ok {
		if obj, ok := common.AsMap(v); ok {
			id := idString(device)
			if serial, ok := obj["status.ibutton.serial"]; ok {
				s, _ := common.AsString(serial)
				patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "barCode", Value: s, Times: times})
			}
			if seq, ok := obj["status.ibutton.seq"]; ok {
				n, _ := common.AsInt64(seq)
				patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "scanCounter", Value: n, Times: times})
			}
		}
	}

	if v, ok := data["status.blescandata_tsd"]; ok {
		if payload, ok := common.ParseTSDPayload(v); ok {
			addrRssi, uniqueID, scanCounter := bleScanExtract(payload)
			patches = append(patches, d.bleAddrRssi(now, addrRssi, times)...)
			patches = append(patches, d.pairingCode(now, uniqueID, times)...)
			patches = append(patches, d.scanCounter(now, scanCounter, times)...)
		}
	}

	if v, ok := data["status.general.tick_count"]; ok {
		if tick, ok := common.AsInt64(v); ok && times.Measurement != nil {
			d.tick.Observe(device, *times.Measurement, tick)
		}
	}

	return patches, nil
}

// directScanout implements the non-TSD "old/new firmware" scanout_c
// branches: barCode/scanCounter/pairingCode lifted straight out of the
// nested object under their respective LoLaN sub-keys.
func directScanout(device int64, obj map[string]any, barCodeKey, scanCntKey, assocKey string, times core.Times) []core.Patch {
	id := idString(device)
	var out []core.Patch
	if v, ok := obj[barCodeKey]; ok {
		out = append(out, core.Patch{Coll: collection, ID: id, Attr: "barCode", Value: v, Times: times})
	}
	if v, ok := obj[scanCntKey]; ok {
		out = append(out, core.Patch{Coll: collection, ID: id, Attr: "scanCounter", Value: v, Times: times})
	}
	if v, ok := obj[assocKey]; ok {
		out = append(out, core.Patch{Coll: collection, ID: id, Attr: "pairingCode", Value: v, Times: times})
	}
	return out
}

// measTimeCompute reconstructs a measurement time from the tag's tick
// count when the container carries a "scan_time" tick, via the
// two-point tick interpolator. The result replaces any measurement
// time the BDCL gave; if interpolation is not possible, the
// measurement slot is cleared.
func (d *Decoder) measTimeCompute(obj map[string]any, times core.Times) core.Times {
	scanTimeRaw, ok := obj["scanstatus.scannerapp.scan_time"]
	if !ok {
		return times
	}
	scanTime, ok := common.AsInt64(scanTimeRaw)
	if !ok {
		return times
	}

	newTimes := times.Clone()
	if measTime, ok := d.tick.Interpolate(d.device, scanTime); ok {
		newTimes.Measurement = core.Int64Ptr(measTime)
	} else {
		newTimes.Measurement = nil
	}
	return newTimes
}
