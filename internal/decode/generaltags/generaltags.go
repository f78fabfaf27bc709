// Package generaltags implements the `generalTags` collection's LoLaN
// decoders: battery, power, temperature and accelerometer/distance/
// pressure TSD fields.
package generaltags

import (
	"strconv"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/common"
)

const collection = "generalTags"

func idString(device int64) string { return "tag." + strconv.FormatInt(device, 10) }

// Decoder implements translate.Translator for the generalTags
// collection.
type Decoder struct {
	tsd    *core.TSDProcessor
	device int64

	distance core.TSDProcessFunc
	pressure core.TSDProcessFunc
}

// New builds the generalTags decoder for one device.
func New(tsd *core.TSDProcessor, device int64) *Decoder {
	d := &Decoder{tsd: tsd, device: device}
	d.distance = tsd.New(attrSetter(device, "distanceM"), core.CompoundID{Device: device, Field: "distanceM"}, true, func(v any) any {
		f, ok := common.AsFloat(v)
		if !ok {
			return v
		}
		return f / 1000
	})
	d.pressure = tsd.New(attrSetter(device, "pressurePa"), core.CompoundID{Device: device, Field: "pressurePa"}, true, nil)
	return d
}

func (d *Decoder) Name() string { return "generaltags" }

func attrSetter(device int64, attr string) core.Setter {
	id := idString(device)
	return func(value any, times core.Times) []core.Patch {
		return []core.Patch{{Coll: collection, ID: id, Attr: attr, Value: value, Times: times}}
	}
}

// chargingStatus decodes the battery-charging enum into the two
// booleans DCM expects (S1): 1 -> (true, true), 2 -> (true, false),
// anything else -> (false, false).
func chargingStatus(value any) (externalPowerAvailable, isCharging bool) {
	n, ok := common.AsInt64(value)
	if !ok {
		return false, false
	}
	switch n {
	case 1:
		return true, true
	case 2:
		return true, false
	default:
		return false, false
	}
}

// accelTransform scales a raw accelerometer triple by 40/2^databits,
// assuming g as 10 m/s^2 (generaltags_v2.py accelTransform).
func accelTransform(databits int64) func(any) any {
	mul := 40.0 / float64(int64(1)<<uint(databits))
	return func(raw any) any {
		items, ok := common.AsSlice(raw)
		if !ok {
			return raw
		}
		out := make([]float64, 0, len(items))
		for _, it := range items {
			f, ok := common.AsFloat(it)
			if !ok {
				return raw
			}
			out = append(out, f*mul)
		}
		return out
	}
}

// Translate implements translate.Translator.
//
// The LoLaN catalogue lists "status.lastaccel.acc_raw_packed" as
// "TSD or xyz triple", but the original translator's internal check
// for the TSD variant inspects sibling keys rather than the value of
// the registered key itself — an inconsistency in the source (see
// DESIGN.md). Here the value of "status.lastaccel.acc_raw_packed" is
// itself a small object carrying "databits" plus either a "tsd"
// sub-payload or an "x"/"y"/"z" triple, which preserves both shapes
// the catalogue describes under one well-defined key.
func (d *Decoder) Translate(now time.Time, data map[string]any, device int64, times core.Times) ([]core.Patch, error) {
	var patches []core.Patch
	id := idString(device)

	if v, ok := data["status.battery.level"]; ok {
		patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "batteryVoltage", Value: v, Times: times})
	}

	if v, ok := data["status.battery.charging"]; ok {
		ext, charging := chargingStatus(v)
		patches = append(patches,
			core.Patch{Coll: collection, ID: id, Attr: "externalPowerAvailable", Value: ext, Times: times},
			core.Patch{Coll: collection, ID: id, Attr: "isCharging", Value: charging, Times: times},
		)
	}

	if v, ok := data["standard.power.battery_voltage"]; ok {
		patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "batteryVoltage", Value: v, Times: times})
	}

	if v, ok := data["standard.power.external_voltage"]; ok {
		patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "externalVoltage", Value: v, Times: times})
	}

	if v, ok := data["status.temperature"]; ok {
		patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "temperatureC", Value: v, Times: times})
	}

	if v, ok := data["status.lastaccel.acc_raw_packed"]; ok {
		if obj, ok := common.AsMap(v); ok {
			databits, _ := common.AsInt64(obj["databits"])
			if tsdRaw, ok := obj["tsd"]; ok {
				if payload, ok := common.ParseTSDPayload(tsdRaw); ok {
					accel := d.tsd.New(attrSetter(device, "accelerometerA"), core.CompoundID{Device: device, Field: "accelerometerA"}, true, accelTransform(databits))
					patches = append(patches, accel(now, payload, times)...)
				}
			} else if x, xok := obj["x"]; xok {
				y, yok := obj["y"]
				z, zok := obj["z"]
				if yok && zok {
					transformed := accelTransform(databits)([]any{x, y, z})
					patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "accelerometerA", Value: transformed, Times: times})
				}
			}
		}
	}

	if v, ok := data["status.distance_tsd"]; ok {
		if payload, ok := common.ParseTSDPayload(v); ok {
			patches = append(patches, d.distance(now, payload, times)...)
		}
	}

	if v, ok := data["status.pressure_tsd"]; ok {
		if payload, ok := common.ParseTSDPayload(v); ok {
			patches = append(patches, d.pressure(now, payload, times)...)
		}
	}

	return patches, nil
}
