// Package locations implements the `locations` collection's LoLaN
// decoders: movement flag and GPS position (plain and extended).
package locations

import (
	"strconv"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/common"
)

const collection = "locations"

// Decoder implements translate.Translator for the locations
// collection.
type Decoder struct {
	gps   core.TSDProcessFunc
	gpsEx core.TSDProcessFunc
}

func idString(device int64) string { return "tag." + strconv.FormatInt(device, 10) }

// New builds the locations decoder for one device.
func New(tsd *core.TSDProcessor, device int64) *Decoder {
	id := idString(device)
	d := &Decoder{}
	d.gps = tsd.New(gpsSetter(id), core.CompoundID{Device: device, Field: "gpsPosition"}, true, gpsTransform)
	d.gpsEx = tsd.New(gpsExSetter(id), core.CompoundID{Device: device, Field: "__gpsEx"}, false, gpsTransformEx)
	return d
}

func (d *Decoder) Name() string { return "locations" }

func gpsSetter(id string) core.Setter {
	return func(value any, times core.Times) []core.Patch {
		return []core.Patch{{Coll: collection, ID: id, Attr: "gpsPosition", Value: value, Times: times}}
	}
}

func gpsExSetter(id string) core.Setter {
	return func(value any, times core.Times) []core.Patch {
		parts, ok := value.([3]any)
		if !ok {
			return nil
		}
		return []core.Patch{
			{Coll: collection, ID: id, Attr: "gpsPosition", Value: parts[0], Times: times},
			{Coll: collection, ID: id, Attr: "quality", Value: parts[1], Times: times},
			{Coll: collection, ID: id, Attr: "velocity", Value: parts[2], Times: times},
		}
	}
}

// gpsTransform converts [lat, long] from "degrees + 100*minutes" DMS
// notation (e.g. 4729.25 = 47deg29.25') into decimal degrees.
func gpsTransform(raw any) any {
	coords, ok := common.AsSlice(raw)
	if !ok || len(coords) < 2 {
		return raw
	}
	lat, latOK := common.AsFloat(coords[0])
	long, longOK := common.AsFloat(coords[1])
	if !latOK || !longOK {
		return raw
	}
	return []float64{dmsToDecimal(lat), dmsToDecimal(long)}
}

func dmsToDecimal(v float64) float64 {
	degrees := float64(int64(v) / 100)
	minutes := v - degrees*100
	return degrees + minutes/60
}

// gpsTransformEx converts the extended GPS TSD triple
// [lat, long, ex] into ([lat, long], quality, velocity), per
// locations_v2.py gps_transform_ex. lat/long use the
// degrees*10,000,000 fixed-point notation; ex packs HDOP*100 and
// speed (km/h) into one integer.
func gpsTransformEx(raw any) any {
	coords, ok := common.AsSlice(raw)
	if !ok || len(coords) < 3 {
		return raw
	}
	lat, _ := common.AsFloat(coords[0])
	long, _ := common.AsFloat(coords[1])
	ex, _ := common.AsInt64(coords[2])

	degreesLat := float64(int64(lat) / 10_000_000)
	minutesLat := lat - degreesLat*10_000_000
	degreesLong := float64(int64(long) / 10_000_000)
	minutesLong := long - degreesLong*10_000_000

	hdop := float64((ex>>8)&0xFFFF) / 100
	quality := 1.0
	if hdop > 1.0 {
		quality = 1.0 / hdop
	}
	velocityKmh := float64(ex & 0xFF)

	position := []float64{degreesLat + minutesLat/6_000_000, degreesLong + minutesLong/6_000_000}
	velocity := []float64{velocityKmh / 3.6, 0, 0}

	return [3]any{position, quality, velocity}
}

// Translate implements translate.Translator.
func (d *Decoder) Translate(now time.Time, data map[string]any, device int64, times core.Times) ([]core.Patch, error) {
	var patches []core.Patch
	id := idString(device)

	if v, ok := data["status.lastaccel.ismoving"]; ok {
		b, _ := common.AsBool(v)
		patches = append(patches, core.Patch{Coll: collection, ID: id, Attr: "isMoving", Value: b, Times: times})
	}

	for _, key := range []string{"status.gpsdata_tsd", "status.gps.gpsdata_tsd"} {
		if v, ok := data[key]; ok {
			if payload, ok := common.ParseTSDPayload(v); ok {
				patches = append(patches, d.gps(now, payload, times)...)
			}
		}
	}

	if v, ok := data["status.gps.gpsdata_ex_tsd"]; ok {
		if payload, ok := common.ParseTSDPayload(v); ok {
			patches = append(patches, d.gpsEx(now, payload, times)...)
		}
	}

	return patches, nil
}
