// Package common holds the small parsing helpers every per-domain
// decoder needs to pull typed values out of an inbound message's
// data map, which arrives as the untyped map[string]any
// encoding/json produces. None of this is domain logic; it exists so
// the decoders in internal/decode/* stay readable.
package common

import "github.com/indoorassets/telemetry-translator/internal/core"

// AsFloat coerces v (a float64 as produced by encoding/json, or an
// int/int64) to a float64. json.Number is not accepted.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsInt64 coerces v to an int64, truncating any fractional part.
func AsInt64(v any) (int64, bool) {
	f, ok := AsFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// AsString coerces v to a string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool coerces v to a bool.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsMap asserts v is a JSON object.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// AsSlice asserts v is a JSON array.
func AsSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

var unitByName = map[string]core.TSDUnit{
	"picoseconds":  core.UnitPicoseconds,
	"nanoseconds":  core.UnitNanoseconds,
	"microseconds": core.UnitMicroseconds,
	"milliseconds": core.UnitMilliseconds,
	"seconds":      core.UnitSeconds,
	"minutes":      core.UnitMinutes,
}

var kindByName = map[string]core.TSDKind{
	"absolute":          core.TSDAbsolute,
	"relative":          core.TSDRelative,
	"relative-reversed": core.TSDRelativeReversed,
}

// ParseTSDPayload decodes raw (the value of a recognized LoLaN key)
// into a core.TSDPayload, shaped as:
//
//	{"timestamp": {"kind": "...", "unit": "..."}, "data": [{"timestamp": N, "values": ...}, ...]}
//
// The "timestamp" descriptor is optional; if absent, the returned
// payload has a nil Timestamp (bare values, no reconstruction).
func ParseTSDPayload(raw any) (core.TSDPayload, bool) {
	obj, ok := AsMap(raw)
	if !ok {
		return core.TSDPayload{}, false
	}

	rawData, ok := AsSlice(obj["data"])
	if !ok {
		return core.TSDPayload{}, false
	}

	payload := core.TSDPayload{}

	if rawTs, ok := AsMap(obj["timestamp"]); ok {
		kindStr, _ := AsString(rawTs["kind"])
		unitStr, _ := AsString(rawTs["unit"])
		kind, kindOK := kindByName[kindStr]
		unit, unitOK := unitByName[unitStr]
		if kindOK && unitOK {
			payload.Timestamp = &core.TSDTimestamp{Kind: kind, Unit: unit}
		}
	}

	samples := make([]core.TSDSample, 0, len(rawData))
	for _, item := range rawData {
		entry, ok := AsMap(item)
		if !ok {
			continue
		}
		ts, _ := AsFloat(entry["timestamp"])
		samples = append(samples, core.TSDSample{Timestamp: ts, Values: entry["values"]})
	}
	payload.Data = samples

	return payload, true
}
