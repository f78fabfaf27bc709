// Package twr implements the `twr` (time-of-flight ranging) collection's
// LoLaN decoder: distance-to-anchor readings for up to nine anchors.
package twr

import (
	"fmt"
	"strconv"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode/common"
)

const collection = "twr"

// maxTargets is the fixed number of anchor slots the firmware reports
// (target_1 .. target_9 in twr_v2.py).
const maxTargets = 9

// Decoder implements translate.Translator for the twr collection.
type Decoder struct {
	device int64
}

// New builds the twr decoder for one device.
func New(device int64) *Decoder {
	return &Decoder{device: device}
}

func (d *Decoder) Name() string { return "twr" }

// Translate implements translate.Translator. The firmware emits one
// "status.twr.inform_c" message carrying, for each present anchor
// index i in 1..9, a "target_i" anchor id and a "result_i" raw
// millimetre distance; twr_v2.py divides the raw result by 1000.0 to
// get metres.
func (d *Decoder) Translate(now time.Time, data map[string]any, device int64, times core.Times) ([]core.Patch, error) {
	v, ok := data["status.twr.inform_c"]
	if !ok {
		return nil, nil
	}
	obj, ok := common.AsMap(v)
	if !ok {
		return nil, fmt.Errorf("twr: malformed payload for status.twr.inform_c")
	}

	var patches []core.Patch
	id := "tag." + strconv.FormatInt(device, 10)

	for i := 1; i <= maxTargets; i++ {
		targetKey := "target_" + strconv.Itoa(i)
		resultKey := "result_" + strconv.Itoa(i)

		targetRaw, hasTarget := obj[targetKey]
		resultRaw, hasResult := obj[resultKey]
		if !hasTarget || !hasResult {
			continue
		}

		target, tok := common.AsInt64(targetRaw)
		result, rok := common.AsFloat(resultRaw)
		if !tok || !rok {
			continue
		}

		patches = append(patches, core.Patch{
			Coll: collection,
			ID:   id,
			Attr: "anchor." + strconv.FormatInt(target, 10) + ".distanceM",
			Value: result / 1000.0,
			Times: times,
		})
	}

	return patches, nil
}
