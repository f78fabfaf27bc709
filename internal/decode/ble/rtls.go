// Package ble implements the BLE-RTLS range resolver: given a BLE
// beacon address and RSSI, and a hot-reloaded zone configuration, it
// decides whether a tag is within a defined zone and, if so, a
// position estimate for that zone, approximated as a centroid of the
// contributing beacons' reference points.
package ble

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Beacon is one entry of the RTLS config's beacon list.
type Beacon struct {
	BLEAddress      string    `json:"bleAddress"`
	SecondaryID     string    `json:"secondaryId"`
	InRangeRSSI     int       `json:"inRangeRssiLimit"`
	ReferencePoint  [3]float64 `json:"referencePoint"`
}

// Zone is one entry of the RTLS config's zone list: a position is
// reported for the zone once every one of its constituent beacons has
// been seen in range within InRangeTimeout.
type Zone struct {
	Elements []string `json:"elements"`
}

// Config is the BLE-RTLS JSON document read from a fixed path (§6).
type Config struct {
	Beacons []Beacon `json:"bleBeacons"`
	Zones   []Zone   `json:"zones"`
}

// InRangeTimeout is how long a beacon observation remains valid for
// zone membership purposes (BLERTLS_INRANGE_TIMEOUT in the source).
const InRangeTimeout = 3 * time.Second

// RangeResolver tracks, per scanning device, which beacons were last
// seen in range and resolves zone positions from a live-reloaded
// Config.
type RangeResolver struct {
	mu           sync.RWMutex
	cfg          Config
	lastInRange  map[int64]map[string]time.Time
}

// NewRangeResolver returns a resolver with an empty configuration;
// call SetConfig (typically from a file watcher) to populate it.
func NewRangeResolver() *RangeResolver {
	return &RangeResolver{lastInRange: make(map[int64]map[string]time.Time)}
}

// SetConfig replaces the live configuration, e.g. after a reload.
func (r *RangeResolver) SetConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// LoadConfigJSON parses raw into a Config and installs it.
func (r *RangeResolver) LoadConfigJSON(raw []byte) error {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	r.SetConfig(cfg)
	return nil
}

// Observe records addr/rssi as seen for device at now, and returns a
// zone position estimate if, as a result, some zone now has every
// constituent beacon in range. ok is false if no zone became
// resolvable.
func (r *RangeResolver) Observe(now time.Time, device int64, addr string, rssi int) (position [3]float64, ok bool) {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	if len(cfg.Beacons) == 0 {
		return position, false
	}

	addr = strings.ToUpper(addr)

	var matched *Beacon
	for i := range cfg.Beacons {
		if strings.ToUpper(cfg.Beacons[i].BLEAddress) == addr {
			matched = &cfg.Beacons[i]
			break
		}
	}
	if matched == nil {
		return position, false
	}

	r.mu.Lock()
	seen, exists := r.lastInRange[device]
	if !exists {
		seen = make(map[string]time.Time)
		r.lastInRange[device] = seen
	}
	if rssi >= matched.InRangeRSSI {
		seen[matched.SecondaryID] = now
	}
	r.mu.Unlock()

	for _, z := range cfg.Zones {
		if zoneInRange(seen, z, now) {
			return centroid(cfg.Beacons, z), true
		}
	}
	return position, false
}

func zoneInRange(seen map[string]time.Time, z Zone, now time.Time) bool {
	if len(z.Elements) == 0 {
		return false
	}
	for _, el := range z.Elements {
		t, ok := seen[el]
		if !ok || now.Sub(t) > InRangeTimeout {
			return false
		}
	}
	return true
}

// centroid averages the reference points of a zone's constituent
// beacons, needing no geometry library.
func centroid(beacons []Beacon, z Zone) [3]float64 {
	var sum [3]float64
	n := 0
	for _, el := range z.Elements {
		for _, b := range beacons {
			if b.SecondaryID == el {
				sum[0] += b.ReferencePoint[0]
				sum[1] += b.ReferencePoint[1]
				sum[2] += b.ReferencePoint[2]
				n++
				break
			}
		}
	}
	if n == 0 {
		return [3]float64{}
	}
	return [3]float64{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
}
