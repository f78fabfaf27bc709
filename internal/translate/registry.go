// Package translate holds the translator plugin contract that feeds
// the TSD processor and the direct setters in internal/core.
package translate

import (
	"fmt"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/pkg/log"
)

// Translator examines an inbound data map for its recognized LoLaN
// keys and yields the patches produced by each recognized key's bound
// emitter.
type Translator interface {
	// Name identifies the translator for error logging.
	Name() string
	// Translate returns the patches produced by every recognized key
	// present in data, in decoder-declaration order (§5). now is the
	// wall-clock time of this Core.Process call, used for the TSD
	// processor's age gates; it is not derived from times.
	Translate(now time.Time, data map[string]any, device int64, times core.Times) ([]core.Patch, error)
}

// Registry holds the set of registered translators and invokes them
// in declaration order on every inbound message (§4.7).
type Registry struct {
	translators []Translator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a translator. Order of registration is the order
// patches from different translators are enqueued (§5).
func (r *Registry) Register(t Translator) {
	r.translators = append(r.translators, t)
}

// Dispatch invokes every registered translator against data, in
// order, concatenating their patch lists. A translator that returns
// an error, or panics, is logged and skipped; the remaining
// translators still run (§4.7, §7 item 4).
func (r *Registry) Dispatch(now time.Time, data map[string]any, device int64, times core.Times) []core.Patch {
	var out []core.Patch
	for _, t := range r.translators {
		patches := r.runOne(now, t, data, device, times)
		out = append(out, patches...)
	}
	return out
}

func (r *Registry) runOne(now time.Time, t Translator, data map[string]any, device int64, times core.Times) (patches []core.Patch) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[CORE] translator %q panicked: %v", t.Name(), rec)
			patches = nil
		}
	}()

	p, err := t.Translate(now, data, device, times)
	if err != nil {
		log.Errorf("[CORE] translator %q failed: %s", t.Name(), err)
		return nil
	}
	return p
}

// MissingKeysError is a convenience for translators that want to
// report a malformed payload for one of their recognized keys without
// aborting the whole Translate call; the registry logs it the same as
// any other decoder error.
type MissingKeysError struct {
	Translator string
	Key        string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("translator %s: malformed payload for key %s", e.Translator, e.Key)
}
