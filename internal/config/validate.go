package config

import (
	"encoding/json"

	"github.com/indoorassets/telemetry-translator/pkg/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate compiles schema and checks instance against it, aborting
// the process on any failure.
func Validate(schema string, instance json.RawMessage) {
	sch, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		log.Fatalf("config: compiling schema: %v", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := sch.Validate(v); err != nil {
		log.Fatalf("config: %v", err)
	}
}
