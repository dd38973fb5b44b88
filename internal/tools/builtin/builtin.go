// Package builtin provides the tools the loop depends on: completion
// signaling, plan-mode exit, subagent spawning, shell execution, and file
// operations.
package builtin

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// mustSchema reflects a JSON Schema from an argument struct. Tool parameter
// structs are flat, so inlined reflection without references keeps the
// schemas provider-friendly.
func mustSchema(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		panic("builtin: reflect tool schema: " + err.Error())
	}
	return data
}

// decodeArgs unmarshals call arguments into the typed struct.
func decodeArgs(raw json.RawMessage, out any) error {
	return json.Unmarshal(raw, out)
}
