package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://whiteout.ai/schemas/"

var (
	schemaOnce sync.Once
	schemaErr  error
	compiled   map[string]*jsonschema.Schema
)

// schemaFiles maps a message type to its schema file.
var schemaFiles = map[string]string{
	TypeHello: "hello.schema.json",
	TypeInput: "input.schema.json",
	TypeState: "state.schema.json",
}

func loadSchemas() {
	compiled = map[string]*jsonschema.Schema{}
	for typ, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		s, err := jsonschema.CompileString(schemaBase+name, string(b))
		if err != nil {
			schemaErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		compiled[typ] = s
	}
}

// Validate checks a raw message against the schema of msgType. Message
// types without a schema pass.
func Validate(msgType string, raw []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s := compiled[msgType]
	if s == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
