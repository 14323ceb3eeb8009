package session

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// validateResumeValue checks a resume value against the interrupt's JSON
// Schema. A nil or empty schema accepts any value. The value is
// round-tripped through JSON so Go types normalize to the forms the
// validator expects.
func validateResumeValue(schemaBytes json.RawMessage, value any) error {
	if len(schemaBytes) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal resume schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("resume.json", schemaDoc); err != nil {
		return fmt.Errorf("add resume schema: %w", err)
	}
	schema, err := c.Compile("resume.json")
	if err != nil {
		return fmt.Errorf("compile resume schema: %w", err)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode resume value: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return fmt.Errorf("decode resume value: %w", err)
	}

	return schema.Validate(normalized)
}
