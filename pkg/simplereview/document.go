package simplereview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// validateDocument checks that content is a JSON object and reports whether
// it also matches the script schema: a non-empty "name" and an "actions"
// array. Documents that are not JSON objects are rejected outright.
func validateDocument(content []byte) (schemaValid bool, err error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(content, &doc); err != nil {
		return false, fmt.Errorf("%w: script document must be a JSON object", ErrInvalidArgument)
	}

	var name string
	if raw, ok := doc["name"]; !ok || json.Unmarshal(raw, &name) != nil || strings.TrimSpace(name) == "" {
		return false, nil
	}
	var actions []json.RawMessage
	if raw, ok := doc["actions"]; !ok || json.Unmarshal(raw, &actions) != nil || actions == nil {
		return false, nil
	}
	return true, nil
}
