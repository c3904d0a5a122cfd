package tools

import "fmt"

// validateArgs checks decoded arguments against the tool's parameter
// schema. It runs before the handler so bad input never reaches I/O.
// Supported keywords: required, properties with type and enum.
func validateArgs(toolName string, schema, args map[string]any) *InvalidArgumentError {
	if schema == nil {
		return nil
	}
	required, _ := schema["required"].([]any)
	for _, r := range required {
		field, _ := r.(string)
		if field == "" {
			continue
		}
		if _, ok := args[field]; !ok {
			return &InvalidArgumentError{Tool: toolName, Field: field, Reason: "required field missing"}
		}
	}
	props, _ := schema["properties"].(map[string]any)
	for field, raw := range props {
		value, ok := args[field]
		if !ok {
			continue
		}
		prop, _ := raw.(map[string]any)
		if prop == nil {
			continue
		}
		if typ, _ := prop["type"].(string); typ != "" {
			if !matchesType(value, typ) {
				return &InvalidArgumentError{
					Tool:   toolName,
					Field:  field,
					Reason: fmt.Sprintf("expected %s, got %T", typ, value),
				}
			}
		}
		if enum, _ := prop["enum"].([]any); len(enum) > 0 {
			if !inEnum(value, enum) {
				return &InvalidArgumentError{
					Tool:   toolName,
					Field:  field,
					Reason: fmt.Sprintf("value %v not allowed", value),
				}
			}
		}
	}
	return nil
}

func matchesType(value any, typ string) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		if ok {
			return true
		}
		_, ok = value.(int)
		return ok
	case "integer":
		switch v := value.(type) {
		case int:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if value == e {
			return true
		}
	}
	return false
}
