// internal/stages/suggest/models.go
package suggest

import (
	"fmt"

	"car-advisor/internal/common/validation"
)

const candidateSchema = `{
	"type": "object",
	"required": ["make", "model"],
	"properties": {
		"make":          {"type": "string", "minLength": 1},
		"model":         {"type": "string", "minLength": 1},
		"year":          {"type": ["string", "number", "null"]},
		"reason":        {"type": ["string", "null"]},
		"percentage":    {"type": ["string", "number", "null"]},
		"preciseModel":  {"type": ["string", "null"]},
		"configuration": {"type": ["string", "null"]}
	}
}`

var suggestionsSchema = validation.MustCompile("suggestions", fmt.Sprintf(`{
	"type": "object",
	"required": ["choices"],
	"properties": {
		"analysis":   {"type": ["string", "null"]},
		"userMarket": {"type": ["string", "null"]},
		"choices":    {"type": "array", "items": %[1]s},
		"pinnedCars": {"type": ["array", "null"], "items": %[1]s}
	}
}`, candidateSchema))
