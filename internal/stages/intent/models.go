// internal/stages/intent/models.go
package intent

import "car-advisor/internal/common/validation"

var intentSchema = validation.MustCompile("search-intent", `{
	"type": "object",
	"required": ["primaryFocus"],
	"properties": {
		"country":      {"type": ["string", "null"]},
		"primaryFocus": {"type": "string"},
		"constraints": {
			"type": ["object", "null"],
			"properties": {
				"budget":    {"type": ["string", "number", "null"]},
				"mustHave":  {"type": ["array", "null"], "items": {"type": "string"}},
				"preferred": {"type": ["array", "null"], "items": {"type": "string"}}
			}
		},
		"interestingProperties": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`)
