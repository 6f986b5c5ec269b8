// internal/stages/elaborate/models.go
package elaborate

import "car-advisor/internal/common/validation"

// protectedFields are never taken from the elaboration reply.
var protectedFields = []string{"make", "model", "year", "pinned", "images"}

var elaborationSchema = validation.MustCompile("elaboration", `{
	"type": "object",
	"minProperties": 1,
	"properties": {
		"price":              {"type": ["string", "number", "null"]},
		"marketAvailability": {"type": ["string", "null"]},
		"type":               {"type": ["string", "null"]},
		"strengths":          {"type": ["array", "null"], "items": {"type": "string"}},
		"weaknesses":         {"type": ["array", "null"], "items": {"type": "string"}},
		"reason":             {"type": ["string", "null"]},
		"preciseModel":       {"type": ["string", "null"]},
		"configuration":      {"type": ["string", "null"]},
		"percentage":         {"type": ["string", "number", "null"]},
		"vehicleProperties": {
			"type": ["object", "null"],
			"additionalProperties": {
				"type": "object",
				"required": ["value"],
				"properties": {
					"label": {"type": ["string", "null"]},
					"value": {"type": ["string", "number", "boolean", "null"]}
				}
			}
		}
	}
}`)
