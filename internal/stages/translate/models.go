// internal/stages/translate/models.go
package translate

import "car-advisor/internal/common/validation"

var translatedCarSchema = validation.MustCompile("translated-car", `{
	"type": "object",
	"required": ["make", "model", "year"],
	"properties": {
		"make":               {"type": "string"},
		"model":              {"type": "string"},
		"year":               {"type": ["string", "number"]},
		"price":              {"type": ["string", "number", "null"]},
		"marketAvailability": {"type": ["string", "null"]},
		"type":               {"type": ["string", "null"]},
		"strengths":          {"type": ["array", "null"], "items": {"type": "string"}},
		"weaknesses":         {"type": ["array", "null"], "items": {"type": "string"}},
		"reason":             {"type": ["string", "null"]},
		"vehicleProperties":  {"type": ["object", "null"]}
	}
}`)
