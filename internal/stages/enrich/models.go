// internal/stages/enrich/models.go
package enrich

import (
	"car-advisor/internal/common/validation"
	"car-advisor/internal/models"
)

type verdict struct {
	ModelConfidence float64 `json:"modelConfidence"`
	TextConfidence  float64 `json:"textConfidence"`
}

var verdictSchema = validation.MustCompile("image-verdict", `{
	"type": "object",
	"required": ["modelConfidence", "textConfidence"],
	"properties": {
		"modelConfidence": {"type": "number", "minimum": 0, "maximum": 1},
		"textConfidence":  {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// searchGroup is one distinct make-model pair and the candidates sharing it.
type searchGroup struct {
	query   string
	indexes []int
	images  []models.ImageRecord
}
