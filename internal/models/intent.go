// internal/models/intent.go
package models

type Constraints struct {
	Budget    Text     `json:"budget,omitempty"`
	MustHave  []string `json:"mustHave,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
}

// SearchIntent is produced once per stage invocation and only read afterwards.
type SearchIntent struct {
	Country               string      `json:"country,omitempty"`
	PrimaryFocus          string      `json:"primaryFocus"`
	Constraints           Constraints `json:"constraints"`
	InterestingProperties []string    `json:"interestingProperties,omitempty"`
}
