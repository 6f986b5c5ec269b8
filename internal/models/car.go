// internal/models/car.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Text is a string that tolerates the numbers and booleans models emit in string slots.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*t = Text(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		*t = Text(strconv.FormatBool(val))
	default:
		return fmt.Errorf("cannot use %s as text", string(b))
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Score is a 0-100 match percentage. Accepts 85, "85" and "85%".
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if b[0] != '"' {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*s = Score(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	str = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(str), "%"))
	if str == "" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q", str)
	}
	*s = Score(f)
	return nil
}

type VehicleProperty struct {
	Label string `json:"label"`
	Value Text   `json:"value"`
}

// VehicleCandidate is one recommended car. Make, Model and Year are its identity and never
// change once the candidate exists.
type VehicleCandidate struct {
	Make               string                     `json:"make"`
	Model              string                     `json:"model"`
	Year               Text                       `json:"year"`
	Price              Text                       `json:"price,omitempty"`
	MarketAvailability Text                       `json:"marketAvailability,omitempty"`
	Type               Text                       `json:"type,omitempty"`
	Strengths          []string                   `json:"strengths,omitempty"`
	Weaknesses         []string                   `json:"weaknesses,omitempty"`
	Reason             Text                       `json:"reason,omitempty"`
	PreciseModel       Text                       `json:"preciseModel,omitempty"`
	Configuration      Text                       `json:"configuration,omitempty"`
	Percentage         Score                      `json:"percentage,omitempty"`
	VehicleProperties  map[string]VehicleProperty `json:"vehicleProperties,omitempty"`
	Pinned             bool                       `json:"pinned"`
	Images             []ImageRecord              `json:"images"`
}

// Key is the dedup key: lower-cased "make-model".
func (c VehicleCandidate) Key() string {
	return IdentityKey(c.Make, c.Model)
}

func IdentityKey(carMake, carModel string) string {
	return strings.ToLower(strings.TrimSpace(carMake)) + "-" + strings.ToLower(strings.TrimSpace(carModel))
}

// SameIdentity compares make, model and year, ignoring case and surrounding space.
func (c VehicleCandidate) SameIdentity(other VehicleCandidate) bool {
	return sameText(c.Make, other.Make) &&
		sameText(c.Model, other.Model) &&
		sameText(string(c.Year), string(other.Year))
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (c VehicleCandidate) DisplayName() string {
	name := strings.TrimSpace(c.Make + " " + c.Model)
	if c.Year != "" {
		name += " " + string(c.Year)
	}
	return name
}

// Clone deep-copies slices and maps so stages never share backing storage.
func (c VehicleCandidate) Clone() VehicleCandidate {
	out := c
	out.Strengths = cloneStrings(c.Strengths)
	out.Weaknesses = cloneStrings(c.Weaknesses)
	if c.VehicleProperties != nil {
		out.VehicleProperties = make(map[string]VehicleProperty, len(c.VehicleProperties))
		for k, v := range c.VehicleProperties {
			out.VehicleProperties[k] = v
		}
	}
	if c.Images != nil {
		out.Images = make([]ImageRecord, len(c.Images))
		copy(out.Images, c.Images)
	}
	return out
}

func CloneCandidates(in []VehicleCandidate) []VehicleCandidate {
	if in == nil {
		return nil
	}
	out := make([]VehicleCandidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
