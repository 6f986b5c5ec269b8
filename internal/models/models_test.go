package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleCandidate_LenientDecoding(t *testing.T) {
	raw := `{
		"make": "Skoda",
		"model": "Octavia",
		"year": 2021,
		"price": 23000,
		"percentage": "87%",
		"vehicleProperties": {"seats": {"label": "Seats", "value": 5}, "awd": {"label": "AWD", "value": false}}
	}`

	var c VehicleCandidate
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, Text("2021"), c.Year)
	assert.Equal(t, Text("23000"), c.Price)
	assert.Equal(t, Score(87), c.Percentage)
	assert.Equal(t, Text("5"), c.VehicleProperties["seats"].Value)
	assert.Equal(t, Text("false"), c.VehicleProperties["awd"].Value)
}

func TestScore_Invalid(t *testing.T) {
	var s Score
	assert.Error(t, json.Unmarshal([]byte(`"high"`), &s))
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.Equal(t, Score(0), s)
}

func TestVehicleCandidate_Identity(t *testing.T) {
	a := VehicleCandidate{Make: "Toyota", Model: "Corolla Cross", Year: "2022"}
	b := VehicleCandidate{Make: " toyota", Model: "COROLLA CROSS ", Year: "2022"}

	assert.Equal(t, "toyota-corolla cross", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.SameIdentity(b))

	b.Year = "2023"
	assert.False(t, a.SameIdentity(b))
	assert.Equal(t, "Toyota Corolla Cross 2022", a.DisplayName())
}

func TestVehicleCandidate_Clone(t *testing.T) {
	orig := VehicleCandidate{
		Make:              "Kia",
		Model:             "Ceed",
		Strengths:         []string{"warranty"},
		VehicleProperties: map[string]VehicleProperty{"fuel": {Label: "Fuel", Value: "petrol"}},
		Images:            []ImageRecord{{URL: "https://img/1.jpg"}},
	}

	cp := orig.Clone()
	cp.Strengths[0] = "changed"
	cp.VehicleProperties["fuel"] = VehicleProperty{Label: "Fuel", Value: "diesel"}
	cp.Images[0].URL = "changed"

	assert.Equal(t, "warranty", orig.Strengths[0])
	assert.Equal(t, Text("petrol"), orig.VehicleProperties["fuel"].Value)
	assert.Equal(t, "https://img/1.jpg", orig.Images[0].URL)
}

func TestConversation_LatestCars(t *testing.T) {
	now := time.Now()
	conv := Conversation{SessionID: "s1"}
	assert.False(t, conv.HasSearch())

	first := []VehicleCandidate{{Make: "Fiat", Model: "Panda", Year: "2020"}}
	refined := []VehicleCandidate{{Make: "Dacia", Model: "Sandero", Year: "2021"}}

	conv.History = append(conv.History,
		NewTurn(FindCarsPayload{Requirements: "cheap", Cars: first}, now),
		NewTurn(RefineSearchPayload{Feedback: "newer", Cars: refined}, now),
		NewTurn(AskAboutCarPayload{Car: refined[0], Question: "boot size?", Answer: "330 l"}, now),
	)

	cars, ok := conv.LatestCars()
	require.True(t, ok)
	assert.Equal(t, refined, cars)
	assert.Equal(t, TurnAskAboutCar, conv.History[2].Type)

	cp := conv.Clone()
	cp.History = cp.History[:1]
	assert.Len(t, conv.History, 3)
}
