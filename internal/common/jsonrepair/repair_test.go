package jsonrepair

import (
	stderrors "errors"
	"testing"

	apperrors "car-advisor/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Recovers(t *testing.T) {
	want := map[string]interface{}{"make": "Toyota", "model": "Corolla", "year": float64(2020)}

	tests := []struct {
		name  string
		input string
	}{
		{"plain json", `{"make":"Toyota","model":"Corolla","year":2020}`},
		{"surrounding whitespace", "\n\t {\"make\":\"Toyota\",\"model\":\"Corolla\",\"year\":2020}  \n"},
		{"json code fence", "```json\n{\"make\":\"Toyota\",\"model\":\"Corolla\",\"year\":2020}\n```"},
		{"bare code fence", "```\n{\"make\":\"Toyota\",\"model\":\"Corolla\",\"year\":2020}\n```"},
		{"prose around object", `Sure! Here is the car: {"make":"Toyota","model":"Corolla","year":2020} Let me know.`},
		{"wrapped in apostrophes", `'{"make":"Toyota","model":"Corolla","year":2020}'`},
		{"single quoted keys and values", `{'make': 'Toyota', 'model': 'Corolla', 'year': 2020}`},
		{"trailing commas", `{"make":"Toyota","model":"Corolla","year":2020,}`},
		{"everything at once", "Result:\n```json\n{'make': 'Toyota', 'model': 'Corolla', 'year': 2020,}\n```\nDone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParse_WellFormedValuesAreUntouched(t *testing.T) {
	got, err := Parse(`{"reason":"it's great: 'quiet', roomy, }"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"reason": "it's great: 'quiet', roomy, }"}, got)

	arr, err := Parse(`[{"make":"Fiat"},{"make":"Kia"}]`)
	require.NoError(t, err)
	assert.Len(t, arr, 2)
}

func TestParse_NestedTrailingCommas(t *testing.T) {
	got, err := Parse(`{"strengths": ["cheap", "reliable",], "props": {"fuel": {"label": "Fuel", "value": "petrol",},},}`)
	require.NoError(t, err)

	obj := got.(map[string]interface{})
	assert.Equal(t, []interface{}{"cheap", "reliable"}, obj["strengths"])
}

func TestParse_Garbage(t *testing.T) {
	tests := []string{
		"",
		"I could not find any cars for you.",
		"{ this is not json }",
		"{'unterminated': ",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, stderrors.As(err, &parseErr))
			assert.NotEmpty(t, parseErr.Message)
			assert.Equal(t, apperrors.ErrCodeResponseParse, apperrors.Normalize(err).Code)
		})
	}
}

// The span is found greedily, so a stray closing brace after the object widens it.
func TestParse_GreedySpanLimitation(t *testing.T) {
	_, err := Parse(`{"make":"Fiat"} and then }`)
	assert.Error(t, err)
}

func TestParseObject(t *testing.T) {
	obj, err := ParseObject("```json\n{\"analysis\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", obj["analysis"])

	_, err = ParseObject(`[1, 2, 3]`)
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	type car struct {
		Make string `json:"make"`
		Year int    `json:"year"`
	}

	v, err := Parse(`{"make": "Kia", "year": 2019}`)
	require.NoError(t, err)

	var c car
	require.NoError(t, Decode(v, &c))
	assert.Equal(t, car{Make: "Kia", Year: 2019}, c)

	var wrong struct {
		Make int `json:"make"`
	}
	assert.Error(t, Decode(v, &wrong))
}
