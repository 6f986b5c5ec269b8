package elaborate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages/stagestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, invoker llm.Invoker) *Handler {
	h := NewHandler(DefaultConfig(), invoker, stagestest.Prompts(), observability.NopTracer{}, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) }
	return h
}

func candidates() []models.VehicleCandidate {
	return []models.VehicleCandidate{
		{Make: "Toyota", Model: "Corolla", Year: "2020", Percentage: 90, Reason: "reliable"},
		{Make: "Honda", Model: "Civic", Year: "2019", Percentage: 85, Pinned: true},
		{Make: "Skoda", Model: "Octavia", Year: "2021", Percentage: 80},
	}
}

const elaboration = `{
	"price": "18,000 EUR",
	"type": "compact",
	"strengths": ["cheap to run"],
	"reason": "fits the budget",
	"make": "Lexus",
	"pinned": false,
	"vehicleProperties": {"bootSpace": {"label": "Boot space", "value": 450}}
}`

func TestElaborate_OneFailureIsIsolated(t *testing.T) {
	invoker := stagestest.NewInvoker(func(call stagestest.Call) (string, error) {
		if strings.Contains(call.Prompt(), `"model": "Civic"`) {
			return "", &llm.HTTPError{URL: "http://x", StatusCode: 500}
		}
		return elaboration, nil
	})
	h := newTestHandler(t, invoker)
	input := candidates()

	out, err := h.Elaborate(context.Background(), input, models.SearchIntent{PrimaryFocus: "family"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, input[1], out[1])

	for _, i := range []int{0, 2} {
		assert.Equal(t, input[i].Make, out[i].Make)
		assert.Equal(t, input[i].Model, out[i].Model)
		assert.Equal(t, input[i].Year, out[i].Year)
		assert.Equal(t, input[i].Percentage, out[i].Percentage)
		assert.Equal(t, models.Text("18,000 EUR"), out[i].Price)
		assert.Equal(t, models.Text("fits the budget"), out[i].Reason)
		assert.Equal(t, []string{"cheap to run"}, out[i].Strengths)
		assert.Equal(t, models.Text("450"), out[i].VehicleProperties["bootSpace"].Value)
	}
	assert.Len(t, invoker.Calls(), 3)
}

func TestElaborate_PromptCarriesDateCarAndIntent(t *testing.T) {
	invoker := stagestest.Static(elaboration)
	h := newTestHandler(t, invoker)

	_, err := h.Elaborate(context.Background(), candidates()[:1], models.SearchIntent{PrimaryFocus: "family"})
	require.NoError(t, err)

	call := invoker.Calls()[0]
	assert.Contains(t, call.Messages[0].Content, "Today's date: 2024-03-09")
	assert.Contains(t, call.Messages[0].Content, "TEMPLATE elaborate")
	assert.Contains(t, call.Messages[1].Content, `"make": "Toyota"`)
	assert.Contains(t, call.Messages[1].Content, `"primaryFocus": "family"`)
	assert.Equal(t, llm.FormatJSON, call.Options.Format)
}

func TestElaborate_InvalidShapeFallsBack(t *testing.T) {
	h := newTestHandler(t, stagestest.Static(`{"strengths": "not a list"}`))
	input := candidates()

	out, err := h.Elaborate(context.Background(), input, models.SearchIntent{})
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestElaborate_AllFailStillReturnsOriginals(t *testing.T) {
	h := newTestHandler(t, stagestest.NewInvoker(func(stagestest.Call) (string, error) {
		return "", errors.New("boom")
	}))
	input := candidates()

	out, err := h.Elaborate(context.Background(), input, models.SearchIntent{})
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestElaborate_BatchFailures(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		h := NewHandler(DefaultConfig(), stagestest.Static(elaboration), prompts.Static{}, observability.NopTracer{}, logger.NewNoOpLogger())
		_, err := h.Elaborate(context.Background(), candidates(), models.SearchIntent{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrElaborationFailed))
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newTestHandler(t, stagestest.Static(elaboration))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.Elaborate(ctx, candidates(), models.SearchIntent{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestElaborate_Empty(t *testing.T) {
	h := newTestHandler(t, stagestest.Static(elaboration))
	out, err := h.Elaborate(context.Background(), nil, models.SearchIntent{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
