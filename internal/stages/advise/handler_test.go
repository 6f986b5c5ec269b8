package advise

import (
	"context"
	"errors"
	"testing"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/llm"
	"car-advisor/internal/models"
	"car-advisor/internal/stages/stagestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, invoker llm.Invoker) *Handler {
	return NewHandler(DefaultConfig(), invoker, stagestest.Prompts(), observability.NopTracer{}, logger.NewTestLogger(t))
}

func TestAskAboutCar(t *testing.T) {
	invoker := stagestest.Static("  \"Yes, the hybrid is very reliable.\"  ")
	h := newTestHandler(t, invoker)

	answer, err := h.AskAboutCar(context.Background(), Question{
		Car:      models.VehicleCandidate{Make: "Toyota", Model: "Corolla", Year: "2020", Images: []models.ImageRecord{{URL: "https://img.example/c.jpg"}}},
		Question: "Is it reliable?",
		History:  "Turn 1 (find-cars):",
		Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "Yes, the hybrid is very reliable.", answer)

	call := invoker.Calls()[0]
	assert.Equal(t, "TEMPLATE ask-about-car", call.Messages[0].Content)
	assert.Contains(t, call.Messages[1].Content, "Conversation History:\nTurn 1 (find-cars):")
	assert.Contains(t, call.Messages[1].Content, `"model": "Corolla"`)
	assert.Contains(t, call.Messages[1].Content, "Question: Is it reliable?")
	assert.NotContains(t, call.Messages[1].Content, "c.jpg")
	assert.Empty(t, call.Options.Format)
}

func TestCompareCars(t *testing.T) {
	invoker := stagestest.Static("The Corolla is cheaper to run; the Civic is more fun.")
	h := newTestHandler(t, invoker)

	analysis, err := h.CompareCars(context.Background(), Comparison{
		Cars: []models.VehicleCandidate{
			{Make: "Toyota", Model: "Corolla"},
			{Make: "Honda", Model: "Civic"},
		},
		Language: "it",
	})
	require.NoError(t, err)
	assert.Contains(t, analysis, "Corolla")

	prompt := invoker.Calls()[0].Messages[1].Content
	assert.Contains(t, prompt, "User language: it")
	assert.Contains(t, prompt, `"model": "Civic"`)
	assert.NotContains(t, prompt, "Conversation History")
}

func TestAdvise_Failures(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		h := newTestHandler(t, stagestest.NewInvoker(func(stagestest.Call) (string, error) {
			return "", &llm.HTTPError{URL: "http://x", StatusCode: 502}
		}))
		_, err := h.AskAboutCar(context.Background(), Question{Question: "?"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAdviceFailed))
		assert.Equal(t, apperrors.ErrCodeModelHTTP, apperrors.Normalize(err).Code)
	})

	t.Run("empty answer", func(t *testing.T) {
		h := newTestHandler(t, stagestest.Static("   "))
		_, err := h.CompareCars(context.Background(), Comparison{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyAnswer))
	})
}
