package intent

import (
	"context"
	"errors"
	"testing"

	apperrors "car-advisor/internal/common/errors"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/llm"
	"car-advisor/internal/stages/stagestest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, invoker llm.Invoker) *Handler {
	return NewHandler(DefaultConfig(), invoker, stagestest.Prompts(), observability.NopTracer{}, logger.NewTestLogger(t))
}

func TestExtract_Success(t *testing.T) {
	invoker := stagestest.Static("```json\n" + `{
		"country": "IT",
		"primaryFocus": "cheap reliable family car",
		"constraints": {"budget": 15000, "mustHave": ["5 seats"], "preferred": null},
		"interestingProperties": ["bootSpace", "fuelConsumption"],
	}` + "\n```")
	h := newTestHandler(t, invoker)

	intent, err := h.Extract(context.Background(), "cheap reliable family car", "it")
	require.NoError(t, err)

	assert.Equal(t, "IT", intent.Country)
	assert.Equal(t, "cheap reliable family car", intent.PrimaryFocus)
	assert.Equal(t, "15000", intent.Constraints.Budget.String())
	assert.Equal(t, []string{"5 seats"}, intent.Constraints.MustHave)
	assert.Equal(t, []string{"bootSpace", "fuelConsumption"}, intent.InterestingProperties)

	calls := invoker.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.FormatJSON, calls[0].Options.Format)
	assert.Contains(t, calls[0].Messages[0].Content, "TEMPLATE intent")
	assert.Contains(t, calls[0].Messages[1].Content, "User language: it")
	assert.Contains(t, calls[0].Messages[1].Content, "cheap reliable family car")
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "model unavailable",
			err:      &llm.UnavailableError{URL: "http://x", Err: errors.New("refused")},
			wantCode: apperrors.ErrCodeModelUnavailable,
		},
		{
			name:     "unparseable reply",
			reply:    "I cannot help with that.",
			wantCode: apperrors.ErrCodeResponseParse,
		},
		{
			name:     "wrong shape",
			reply:    `{"country": "IT"}`,
			wantCode: apperrors.ErrCodeSchemaValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := stagestest.NewInvoker(func(stagestest.Call) (string, error) {
				return tt.reply, tt.err
			})
			h := newTestHandler(t, invoker)

			_, err := h.Extract(context.Background(), "anything", "en")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIntentExtractionFailed))
			assert.Equal(t, tt.wantCode, apperrors.Normalize(err).Code)
		})
	}
}

func TestExtract_MissingTemplate(t *testing.T) {
	h := NewHandler(DefaultConfig(), stagestest.Static(`{}`), prompts.Static{}, observability.NopTracer{}, logger.NewNoOpLogger())

	_, err := h.Extract(context.Background(), "anything", "en")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, apperrors.Normalize(err).Code)
}
