// Package stages holds what every pipeline stage shares: the model call and the repair,
// validate, decode sequence applied to its reply.
package stages

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"car-advisor/internal/common/jsonrepair"
	"car-advisor/internal/common/metrics"
	"car-advisor/internal/common/validation"
	"car-advisor/internal/llm"
)

// JSONGuard is appended to every instruction that expects structured output.
const JSONGuard = "Respond only with valid JSON. Do not add explanations or Markdown."

// InvokeJSON calls the model in JSON mode, repairs the reply and checks it against schema.
func InvokeJSON(ctx context.Context, invoker llm.Invoker, messages []llm.Message, opts llm.Options, schema *validation.Schema) (interface{}, error) {
	opts.Format = llm.FormatJSON
	raw, err := invoker.Invoke(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	value, err := jsonrepair.Parse(raw)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		if err := schema.Validate(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// InvokeText calls the model for a plain-text reply and trims wrapping quotes.
func InvokeText(ctx context.Context, invoker llm.Invoker, messages []llm.Message, opts llm.Options) (string, error) {
	raw, err := invoker.Invoke(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return CleanText(raw), nil
}

func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// Marshal renders v for inclusion in a prompt.
func Marshal(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Observe records how long a stage ran.
func Observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Fallback counts one item that kept its original value.
func Fallback(stage string) {
	metrics.StageFallbacks.WithLabelValues(stage).Inc()
}

// Options builds per-call options from a stage's temperature and token settings.
func Options(temperature float64, maxTokens int) llm.Options {
	return llm.Options{Temperature: llm.Temperature(temperature), MaxTokens: maxTokens}
}
