package generator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartbridge/chartbridge/internal/bridge/config"
	"github.com/chartbridge/chartbridge/pkg/types"
)

func TestParseChartUpdate(t *testing.T) {
	update, err := ParseChartUpdate(`{
		"explanation": "bar chart of sales by region",
		"chartConfig": {"chart": {"type": "bar"}},
		"dataSource": {"x": "region", "y": "sales"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "bar chart of sales by region", update.Explanation)
	assert.Equal(t, map[string]any{"type": "bar"}, update.ChartConfig["chart"])
	assert.Nil(t, update.DisplayFormat)
}

func TestParseChartUpdateFenced(t *testing.T) {
	update, err := ParseChartUpdate("```json\n{\"explanation\": \"pie chart\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "pie chart", update.Explanation)

	// fence without a language tag
	update, err = ParseChartUpdate("```\n{\"explanation\": \"line chart\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "line chart", update.Explanation)
}

func TestParseChartUpdateInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "here is your chart!"},
		{"missing explanation", `{"chartConfig": {}}`},
		{"empty explanation", `{"explanation": ""}`},
		{"wrong field type", `{"explanation": "ok", "chartConfig": "not an object"}`},
		{"unknown field", `{"explanation": "ok", "sqlQuery": "drop table users"}`},
		{"array not object", `[{"explanation": "ok"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChartUpdate(tt.content)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOutput))
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("CHARTBRIDGE_TEST_NO_KEY", "")
	cfg := &config.GeneratorConfig{
		Model:       "gpt-4o",
		APIKeyEnv:   "CHARTBRIDGE_TEST_NO_KEY",
		MaxAttempts: 1,
		CallTimeout: "1s",
	}
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	t.Setenv("CHARTBRIDGE_TEST_NO_KEY", "sk-test")
	gen, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
}

func TestBuildUserMessage(t *testing.T) {
	msg := buildUserMessage(Turn{Prompt: "chart it"})
	assert.Equal(t, "Request: chart it", msg)

	msg = buildUserMessage(Turn{
		Prompt:      "chart it",
		DataContext: map[string]any{"columns": []any{"region", "sales"}},
	})
	assert.Contains(t, msg, "Data context:\n")
	assert.Contains(t, msg, `{"columns":["region","sales"]}`)

	msg = buildUserMessage(Turn{
		Prompt: "chart it",
		Sample: types.NullableAnyFromRaw([]byte(`{"rows":[1]}`)),
	})
	assert.Contains(t, msg, "Data sample:\n{\"rows\":[1]}")
}
