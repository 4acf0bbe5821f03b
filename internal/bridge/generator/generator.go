// Package generator turns a chat prompt and an optional data sample
// into a chart update by calling a chat completions API. The model is
// asked for a single JSON object; the reply is schema-validated before
// it is allowed anywhere near a channel.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/config"
	"github.com/chartbridge/chartbridge/internal/bridge/wire"
	"github.com/chartbridge/chartbridge/pkg/types"
)

var jsonit = jsoniter.ConfigCompatibleWithStandardLibrary

// Turn is one chat turn presented to the generator.
type Turn struct {
	Prompt      string            // the user's request
	DataContext map[string]any    // caller-supplied description of the data, may be nil
	Sample      types.NullableAny // data sample to ground the chart on, may be absent
}

// ChartGenerator produces a chart update for a chat turn.
type ChartGenerator interface {
	Generate(ctx context.Context, turn Turn) (*wire.ChartUpdate, error)
}

// openAIGenerator implements ChartGenerator over the chat completions API.
type openAIGenerator struct {
	client      openai.Client
	model       string
	maxAttempts uint
	callTimeout time.Duration
}

// New creates a ChartGenerator from the generator configuration.
func New(cfg *config.GeneratorConfig) (ChartGenerator, error) {
	apiKey := cfg.GetAPIKey()
	if apiKey == "" {
		return nil, ErrMissingAPIKey.Msg(fmt.Sprintf("environment variable %s is empty", cfg.APIKeyEnv))
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	callTimeout, err := cfg.GetCallTimeout()
	if err != nil {
		return nil, ErrGeneratorError.Msg("invalid call timeout").Err(err)
	}
	return &openAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		callTimeout: callTimeout,
	}, nil
}

const systemPrompt = `You are a chart configuration assistant. Given a user's request and an
optional sample of their data, respond with a single JSON object and
nothing else. The object has these fields:

  "explanation":        string, a short human-readable summary of the chart
  "chartConfig":        object, a Highcharts configuration for the chart
  "dataSource":         object, describing which fields of the data feed the chart
  "displayFormat":      object, number and label formatting hints
  "dataTransformation": object, aggregations or pivots to apply before rendering

"explanation" is required. Omit any other field you have nothing useful
to say about. Do not wrap the object in markdown fences or add prose.`

func (g *openAIGenerator) Generate(ctx context.Context, turn Turn) (*wire.ChartUpdate, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserMessage(turn)),
		},
		Model: openai.ChatModel(g.model),
	}

	var content string
	err := retry.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
		completion, err := g.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Unrecoverable(err)
			}
			return err
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		content = completion.Choices[0].Message.Content
		return nil
	}, retry.Attempts(g.maxAttempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Error().Err(err).Uint("attempt", n).Msg("chart generation attempt failed")
		}))
	if err != nil {
		return nil, ErrGenerationFailed.Err(err)
	}

	update, err := ParseChartUpdate(content)
	if err != nil {
		return nil, err
	}
	return update, nil
}

// ParseChartUpdate decodes and validates a model reply. Markdown code
// fences around the object are tolerated even though the prompt forbids
// them; models add them anyway.
func ParseChartUpdate(content string) (*wire.ChartUpdate, error) {
	raw := stripCodeFence(content)

	var decoded any
	if err := jsonit.UnmarshalFromString(raw, &decoded); err != nil {
		return nil, ErrInvalidOutput.Msg("reply is not valid JSON").Err(err)
	}
	if err := chartUpdateSchema.Validate(decoded); err != nil {
		return nil, ErrInvalidOutput.Err(err)
	}

	update := &wire.ChartUpdate{}
	if err := jsonit.UnmarshalFromString(raw, update); err != nil {
		return nil, ErrInvalidOutput.Err(err)
	}
	return update, nil
}

// stripCodeFence removes a ```json ... ``` wrapper if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func buildUserMessage(turn Turn) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(turn.Prompt)
	if len(turn.DataContext) > 0 {
		if encoded, err := jsonit.MarshalToString(turn.DataContext); err == nil {
			b.WriteString("\n\nData context:\n")
			b.WriteString(encoded)
		}
	}
	if !turn.Sample.IsNil() {
		b.WriteString("\n\nData sample:\n")
		b.Write(turn.Sample.Raw())
	}
	return b.String()
}
