package ai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ adapter.DocumentAnalyzer = (*OpenAIAnalyzer)(nil)

type OpenAIAnalyzer struct {
	client      openai.Client
	model       string
	tokenBudget int
	log         *zerolog.Logger
}

func NewOpenAIAnalyzer(cfg config.OpenAIConfig, tokenBudget int, log *zerolog.Logger) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	return &OpenAIAnalyzer{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		tokenBudget: tokenBudget,
		log:         log,
	}, nil
}

func (o *OpenAIAnalyzer) Provider() string { return "openai" }

func (o *OpenAIAnalyzer) AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error) {
	prompt := buildPrompt(truncateToBudget(text, o.tokenBudget), filename)
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	metrics.ObserveAI(o.Provider(), time.Since(start).Seconds(), err == nil)
	if err != nil {
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, errors.New("openai: no choice content"))
	}

	o.log.Debug().Str("model", o.model).Dur("elapsed", time.Since(start)).Msg("openai analysis complete")
	return parseAnalysis(resp.Choices[0].Message.Content, o.Provider(), false), nil
}
