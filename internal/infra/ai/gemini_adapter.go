package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ adapter.DocumentAnalyzer = (*GeminiAnalyzer)(nil)

type GeminiAnalyzer struct {
	client      *genai.Client
	model       string
	tokenBudget int
	log         *zerolog.Logger
}

// NewGeminiAnalyzer creates a Gemini analyzer using the official SDK.
func NewGeminiAnalyzer(ctx context.Context, cfg config.GeminiConfig, tokenBudget int, log *zerolog.Logger) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAnalyzer{client: c, model: cfg.Model, tokenBudget: tokenBudget, log: log}, nil
}

func (g *GeminiAnalyzer) Provider() string { return "gemini" }

func (g *GeminiAnalyzer) AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error) {
	prompt := buildPrompt(truncateToBudget(text, g.tokenBudget), filename)
	start := time.Now()

	chat, err := g.client.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}, nil)
	if err != nil {
		metrics.ObserveAI(g.Provider(), time.Since(start).Seconds(), false)
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	metrics.ObserveAI(g.Provider(), time.Since(start).Seconds(), err == nil)
	if err != nil {
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, err)
	}

	reply := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		reply = resp.Candidates[0].Content.Parts[0].Text
	}
	if reply == "" {
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, errors.New("gemini: empty response"))
	}

	g.log.Debug().Str("model", g.model).Dur("elapsed", time.Since(start)).Msg("gemini analysis complete")
	return parseAnalysis(reply, g.Provider(), false), nil
}
