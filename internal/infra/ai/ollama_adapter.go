package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ adapter.DocumentAnalyzer = (*OllamaAnalyzer)(nil)

// OllamaAnalyzer talks to a local Ollama daemon over its generate API.
// Results are flagged offline since no data leaves the host.
type OllamaAnalyzer struct {
	baseURL     string
	model       string
	tokenBudget int
	client      *http.Client
	log         *zerolog.Logger
}

func NewOllamaAnalyzer(cfg config.OllamaConfig, tokenBudget int, log *zerolog.Logger) *OllamaAnalyzer {
	return &OllamaAnalyzer{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		tokenBudget: tokenBudget,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

func (o *OllamaAnalyzer) Provider() string { return "ollama" }

func (o *OllamaAnalyzer) AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error) {
	prompt := buildPrompt(truncateToBudget(text, o.tokenBudget), filename)

	reqBody := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
		Format string `json:"format"`
	}{Model: o.model, Prompt: prompt, Stream: false, Format: "json"}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return model.Analysis{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return model.Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		metrics.ObserveAI(o.Provider(), time.Since(start).Seconds(), false)
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		metrics.ObserveAI(o.Provider(), time.Since(start).Seconds(), false)
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, fmt.Errorf("ollama http %d", resp.StatusCode))
	}

	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.ObserveAI(o.Provider(), time.Since(start).Seconds(), false)
		return model.Analysis{}, errors.Join(domain.ErrAIUnavailable, err)
	}
	metrics.ObserveAI(o.Provider(), time.Since(start).Seconds(), true)

	o.log.Debug().Str("model", o.model).Dur("elapsed", time.Since(start)).Msg("ollama analysis complete")
	return parseAnalysis(payload.Response, o.Provider(), true), nil
}
