package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ engineport.Engine = (*AzureReadEngine)(nil)

const (
	azureReadPath = "/vision/v3.2/read/analyze"

	// The Read API is submit-then-poll; the service gives no bound, so we
	// impose one: 60 polls at 1s each before giving up.
	azurePollInterval = time.Second
	azureMaxPolls     = 60
)

// AzureReadEngine drives the Azure Computer Vision Read API over plain
// HTTP: submit returns an operation handle in the Operation-Location
// header, results are polled until the operation leaves running/notStarted.
type AzureReadEngine struct {
	cfg    config.AzureReadConfig
	client *http.Client
	log    *zerolog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewAzureReadEngine(cfg config.AzureReadConfig, log *zerolog.Logger) *AzureReadEngine {
	return &AzureReadEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (e *AzureReadEngine) Name() string { return "azure_cv" }

func (e *AzureReadEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if e.cfg.Endpoint == "" || e.cfg.Key == "" {
		return fmt.Errorf("%w: azure endpoint and key are required", domain.ErrEngineInit)
	}
	e.initialized = true
	e.log.Info().Str("endpoint", e.cfg.Endpoint).Msg("azure read engine initialized")
	return nil
}

func (e *AzureReadEngine) ExtractText(ctx context.Context, path string, opts engineport.Options) (*model.RecognitionResult, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return e.ExtractTextFromBuffer(ctx, buf, opts)
}

func (e *AzureReadEngine) ExtractTextFromBuffer(ctx context.Context, buf []byte, opts engineport.Options) (*model.RecognitionResult, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	operationURL, err := e.submit(ctx, buf)
	if err != nil {
		metrics.ObserveEngine(e.Name(), time.Since(start).Seconds(), false)
		return nil, err
	}

	result, err := e.poll(ctx, operationURL)
	if err != nil {
		metrics.ObserveEngine(e.Name(), time.Since(start).Seconds(), false)
		return nil, err
	}

	pages := make([]model.RecognizedPage, 0, len(result.AnalyzeResult.ReadResults))
	for i, pr := range result.AnalyzeResult.ReadResults {
		pages = append(pages, azurePage(pr, i+1))
	}
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}

	language := "unknown"
	if len(result.AnalyzeResult.ReadResults) > 0 && result.AnalyzeResult.ReadResults[0].Language != "" {
		language = result.AnalyzeResult.ReadResults[0].Language
	}

	elapsed := time.Since(start).Seconds()
	metrics.ObserveEngine(e.Name(), elapsed, true)
	e.log.Debug().Int("pages", len(pages)).Float64("seconds", elapsed).Msg("azure read ocr completed")

	return &model.RecognitionResult{
		Text:           strings.Join(texts, "\n\n"),
		Confidence:     meanPageConfidence(pages),
		Pages:          pages,
		Language:       language,
		ProcessingTime: elapsed,
		Engine:         e.Name(),
	}, nil
}

func (e *AzureReadEngine) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	e.log.Info().Msg("azure read engine cleaned up")
	return nil
}

func (e *AzureReadEngine) submit(ctx context.Context, buf []byte) (string, error) {
	url := strings.TrimRight(e.cfg.Endpoint, "/") + azureReadPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.cfg.Key)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: azure read submit: %v", domain.ErrEngineOperation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: azure read submit http %d", domain.ErrEngineOperation, resp.StatusCode)
	}
	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("%w: azure read submit returned no operation location", domain.ErrEngineOperation)
	}
	return operationURL, nil
}

func (e *AzureReadEngine) poll(ctx context.Context, operationURL string) (*azureReadResponse, error) {
	for i := 0; i < azureMaxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(azurePollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", e.cfg.Key)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: azure read poll: %v", domain.ErrEngineOperation, err)
		}
		var body azureReadResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: azure read poll decode: %v", domain.ErrEngineOperation, err)
		}

		switch body.Status {
		case "running", "notStarted":
			continue
		case "succeeded":
			return &body, nil
		default:
			return nil, fmt.Errorf("%w: azure read operation status %q", domain.ErrEngineOperation, body.Status)
		}
	}
	return nil, fmt.Errorf("%w: azure read poll budget exhausted after %d polls", domain.ErrEngineOperation, azureMaxPolls)
}

type azureReadResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []azureReadPage `json:"readResults"`
	} `json:"analyzeResult"`
}

type azureReadPage struct {
	Page     int     `json:"page"`
	Language string  `json:"language"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Lines    []struct {
		Text        string    `json:"text"`
		BoundingBox []float64 `json:"boundingBox"`
		Words       []struct {
			Text        string    `json:"text"`
			Confidence  float64   `json:"confidence"`
			BoundingBox []float64 `json:"boundingBox"`
		} `json:"words"`
	} `json:"lines"`
}

// azurePage flattens one read result: text is the line join, confidence the
// mean of word confidences.
func azurePage(pr azureReadPage, number int) model.RecognizedPage {
	var (
		texts     []string
		lines     []model.Line
		confSum   float64
		confCount int
	)
	for _, l := range pr.Lines {
		texts = append(texts, l.Text)
		var lineConf float64
		for _, w := range l.Words {
			confSum += w.Confidence
			confCount++
			lineConf += w.Confidence
		}
		if len(l.Words) > 0 {
			lineConf /= float64(len(l.Words))
		}
		lines = append(lines, model.Line{Text: l.Text, Confidence: lineConf})
	}

	confidence := 0.0
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}
	return model.RecognizedPage{
		PageNumber: number,
		Text:       strings.Join(texts, "\n"),
		Confidence: confidence,
		Width:      int(pr.Width),
		Height:     int(pr.Height),
		Lines:      lines,
	}
}
