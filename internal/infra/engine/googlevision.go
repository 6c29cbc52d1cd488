package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ engineport.Engine = (*GoogleVisionEngine)(nil)

// GoogleVisionEngine submits whole documents for structured text detection
// via the Cloud Vision API. Per-page confidence is the mean of word-level
// confidences.
type GoogleVisionEngine struct {
	cfg config.GoogleVisionConfig
	log *zerolog.Logger

	mu  sync.Mutex
	svc *vision.Service
}

func NewGoogleVisionEngine(cfg config.GoogleVisionConfig, log *zerolog.Logger) *GoogleVisionEngine {
	return &GoogleVisionEngine{cfg: cfg, log: log}
}

func (e *GoogleVisionEngine) Name() string { return "google_vision" }

func (e *GoogleVisionEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return nil
	}
	var opts []option.ClientOption
	if e.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(e.cfg.CredentialsFile))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%w: google vision: %v", domain.ErrEngineInit, err)
	}
	e.svc = svc
	e.log.Info().Str("project", e.cfg.ProjectID).Msg("google vision engine initialized")
	return nil
}

func (e *GoogleVisionEngine) ExtractText(ctx context.Context, path string, opts engineport.Options) (*model.RecognitionResult, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return e.ExtractTextFromBuffer(ctx, buf, opts)
}

func (e *GoogleVisionEngine) ExtractTextFromBuffer(ctx context.Context, buf []byte, opts engineport.Options) (*model.RecognitionResult, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(buf)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	resp, err := e.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		metrics.ObserveEngine(e.Name(), time.Since(start).Seconds(), false)
		return nil, fmt.Errorf("%w: google vision annotate: %v", domain.ErrEngineOperation, err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0].FullTextAnnotation == nil {
		metrics.ObserveEngine(e.Name(), time.Since(start).Seconds(), false)
		return nil, domain.ErrNoTextDetected
	}
	annotation := resp.Responses[0].FullTextAnnotation

	pages := make([]model.RecognizedPage, 0, len(annotation.Pages))
	for i, p := range annotation.Pages {
		pages = append(pages, visionPage(p, i+1))
	}

	elapsed := time.Since(start).Seconds()
	metrics.ObserveEngine(e.Name(), elapsed, true)
	e.log.Debug().Int("pages", len(pages)).Float64("seconds", elapsed).Msg("google vision ocr completed")

	return &model.RecognitionResult{
		Text:           annotation.Text,
		Confidence:     meanPageConfidence(pages),
		Pages:          pages,
		Language:       visionLanguage(annotation),
		ProcessingTime: elapsed,
		Engine:         e.Name(),
	}, nil
}

func (e *GoogleVisionEngine) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.svc = nil
	e.log.Info().Msg("google vision engine cleaned up")
	return nil
}

// visionPage flattens one annotation page: text assembled from
// block/paragraph/word symbols, confidence averaged over words.
func visionPage(p *vision.Page, number int) model.RecognizedPage {
	var (
		blocks    []string
		words     []model.Word
		confSum   float64
		confCount int
	)
	for _, block := range p.Blocks {
		var paras []string
		for _, para := range block.Paragraphs {
			var ws []string
			for _, word := range para.Words {
				var sb strings.Builder
				for _, sym := range word.Symbols {
					sb.WriteString(sym.Text)
				}
				text := sb.String()
				ws = append(ws, text)
				words = append(words, model.Word{Text: text, Confidence: word.Confidence})
				confSum += word.Confidence
				confCount++
			}
			paras = append(paras, strings.Join(ws, " "))
		}
		blocks = append(blocks, strings.Join(paras, "\n"))
	}

	confidence := 0.0
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}
	return model.RecognizedPage{
		PageNumber: number,
		Text:       strings.Join(blocks, "\n"),
		Confidence: confidence,
		Width:      int(p.Width),
		Height:     int(p.Height),
		Words:      words,
	}
}

func meanPageConfidence(pages []model.RecognizedPage) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Confidence
	}
	return sum / float64(len(pages))
}

func visionLanguage(annotation *vision.TextAnnotation) string {
	if len(annotation.Pages) > 0 && annotation.Pages[0].Property != nil {
		langs := annotation.Pages[0].Property.DetectedLanguages
		if len(langs) > 0 {
			return langs[0].LanguageCode
		}
	}
	return "unknown"
}
