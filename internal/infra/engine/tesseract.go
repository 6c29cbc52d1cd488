// Package engine implements the recognition engine variants and the
// provider factory behind the ports/engine.Factory contract.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain/model"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ engineport.Engine = (*TesseractEngine)(nil)

// TesseractEngine runs local OCR through the tesseract C library. A fresh
// gosseract client is created per call; the client is not safe for
// concurrent use, fresh clients are.
type TesseractEngine struct {
	language string
	log      *zerolog.Logger

	mu          sync.Mutex
	initialized bool
}

func NewTesseractEngine(language string, log *zerolog.Logger) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language, log: log}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	e.log.Info().Str("language", e.language).Msg("tesseract engine initialized")
	e.initialized = true
	return nil
}

func (e *TesseractEngine) ExtractText(ctx context.Context, path string, opts engineport.Options) (*model.RecognitionResult, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return e.ExtractTextFromBuffer(ctx, buf, opts)
}

func (e *TesseractEngine) ExtractTextFromBuffer(ctx context.Context, buf []byte, opts engineport.Options) (*model.RecognitionResult, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	lang := opts.Language
	if lang == "" {
		lang = e.language
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return nil, fmt.Errorf("tesseract set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf); err != nil {
		return nil, fmt.Errorf("tesseract set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		metrics.ObserveEngine(e.Name(), time.Since(start).Seconds(), false)
		return nil, fmt.Errorf("tesseract recognize: %w", err)
	}

	words, confidence := tesseractWords(client)
	elapsed := time.Since(start).Seconds()
	metrics.ObserveEngine(e.Name(), elapsed, true)
	e.log.Debug().Float64("confidence", confidence).Float64("seconds", elapsed).Msg("tesseract ocr completed")

	return &model.RecognitionResult{
		Text:       text,
		Confidence: confidence,
		Pages: []model.RecognizedPage{{
			PageNumber: 1,
			Text:       text,
			Confidence: confidence,
			Words:      words,
		}},
		Language:       lang,
		ProcessingTime: elapsed,
		Engine:         e.Name(),
	}, nil
}

func (e *TesseractEngine) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	e.log.Info().Msg("tesseract engine cleaned up")
	return nil
}

// tesseractWords collects word boxes and the mean confidence, normalized
// from tesseract's 0-100 scale to 0-1.
func tesseractWords(client *gosseract.Client) ([]model.Word, float64) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]model.Word, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		sum += conf
		words = append(words, model.Word{
			Text:       b.Word,
			Confidence: conf,
			Box: model.Box{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return words, sum / float64(len(words))
}
