// Package ai implements the DocumentAnalyzer adapters for the supported
// model providers, plus the shared prompt and response handling.
package ai

import (
	"encoding/json"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"document-ai-pipeline/internal/domain/model"
)

const analysisEncoding = "cl100k_base"

// buildPrompt renders the enrichment instruction around the (already
// truncated) document text. The model is asked for strict JSON so the
// response can be decoded without scraping.
func buildPrompt(text, filename string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following document text and respond with a JSON object containing exactly these fields:\n")
	sb.WriteString(`{"documentType": "<one of: invoice, receipt, contract, letter, report, form, other>", `)
	sb.WriteString(`"summary": "<2-3 sentence summary>", `)
	sb.WriteString(`"insights": ["<3 key insights>"], `)
	sb.WriteString(`"confidence": <0.0-1.0>}`)
	sb.WriteString("\n\nFilename: ")
	sb.WriteString(filename)
	sb.WriteString("\n\nDocument text:\n")
	sb.WriteString(text)
	return sb.String()
}

// truncateToBudget caps the document text at budget tokens using the
// cl100k_base encoding. If the tokenizer cannot be loaded (its BPE data is
// fetched lazily), it falls back to a character cut at four chars per token.
func truncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	enc, err := tiktoken.GetEncoding(analysisEncoding)
	if err != nil {
		limit := budget * 4
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}

type analysisPayload struct {
	DocumentType string   `json:"documentType"`
	Summary      string   `json:"summary"`
	Insights     []string `json:"insights"`
	Confidence   float64  `json:"confidence"`
}

// parseAnalysis decodes the model response. Providers often wrap JSON in
// markdown fences; those are stripped first. A response that still fails to
// decode degrades to an "Analysis Error" result carrying the raw text head,
// so a chatty model never fails the document.
func parseAnalysis(raw, provider string, offline bool) model.Analysis {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		summary := cleaned
		if len(summary) > 200 {
			summary = summary[:200]
		}
		return model.Analysis{
			InferredType: "Analysis Error",
			Summary:      summary,
			Insights:     []string{},
			Confidence:   0,
			Provider:     provider,
			Offline:      offline,
		}
	}

	if payload.DocumentType == "" {
		payload.DocumentType = "other"
	}
	if payload.Insights == nil {
		payload.Insights = []string{}
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		payload.Confidence = 0
	}
	return model.Analysis{
		InferredType: payload.DocumentType,
		Summary:      payload.Summary,
		Insights:     payload.Insights,
		Confidence:   payload.Confidence,
		Provider:     provider,
		Offline:      offline,
	}
}
