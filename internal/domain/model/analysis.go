package model

// Analysis is the AI enrichment result attached to a document. The zero
// value is never stored; use UnavailableAnalysis when the pass is skipped
// or degraded.
type Analysis struct {
	InferredType string   `json:"inferredType"`
	Summary      string   `json:"summary"`
	Insights     []string `json:"insights"`
	Confidence   float64  `json:"confidence"`
	Provider     string   `json:"provider"`
	Offline      bool     `json:"isOffline"`
}

// DisabledAnalysis is the sentinel used when enrichment is switched off or
// there is no text to analyze.
func DisabledAnalysis() Analysis {
	return Analysis{
		InferredType: "Unknown",
		Summary:      "AI analysis not available.",
		Insights:     []string{},
		Confidence:   0,
		Provider:     "none",
	}
}

// UnavailableAnalysis marks a failed enrichment pass. The document still
// completes; the diagnostic ends up in the summary.
func UnavailableAnalysis(provider, reason string, offline bool) Analysis {
	return Analysis{
		InferredType: "Inference Failed",
		Summary:      "AI analysis unavailable: " + reason,
		Insights:     []string{},
		Confidence:   0,
		Provider:     provider,
		Offline:      offline,
	}
}
