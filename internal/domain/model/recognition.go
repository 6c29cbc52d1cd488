package model

// Box is a pixel-space bounding box for a recognized region.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// RecognizedPage is one page of engine output. Word/line boxes are optional
// and engine-dependent.
type RecognizedPage struct {
	PageNumber int     `json:"pageNumber"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Words      []Word  `json:"words,omitempty"`
	Lines      []Line  `json:"lines,omitempty"`
}

// RecognitionResult is the normalized shape every extraction path produces,
// whether it came from an OCR engine, a PDF text layer, an office reader or
// a plain text read. Confidence is always in [0,1].
type RecognitionResult struct {
	Text           string           `json:"text"`
	Confidence     float64          `json:"confidence"`
	Pages          []RecognizedPage `json:"pages"`
	Language       string           `json:"language"`
	ProcessingTime float64          `json:"processingTime"`
	Engine         string           `json:"engine"`
}

// PageContents flattens engine pages into the persisted per-page shape.
func (r *RecognitionResult) PageContents() []PageContent {
	out := make([]PageContent, 0, len(r.Pages))
	for _, p := range r.Pages {
		out = append(out, PageContent{PageNumber: p.PageNumber, Text: p.Text, Confidence: p.Confidence})
	}
	return out
}
