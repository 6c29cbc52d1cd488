package usecase

import (
	"regexp"

	"document-ai-pipeline/internal/domain/model"
)

// Entity patterns are intentionally loose; extraction favors recall and
// leaves disambiguation to consumers. Order and duplicates are preserved.
var (
	dateRe   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`)
	emailRe  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe  = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b|\(\d{3}\)\s*\d{3}[-.]?\d{4}`)
	amountRe = regexp.MustCompile(`\$\s*\d+(?:,\d{3})*(?:\.\d{2})?|\b\d+(?:,\d{3})*(?:\.\d{2})?\s*(?:USD|EUR|GBP)\b`)
)

// ExtractEntities pulls dates, emails, phone numbers and monetary amounts
// out of text. All slices are non-nil.
func ExtractEntities(text string) model.Entities {
	return model.Entities{
		Dates:   matchAll(dateRe, text),
		Emails:  matchAll(emailRe, text),
		Phones:  matchAll(phoneRe, text),
		Amounts: matchAll(amountRe, text),
	}
}

func matchAll(re *regexp.Regexp, text string) []string {
	found := re.FindAllString(text, -1)
	if found == nil {
		return []string{}
	}
	return found
}
