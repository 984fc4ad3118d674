package pii

const polishMonths = `(?:stycznia|lutego|marca|kwietnia|maja|czerwca|lipca|sierpnia|września|października|listopada|grudnia)`

// PIIPatterns defines search patterns for the canonical labels that have a
// recognizable surface form
var PIIPatterns = map[string]string{
	"email":              `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	"phone":              `(?:\+48[ -]?)?\b\d{3}[ -]?\d{3}[ -]?\d{3}\b`,
	"pesel":              `\b\d{11}\b`,
	"credit-card-number": `\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`,
	"bank-account":       `\b(?:PL ?)?\d{2}(?: ?\d{4}){6}\b`,
	"document-number":    `\b[A-Z]{3} ?\d{6}\b`,
	"date":               `\b(?:\d{1,2}[./-]\d{1,2}[./-]\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2} ` + polishMonths + ` \d{4})\b`,
}

// FormatPatterns defines the full-value shape an entity of each label must
// have. They are matched against the whole span text.
var FormatPatterns = map[string]string{
	"email":              `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
	"phone":              `(?:\+48[ -]?)?(?:\d{3}[ -]?\d{3}[ -]?\d{3}|\(?\d{2}\)?[ -]?\d{3}[ -]?\d{2}[ -]?\d{2})`,
	"pesel":              `\d{11}`,
	"credit-card-number": `\d{4}(?:[ -]?\d{4}){3}`,
	"bank-account":       `(?:PL ?)?\d{2}(?: ?\d{4}){6}`,
	"document-number":    `[A-Z]{3} ?\d{6}|[A-Z]{2} ?\d{7}`,
	"date":               `\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2} ` + polishMonths + ` \d{4}(?: r\.)?`,
	"date-of-birth":      `\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2} ` + polishMonths + ` \d{4}(?: r\.)?`,
}
