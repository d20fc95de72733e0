package refine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/voice-intake/internal/intake"
)

const (
	// Captures free text up to a comma, semicolon, newline or sentence end.
	phraseTail = `\s*:?\s*([^,;\n]+?)\s*(?:[,;\n]|\.(?:\s|$)|$)`
	nameWord   = `(\p{L}[\p{L}'\-]*)`
	dateForms  = `\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4}|[a-z]+\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}|\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?[a-z]+,?\s+\d{4}`
	timeValue  = `(\d{1,2}(?::\d{2})?\s*(?:a\.?m\.?|p\.?m\.?)|noon)`
)

type phraseRule struct {
	field intake.CanonicalField
	re    *regexp.Regexp
}

func phrase(field intake.CanonicalField, prefixes string) phraseRule {
	return phraseRule{field: field, re: regexp.MustCompile(`(?i)\b(?:` + prefixes + `)\b` + phraseTail)}
}

func capture(field intake.CanonicalField, pattern string) phraseRule {
	return phraseRule{field: field, re: regexp.MustCompile(`(?i)` + pattern)}
}

// First match per field wins, so more explicit phrasings come first.
var phraseRules = []phraseRule{
	capture(intake.FieldFirstName, `\bmy first name is\s+`+nameWord),
	capture(intake.FieldLastName, `\b(?:my last name is|last name is|surname is)\s+`+nameWord),
	capture(intake.FieldDateOfBirth, `\b(?:date of birth is|birthday is|born on|dob is)\s+(`+dateForms+`)`),
	capture(intake.FieldSex, `\b(?:sex|gender) is\s+(\p{L}+)`),
	capture(intake.FieldSex, `\bi(?:'m| am) (?:a )?(male|female|man|woman)\b`),
	capture(intake.FieldEmail, `\bemail(?: address)? is\s+([^\s,;]+(?:\s+(?:at|dot)\s+[^\s,;]+)*)`),
	capture(intake.FieldPhone, `\b(?:phone(?: number)? is|call me at|reach me at|cell(?: phone)?(?: number)? is|my number is)\s+([+\d(][\d()\-.\s]{6,}\d)`),
	capture(intake.FieldAddressZip, `\b(?:zip(?: code)? is|postal code is)\s+(\d{5}(?:-?\d{4})?)`),
	phrase(intake.FieldAddressCity, `city is`),
	phrase(intake.FieldAddressState, `state is`),
	phrase(intake.FieldInsuranceProvider, `insurance(?: provider| company| carrier)? is|insured (?:with|through)|my insurance is with`),
	capture(intake.FieldInsuranceID, `\b(?:member id|member number|policy number|insurance id|subscriber id)(?: is)?\s*:?\s*([A-Za-z0-9]+(?:[\- ][0-9]+)*)`),
	phrase(intake.FieldTest, `the test is|test i need is|i need to get an?|i need an?|i'?m here for an?|here for an?`),
	phrase(intake.FieldReasons, `the reason is|reason for (?:the|my) visit is|because`),
	capture(intake.FieldPreferredDate, `\b(?:appointment (?:on|for)|come in on|schedule (?:it )?for|available on)\s+(today|tomorrow|`+dateForms+`)`),
	capture(intake.FieldPreferredTime, `\b(?:appointment|come in|schedule|available|prefer)[^.\n]*?\b(?:at|around|about)\s+`+timeValue),
	capture(intake.FieldPreferredLocation, `\b(?:location is|clinic is|prefer the|go to the)\s+([^,;.\n]+?(?:location|clinic|office|lab|center|centre))\b`),
}

var (
	fullNameRE = regexp.MustCompile(`(?i)\b(?:my name is|my full name is)\s+` + nameWord + `(?:\s+` + nameWord + `)?`)
	addressRE  = regexp.MustCompile(`(?i)\b(?:i live at|my address is|home address is|street address is)\s+([^;\n]+?)\s*(?:[;\n]|\.(?:\s|$)|$)`)
	stateZipRE = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)\s*(\d{5}(?:-?\d{4})?)?$`)
)

// Words that follow a first name without being a surname.
var notSurname = map[string]bool{
	"and": true, "but": true, "so": true, "i": true, "my": true,
	"from": true, "calling": true, "here": true, "speaking": true,
}

// RuleExtractor finds field values with fixed caller phrasings.
type RuleExtractor struct {
	now func() time.Time
}

func NewRuleExtractor(now func() time.Time) *RuleExtractor {
	if now == nil {
		now = time.Now
	}
	return &RuleExtractor{now: now}
}

func (r *RuleExtractor) Name() string {
	return "rules"
}

func (r *RuleExtractor) Extract(ctx context.Context, transcript string) (intake.FieldMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := callerText(transcript)
	now := r.now()
	out := intake.FieldMap{}

	set := func(field intake.CanonicalField, raw string) {
		if _, done := out[field]; done {
			return
		}
		raw = strings.TrimRight(strings.TrimSpace(raw), ".")
		n := intake.NormalizeAt(field, raw, now)
		if n.Value == nil {
			return
		}
		out[field] = intake.FieldValue{
			Value:      n.Value,
			Confidence: n.Confidence,
			Source:     intake.SourceRefinement,
			UpdatedAt:  now,
		}
	}

	for _, rule := range phraseRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			set(rule.field, m[1])
		}
	}

	if m := fullNameRE.FindStringSubmatch(text); m != nil {
		set(intake.FieldFirstName, m[1])
		if m[2] != "" && !notSurname[strings.ToLower(m[2])] {
			set(intake.FieldLastName, m[2])
		}
	}

	if m := addressRE.FindStringSubmatch(text); m != nil {
		splitAddress(m[1], set)
	}

	return out, nil
}

// splitAddress reads "street, city, state zip" with any trailing parts optional.
func splitAddress(addr string, set func(intake.CanonicalField, string)) {
	parts := strings.Split(addr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	set(intake.FieldAddressStreet, parts[0])
	if len(parts) > 1 {
		set(intake.FieldAddressCity, parts[1])
	}
	if len(parts) > 2 {
		if m := stateZipRE.FindStringSubmatch(parts[2]); m != nil {
			set(intake.FieldAddressState, m[1])
			if m[2] != "" {
				set(intake.FieldAddressZip, m[2])
			}
		}
	}
	if len(parts) > 3 {
		set(intake.FieldAddressZip, parts[3])
	}
}
