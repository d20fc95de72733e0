package intake

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalized is the canonical form of one raw answer.
// A nil Value means nothing usable was found.
type Normalized struct {
	Value      *string
	Confidence float64
}

// String returns the value or "" when nil.
func (n Normalized) String() string {
	if n.Value == nil {
		return ""
	}
	return *n.Value
}

// Normalize coerces raw voice or OCR text into the canonical form of field.
// Empty or whitespace-only input always yields (nil, 0).
func Normalize(field CanonicalField, raw string) Normalized {
	return NormalizeAt(field, raw, time.Now())
}

// NormalizeAt is Normalize with an explicit clock for date bounds and relative dates.
func NormalizeAt(field CanonicalField, raw string, now time.Time) Normalized {
	if strings.TrimSpace(raw) == "" {
		return Normalized{}
	}

	switch field {
	case FieldFirstName, FieldLastName:
		return normalizeName(raw)
	case FieldDateOfBirth:
		return normalizeDate(raw, now, dateOfBirth)
	case FieldPreferredDate:
		return normalizeDate(raw, now, appointmentDate)
	case FieldSex:
		return normalizeSex(raw)
	case FieldEmail:
		return normalizeEmail(raw)
	case FieldPhone:
		return normalizePhone(raw)
	case FieldAddressStreet:
		return normalizeStreet(raw)
	case FieldAddressCity:
		return normalizeCity(raw)
	case FieldAddressState:
		return normalizeState(raw)
	case FieldAddressZip:
		return normalizeZip(raw)
	case FieldInsuranceProvider:
		return normalizeInsuranceProvider(raw)
	case FieldInsuranceID:
		return normalizeInsuranceID(raw)
	case FieldTest:
		return normalizeTest(raw)
	case FieldReasons, FieldPreferredLocation, FieldPreferredTime:
		return normalizeFreeText(raw)
	default:
		return Normalized{}
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleCase lowercases s and upper-cases the first letter of each word.
// A Caser is stateful, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// ---------- names ----------

var (
	nameStripRE = regexp.MustCompile(`[^\p{L}\s'\-]`)
	cleanNameRE = regexp.MustCompile(`^[A-Z][a-z]+$`)
)

func normalizeName(raw string) Normalized {
	s := collapseSpaces(nameStripRE.ReplaceAllString(raw, ""))
	if len([]rune(s)) < 2 {
		if s == "" {
			return Normalized{Confidence: 0.3}
		}
		return Normalized{Value: strPtr(s), Confidence: 0.3}
	}

	titled := titleCase(s)
	if cleanNameRE.MatchString(titled) {
		return Normalized{Value: strPtr(titled), Confidence: 0.95}
	}
	return Normalized{Value: strPtr(titled), Confidence: 0.8}
}

// ---------- sex ----------

var sexExact = map[string]struct {
	code       string
	confidence float64
}{
	"male":   {"M", 0.95},
	"man":    {"M", 0.95},
	"boy":    {"M", 0.95},
	"m":      {"M", 0.9},
	"female": {"F", 0.95},
	"woman":  {"F", 0.95},
	"girl":   {"F", 0.95},
	"f":      {"F", 0.9},
}

func normalizeSex(raw string) Normalized {
	s := strings.ToLower(collapseSpaces(raw))
	if hit, ok := sexExact[s]; ok {
		return Normalized{Value: strPtr(hit.code), Confidence: hit.confidence}
	}

	// Female terms contain the male ones ("woman", "female"), so they go first.
	for _, term := range []string{"female", "woman", "girl"} {
		if strings.Contains(s, term) {
			return Normalized{Value: strPtr("F"), Confidence: 0.8}
		}
	}
	for _, term := range []string{"male", "man", "boy"} {
		if strings.Contains(s, term) {
			return Normalized{Value: strPtr("M"), Confidence: 0.8}
		}
	}
	return Normalized{Value: strPtr(strings.TrimSpace(raw)), Confidence: 0.3}
}

// ---------- email ----------

var emailRE = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

func normalizeEmail(raw string) Normalized {
	s := " " + strings.ToLower(collapseSpaces(raw)) + " "
	s = strings.ReplaceAll(s, " at ", "@")
	s = strings.ReplaceAll(s, " dot ", ".")
	s = strings.Join(strings.Fields(s), "")

	switch {
	case emailRE.MatchString(s):
		return Normalized{Value: strPtr(s), Confidence: 0.95}
	case strings.Contains(s, "@") && strings.Contains(s, "."):
		return Normalized{Value: strPtr(s), Confidence: 0.5}
	default:
		return Normalized{Value: strPtr(s), Confidence: 0.2}
	}
}

// ---------- phone ----------

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizePhone(raw string) Normalized {
	digits := digitsOnly(raw)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	switch {
	case digits == "":
		return Normalized{Value: strPtr(strings.TrimSpace(raw)), Confidence: 0.2}
	case len(digits) == 10:
		formatted := "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
		return Normalized{Value: strPtr(formatted), Confidence: 0.95}
	default:
		return Normalized{Value: strPtr(digits), Confidence: 0.45}
	}
}

// ---------- insurance ----------

// insuranceCarriers is ordered so longer variants match before their prefixes.
var insuranceCarriers = []struct {
	variant string
	name    string
}{
	{"blue cross blue shield", "Blue Cross Blue Shield"},
	{"bluecross blueshield", "Blue Cross Blue Shield"},
	{"bcbs", "Blue Cross Blue Shield"},
	{"blue cross", "Blue Cross Blue Shield"},
	{"blue shield", "Blue Cross Blue Shield"},
	{"anthem", "Anthem"},
	{"unitedhealthcare", "UnitedHealthcare"},
	{"united healthcare", "UnitedHealthcare"},
	{"united health", "UnitedHealthcare"},
	{"uhc", "UnitedHealthcare"},
	{"aetna", "Aetna"},
	{"cigna", "Cigna"},
	{"humana", "Humana"},
	{"kaiser", "Kaiser Permanente"},
	{"medicare", "Medicare"},
	{"medicaid", "Medicaid"},
	{"tricare", "TRICARE"},
	{"molina", "Molina Healthcare"},
	{"ambetter", "Ambetter"},
	{"oscar", "Oscar Health"},
	{"highmark", "Highmark"},
	{"wellcare", "WellCare"},
	{"health net", "Health Net"},
}

func normalizeInsuranceProvider(raw string) Normalized {
	s := strings.ToLower(collapseSpaces(raw))
	for _, c := range insuranceCarriers {
		if strings.Contains(s, c.variant) {
			return Normalized{Value: strPtr(c.name), Confidence: 0.95}
		}
	}
	return Normalized{Value: strPtr(titleCase(collapseSpaces(raw))), Confidence: 0.7}
}

func normalizeInsuranceID(raw string) Normalized {
	s := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(raw))
	s = strings.ToUpper(s)

	alnum := s != ""
	for _, r := range s {
		if !unicode.IsDigit(r) && !(r >= 'A' && r <= 'Z') {
			alnum = false
			break
		}
	}

	n := len([]rune(s))
	switch {
	case alnum && n >= 6 && n <= 15:
		return Normalized{Value: strPtr(s), Confidence: 0.9}
	case alnum && n >= 3 && n <= 5:
		return Normalized{Value: strPtr(s), Confidence: 0.7}
	case n >= 3:
		return Normalized{Value: strPtr(s), Confidence: 0.5}
	default:
		return Normalized{Value: strPtr(s), Confidence: 0.2}
	}
}

// ---------- free text ----------

// labTests maps spoken full names of common orders to their display names.
var labTests = map[string]string{
	"complete blood count":          "Complete Blood Count",
	"comprehensive metabolic panel": "Comprehensive Metabolic Panel",
	"basic metabolic panel":         "Basic Metabolic Panel",
	"lipid panel":                   "Lipid Panel",
	"cholesterol panel":             "Lipid Panel",
	"hemoglobin a1c":                "Hemoglobin A1c",
	"thyroid panel":                 "Thyroid Panel",
	"thyroid stimulating hormone":   "TSH",
	"vitamin d":                     "Vitamin D",
	"urinalysis":                    "Urinalysis",
	"urine test":                    "Urinalysis",
}

func normalizeTest(raw string) Normalized {
	s := collapseSpaces(raw)
	if name, ok := labTests[strings.ToLower(s)]; ok {
		return Normalized{Value: strPtr(name), Confidence: 0.9}
	}
	return Normalized{Value: strPtr(s), Confidence: 0.8}
}

func normalizeFreeText(raw string) Normalized {
	return Normalized{Value: strPtr(collapseSpaces(raw)), Confidence: 0.8}
}
