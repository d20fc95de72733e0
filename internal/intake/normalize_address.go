package intake

import (
	"regexp"
	"strings"
)

var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE",
	"nevada": "NV", "new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI",
	"south carolina": "SC", "south dakota": "SD", "tennessee": "TN", "texas": "TX",
	"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

var stateCodes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(usStates))
	for _, code := range usStates {
		m[code] = struct{}{}
	}
	return m
}()

var (
	// Matched case-sensitively so words like "in" or "or" are not read as states.
	stateAbbrRE = regexp.MustCompile(`\b(A[KLRZ]|C[AOT]|D[CE]|FL|GA|HI|I[ADLN]|K[SY]|LA|M[ADEINOST]|N[CDEHJMVY]|O[HKR]|PA|RI|S[CD]|T[NX]|UT|V[AT]|W[AIVY])\b`)
	zipRE       = regexp.MustCompile(`\b(\d{5})(?:-?(\d{4}))?\b`)
	cityStripRE = regexp.MustCompile(`[^\p{L}\s'.\-]`)
)

func normalizeStreet(raw string) Normalized {
	s := collapseSpaces(raw)
	confidence := 0.7
	if s[0] >= '0' && s[0] <= '9' {
		confidence += 0.1
	}
	if stateAbbrRE.MatchString(s) || zipRE.MatchString(s) || containsStateName(s) {
		confidence += 0.15
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return Normalized{Value: strPtr(s), Confidence: confidence}
}

func containsStateName(s string) bool {
	lower := strings.ToLower(s)
	for name := range usStates {
		if strings.Contains(lower, ", "+name) || strings.HasSuffix(lower, " "+name) {
			return true
		}
	}
	return false
}

func normalizeCity(raw string) Normalized {
	s := collapseSpaces(cityStripRE.ReplaceAllString(raw, ""))
	if len([]rune(s)) < 2 {
		return Normalized{Value: strPtr(collapseSpaces(raw)), Confidence: 0.3}
	}
	return Normalized{Value: strPtr(titleCase(s)), Confidence: 0.85}
}

func normalizeState(raw string) Normalized {
	s := collapseSpaces(strings.ReplaceAll(raw, ".", ""))
	upper := strings.ToUpper(s)
	if _, ok := stateCodes[upper]; ok {
		return Normalized{Value: strPtr(upper), Confidence: 0.95}
	}
	if code, ok := usStates[strings.ToLower(s)]; ok {
		return Normalized{Value: strPtr(code), Confidence: 0.95}
	}
	return Normalized{Value: strPtr(titleCase(s)), Confidence: 0.5}
}

func normalizeZip(raw string) Normalized {
	if m := zipRE.FindStringSubmatch(raw); m != nil {
		zip := m[1]
		if m[2] != "" {
			zip += "-" + m[2]
		}
		return Normalized{Value: strPtr(zip), Confidence: 0.95}
	}
	if digits := digitsOnly(raw); digits != "" {
		return Normalized{Value: strPtr(digits), Confidence: 0.4}
	}
	return Normalized{Value: strPtr(strings.TrimSpace(raw)), Confidence: 0.2}
}
