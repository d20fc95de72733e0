package intake

import (
	"sort"
	"strings"
	"time"
)

// exactKeys maps normalized key spellings straight to canonical fields.
var exactKeys = map[string]CanonicalField{
	// test
	"test": FieldTest, "tests": FieldTest, "testname": FieldTest, "labtest": FieldTest,
	"testtype": FieldTest, "testrequested": FieldTest, "bloodtest": FieldTest,
	// reasons
	"reason": FieldReasons, "reasons": FieldReasons, "reasonforvisit": FieldReasons,
	"reasonfortest": FieldReasons, "visitreason": FieldReasons, "symptoms": FieldReasons,
	// location
	"location": FieldPreferredLocation, "preferredlocation": FieldPreferredLocation,
	"lablocation": FieldPreferredLocation, "clinic": FieldPreferredLocation,
	"facility": FieldPreferredLocation, "site": FieldPreferredLocation,
	// date and time
	"date": FieldPreferredDate, "preferreddate": FieldPreferredDate,
	"appointmentdate": FieldPreferredDate, "visitdate": FieldPreferredDate,
	"time": FieldPreferredTime, "preferredtime": FieldPreferredTime,
	"appointmenttime": FieldPreferredTime, "timeslot": FieldPreferredTime,
	// names
	"firstname": FieldFirstName, "fname": FieldFirstName, "givenname": FieldFirstName,
	"lastname": FieldLastName, "lname": FieldLastName, "surname": FieldLastName,
	"familyname": FieldLastName,
	// birth
	"dateofbirth": FieldDateOfBirth, "dob": FieldDateOfBirth, "birthdate": FieldDateOfBirth,
	"birthday": FieldDateOfBirth,
	// sex
	"sex": FieldSex, "gender": FieldSex,
	// address
	"addressstreet": FieldAddressStreet, "street": FieldAddressStreet,
	"streetaddress": FieldAddressStreet, "address": FieldAddressStreet,
	"address1": FieldAddressStreet, "addressline1": FieldAddressStreet,
	"homeaddress": FieldAddressStreet, "fulladdress": FieldAddressStreet,
	"addresscity": FieldAddressCity, "homecity": FieldAddressCity,
	"addressstate": FieldAddressState, "homestate": FieldAddressState,
	"addresszip": FieldAddressZip, "addresszipcode": FieldAddressZip, "zip": FieldAddressZip,
	"zipcode": FieldAddressZip, "postalcode": FieldAddressZip, "postcode": FieldAddressZip,
	// contact
	"email": FieldEmail, "emailaddress": FieldEmail, "mail": FieldEmail,
	"phone": FieldPhone, "phonenumber": FieldPhone, "mobile": FieldPhone,
	"cell": FieldPhone, "cellphone": FieldPhone, "telephone": FieldPhone,
	"contactnumber": FieldPhone, "mobilenumber": FieldPhone,
	// insurance
	"insurance": FieldInsuranceProvider, "insuranceprovider": FieldInsuranceProvider,
	"insurancecompany": FieldInsuranceProvider, "insurancecarrier": FieldInsuranceProvider,
	"carrier": FieldInsuranceProvider, "payer": FieldInsuranceProvider,
	"insuranceid": FieldInsuranceID, "memberid": FieldInsuranceID,
	"policynumber": FieldInsuranceID, "policyid": FieldInsuranceID,
	"subscriberid": FieldInsuranceID, "insurancenumber": FieldInsuranceID,
}

// keyPattern matches when the key contains one of any, then (if set) contains
// one of with or ends with one of suffix, and contains none of unless.
type keyPattern struct {
	field  CanonicalField
	any    []string
	with   []string
	suffix []string
	unless []string
}

func (p keyPattern) matches(key string) bool {
	if !containsAny(key, p.any) {
		return false
	}
	if len(p.with)+len(p.suffix) > 0 && !containsAny(key, p.with) && !hasAnySuffix(key, p.suffix) {
		return false
	}
	return !containsAny(key, p.unless)
}

// keyPatterns is evaluated in order. Reasons and tests come before location and
// address; birth comes before the generic date pattern; names need "name"
// together with a first/last qualifier. Short fragments such as "lab", "cell"
// and "tel" also occur inside unrelated words, so those patterns carry
// exclusions for the words seen in vendor payloads.
var keyPatterns = []keyPattern{
	{field: FieldReasons, any: []string{"reason", "symptom", "complaint", "purpose"}},
	{field: FieldTest, any: []string{"test", "panel", "labwork", "bloodwork"}, unless: []string{"date", "time", "location"}},
	{field: FieldDateOfBirth, any: []string{"birth", "dob", "bday"}, unless: []string{"city", "place", "country", "state", "town"}},
	{field: FieldInsuranceID, any: []string{"insurance", "policy", "member", "subscriber"}, with: []string{"number", "num"}, suffix: []string{"id"}},
	{field: FieldInsuranceProvider, any: []string{"insurance", "carrier", "payer"}},
	{field: FieldFirstName, any: []string{"name"}, with: []string{"first", "given"}},
	{field: FieldLastName, any: []string{"name"}, with: []string{"last", "sur", "family"}},
	{field: FieldPreferredDate, any: []string{"date"}, unless: []string{"update"}},
	{field: FieldPreferredTime, any: []string{"time", "slot"}},
	{field: FieldEmail, any: []string{"email", "mail"}, unless: []string{"mailing"}},
	{field: FieldPhone, any: []string{"phone", "mobile", "cell", "tel"}, unless: []string{"cancel", "hotel"}},
	{field: FieldSex, any: []string{"gender", "sex"}},
	{field: FieldAddressZip, any: []string{"zip", "postal"}},
	{field: FieldAddressCity, any: []string{"city"}, with: []string{"address", "home", "residence"}},
	{field: FieldAddressState, any: []string{"state"}, with: []string{"address", "home", "residence"}},
	{field: FieldAddressStreet, any: []string{"street", "addressline", "address"}},
	{field: FieldPreferredLocation, any: []string{"location", "clinic", "facility", "branch", "lab"}, unless: []string{"avail", "label"}},
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// NormalizeKey lowercases a raw key and drops separators.
func NormalizeKey(raw string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "", ".", "").Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// Resolve maps a raw key from an unschematized source onto a canonical field.
// Ambiguous keys such as a bare "city" or "state" stay unresolved.
func Resolve(rawKey string) (CanonicalField, bool) {
	key := NormalizeKey(rawKey)
	if key == "" {
		return "", false
	}
	if f, ok := exactKeys[key]; ok {
		return f, true
	}
	for _, p := range keyPatterns {
		if p.matches(key) {
			return p.field, true
		}
	}
	return "", false
}

// ResolvePairs resolves and normalizes a batch of raw pairs into a FieldMap
// stamped with source. When several keys land on the same field the more
// confident value wins and ties go to the key that sorts first, so the result
// does not depend on map order. Keys that resolve to nothing are returned
// sorted; keys that normalize to no value are skipped.
func ResolvePairs(pairs map[string]string, source Source, now time.Time) (FieldMap, []string) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := FieldMap{}
	var unresolved []string
	for _, key := range keys {
		field, ok := Resolve(key)
		if !ok {
			unresolved = append(unresolved, key)
			continue
		}
		n := NormalizeAt(field, pairs[key], now)
		if n.Value == nil {
			continue
		}
		if cur, seen := out[field]; seen && cur.Confidence >= n.Confidence {
			continue
		}
		out[field] = FieldValue{
			Value:      n.Value,
			Confidence: n.Confidence,
			Source:     source,
			UpdatedAt:  now,
		}
	}
	return out, unresolved
}
