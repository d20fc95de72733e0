package intake

import "time"

// CanonicalField identifies one of the fixed data slots a booking record can hold.
type CanonicalField string

const (
	FieldTest              CanonicalField = "test"
	FieldReasons           CanonicalField = "reasons"
	FieldPreferredLocation CanonicalField = "preferredLocation"
	FieldPreferredDate     CanonicalField = "preferredDate"
	FieldPreferredTime     CanonicalField = "preferredTime"
	FieldFirstName         CanonicalField = "firstName"
	FieldLastName          CanonicalField = "lastName"
	FieldDateOfBirth       CanonicalField = "dateOfBirth"
	FieldSex               CanonicalField = "sex"
	FieldAddressStreet     CanonicalField = "addressStreet"
	FieldAddressCity       CanonicalField = "addressCity"
	FieldAddressState      CanonicalField = "addressState"
	FieldAddressZip        CanonicalField = "addressZip"
	FieldEmail             CanonicalField = "email"
	FieldPhone             CanonicalField = "phone"
	FieldInsuranceProvider CanonicalField = "insuranceProvider"
	FieldInsuranceID       CanonicalField = "insuranceId"
)

// AllFields lists every canonical field in booking-form order.
var AllFields = []CanonicalField{
	FieldTest,
	FieldReasons,
	FieldPreferredLocation,
	FieldPreferredDate,
	FieldPreferredTime,
	FieldFirstName,
	FieldLastName,
	FieldDateOfBirth,
	FieldSex,
	FieldAddressStreet,
	FieldAddressCity,
	FieldAddressState,
	FieldAddressZip,
	FieldEmail,
	FieldPhone,
	FieldInsuranceProvider,
	FieldInsuranceID,
}

var knownFields = func() map[CanonicalField]struct{} {
	m := make(map[CanonicalField]struct{}, len(AllFields))
	for _, f := range AllFields {
		m[f] = struct{}{}
	}
	return m
}()

// Valid reports whether f belongs to the closed canonical set.
func (f CanonicalField) Valid() bool {
	_, ok := knownFields[f]
	return ok
}

// Source records which pipeline stage produced a value.
type Source string

const (
	SourceRealtime   Source = "realtime"
	SourceRefinement Source = "refinement"
	SourceUser       Source = "user"
)

// ReviewThreshold is the confidence below which an automated value needs a human look.
const ReviewThreshold = 0.7

// FieldValue is the current best-known value for one canonical field.
// A nil Value means the field is empty.
type FieldValue struct {
	Value      *string   `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     Source    `json:"source"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Empty reports whether the value carries no usable text.
func (v FieldValue) Empty() bool {
	return v.Value == nil || *v.Value == ""
}

// String returns the value or "" when empty.
func (v FieldValue) String() string {
	if v.Value == nil {
		return ""
	}
	return *v.Value
}

// NeedsReview reports whether an automated value is below ReviewThreshold.
// User-entered values never need review.
func (v FieldValue) NeedsReview() bool {
	if v.Source == SourceUser {
		return false
	}
	return v.Confidence < ReviewThreshold
}

// FieldMap holds at most one value per canonical field.
type FieldMap map[CanonicalField]FieldValue

// Clone returns a shallow copy whose value pointers are also copied.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		if v.Value != nil {
			s := *v.Value
			v.Value = &s
		}
		out[k] = v
	}
	return out
}

// LowConfidence returns the populated fields still below ReviewThreshold, in AllFields order.
func (m FieldMap) LowConfidence() []CanonicalField {
	var out []CanonicalField
	for _, f := range AllFields {
		v, ok := m[f]
		if !ok || v.Empty() {
			continue
		}
		if v.NeedsReview() {
			out = append(out, f)
		}
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
