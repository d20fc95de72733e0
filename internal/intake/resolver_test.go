package intake

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		raw  string
		want CanonicalField
		ok   bool
	}{
		// canonical names in any casing
		{"dateOfBirth", FieldDateOfBirth, true},
		{"addressCity", FieldAddressCity, true},
		{"INSURANCE_ID", FieldInsuranceID, true},
		{"first-name", FieldFirstName, true},
		{"Last Name", FieldLastName, true},

		// synonyms
		{"fname", FieldFirstName, true},
		{"dob", FieldDateOfBirth, true},
		{"birthday", FieldDateOfBirth, true},
		{"zip", FieldAddressZip, true},
		{"gender", FieldSex, true},
		{"cell_phone", FieldPhone, true},

		// substring patterns
		{"patient_dob", FieldDateOfBirth, true},
		{"date_of_birthday", FieldDateOfBirth, true},
		{"patientFirstName", FieldFirstName, true},
		{"caller_last_name", FieldLastName, true},
		{"insurance_member_id", FieldInsuranceID, true},
		{"insuranceProviderName", FieldInsuranceProvider, true},
		{"requested_test_name", FieldTest, true},
		{"test_reason", FieldReasons, true},
		{"appointment_date_requested", FieldPreferredDate, true},
		{"home_address_city", FieldAddressCity, true},
		{"mailing_street", FieldAddressStreet, true},
		{"preferred_lab", FieldPreferredLocation, true},
		{"test_location", FieldPreferredLocation, true},
		{"contact_email", FieldEmail, true},

		// generic date is not a birth date
		{"date", FieldPreferredDate, true},

		// ambiguous or unknown keys stay unresolved
		{"city", "", false},
		{"state", "", false},
		{"name", "", false},
		{"full_name", "", false},
		{"favorite_color", "", false},

		// fragments buried in unrelated words
		{"availability", "", false},
		{"available_days", "", false},
		{"cancellation_policy", "", false},
		{"birth_city", "", false},
		{"place_of_birth", "", false},
		{"hotel_name", "", false},
		{"last_updated", "", false},
		{"label", "", false},
		{"", "", false},
		{"  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Resolve(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolve_CanonicalNamesRoundTrip(t *testing.T) {
	for _, f := range AllFields {
		got, ok := Resolve(string(f))
		if !ok || got != f {
			t.Errorf("Resolve(%q) = (%q, %v), want itself", f, got, ok)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey(" Date_Of-Birth "); got != "dateofbirth" {
		t.Fatalf("NormalizeKey = %q", got)
	}
}

func TestResolvePairs_CollidingSynonyms(t *testing.T) {
	pairs := map[string]string{
		"dob":           "1990-03-04",
		"date_of_birth": "04/05/1991",
		"birthday":      "sometime in spring",
		"shoe_size":     "9",
		"hobby":         "chess",
	}
	for i := 0; i < 50; i++ {
		got, unresolved := ResolvePairs(pairs, SourceRefinement, testNow)
		dob, ok := got[FieldDateOfBirth]
		if !ok || dob.String() != "1990-03-04" {
			t.Fatalf("run %d: dob = %q, want the ISO value", i, dob.String())
		}
		if dob.Source != SourceRefinement {
			t.Fatalf("source = %q", dob.Source)
		}
		if len(unresolved) != 2 || unresolved[0] != "hobby" || unresolved[1] != "shoe_size" {
			t.Fatalf("unresolved = %v", unresolved)
		}
	}
}

func TestResolvePairs_TieGoesToFirstKey(t *testing.T) {
	pairs := map[string]string{"mobile": "555 123 4567", "phone": "555 987 6543"}
	for i := 0; i < 50; i++ {
		got, _ := ResolvePairs(pairs, SourceRealtime, testNow)
		if v := got[FieldPhone].String(); v != "(555) 123-4567" {
			t.Fatalf("run %d: phone = %q", i, v)
		}
	}
}
