package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestNormalize_EmptyInputIsNullForEveryField(t *testing.T) {
	for _, f := range AllFields {
		for _, raw := range []string{"", "   ", "\t\n"} {
			got := NormalizeAt(f, raw, testNow)
			assert.Nil(t, got.Value, "field %s raw %q", f, raw)
			assert.Zero(t, got.Confidence, "field %s raw %q", f, raw)
		}
	}
}

func TestNormalize_UnknownFieldIsNull(t *testing.T) {
	got := NormalizeAt(CanonicalField("shoeSize"), "42", testNow)
	assert.Nil(t, got.Value)
	assert.Zero(t, got.Confidence)
}

func TestNormalize_Names(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantVal  string
		wantConf float64
		wantNil  bool
	}{
		{name: "clean single token", raw: "john", wantVal: "John", wantConf: 0.95},
		{name: "upper case", raw: "SMITH", wantVal: "Smith", wantConf: 0.95},
		{name: "strips digits and punctuation", raw: "Jo3hn!", wantVal: "John", wantConf: 0.95},
		{name: "two tokens", raw: "mary ann", wantVal: "Mary Ann", wantConf: 0.8},
		{name: "three tokens", raw: "de la cruz", wantVal: "De La Cruz", wantConf: 0.8},
		{name: "too short", raw: "J.", wantVal: "J", wantConf: 0.3},
		{name: "nothing survives", raw: "123", wantNil: true, wantConf: 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAt(FieldFirstName, tt.raw, testNow)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			if tt.wantNil {
				assert.Nil(t, got.Value)
				return
			}
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
		})
	}
}

func TestNormalize_DateOfBirth(t *testing.T) {
	tests := []struct {
		raw      string
		wantVal  string
		wantConf float64
	}{
		{"1990-03-04", "1990-03-04", 0.98},
		{"03/04/1990", "1990-03-04", 0.85},
		{"3-4-1990", "1990-03-04", 0.85},
		{"March 4, 1990", "1990-03-04", 0.95},
		{"march 4th 1990", "1990-03-04", 0.95},
		{"4 March 1990", "1990-03-04", 0.95},
		{"the 4th of march, 1990", "the 4th of march, 1990", 0.3},
		{"Sept. 21st, 1985", "1985-09-21", 0.95},
		{"Sunday, March 4, 1990", "1990-03-04", 0.6},
		{"1990/03/04", "1990-03-04", 0.6},
		{"02/30/1990", "02/30/1990", 0.3},
		{"13/01/1990", "13/01/1990", 0.3},
		{"01/01/1899", "01/01/1899", 0.3},
		{"01/01/2027", "01/01/2027", 0.3},
		{"sometime in spring", "sometime in spring", 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeAt(FieldDateOfBirth, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestNormalize_PreferredDate(t *testing.T) {
	got := NormalizeAt(FieldPreferredDate, "tomorrow", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "2026-03-16", *got.Value)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)

	got = NormalizeAt(FieldPreferredDate, "April 2nd, 2027", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "2027-04-02", *got.Value, "appointments may be in the future")
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	got = NormalizeAt(FieldDateOfBirth, "tomorrow", testNow)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9, "relative words are not birth dates")
}

func TestNormalize_Sex(t *testing.T) {
	tests := []struct {
		raw      string
		wantVal  string
		wantConf float64
	}{
		{"Male", "M", 0.95},
		{"m", "M", 0.9},
		{"WOMAN", "F", 0.95},
		{"f", "F", 0.9},
		{"I'm a female", "F", 0.8},
		{"biologically male", "M", 0.8},
		{"prefer not to say", "prefer not to say", 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeAt(FieldSex, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestNormalize_Email(t *testing.T) {
	tests := []struct {
		raw      string
		wantVal  string
		wantConf float64
	}{
		{"Jane.Doe@Example.com", "jane.doe@example.com", 0.95},
		{"jane at example dot com", "jane@example.com", 0.95},
		{"jane doe at gmail dot com", "janedoe@gmail.com", 0.95},
		{"jane@example.c", "jane@example.c", 0.5},
		{"jane example", "janeexample", 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeAt(FieldEmail, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestNormalize_Phone(t *testing.T) {
	tests := []struct {
		raw      string
		wantVal  string
		wantConf float64
	}{
		{"1 (555) 123-4567", "(555) 123-4567", 0.95},
		{"555.123.4567", "(555) 123-4567", 0.95},
		{"555-12", "55512", 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeAt(FieldPhone, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}

	long := NormalizeAt(FieldPhone, "+44 20 7946 0958", testNow)
	require.NotNil(t, long.Value)
	assert.Equal(t, "442079460958", *long.Value)
	assert.InDelta(t, 0.45, long.Confidence, 1e-9)

	none := NormalizeAt(FieldPhone, "call me maybe", testNow)
	assert.InDelta(t, 0.2, none.Confidence, 1e-9)
}

func TestNormalize_Address(t *testing.T) {
	tests := []struct {
		field    CanonicalField
		raw      string
		wantVal  string
		wantConf float64
	}{
		{FieldAddressStreet, "  123 Main St ", "123 Main St", 0.8},
		{FieldAddressStreet, "123 Main St, Dayton, OH 45402", "123 Main St, Dayton, OH 45402", 0.95},
		{FieldAddressStreet, "Main Street, Springfield, Illinois", "Main Street, Springfield, Illinois", 0.85},
		{FieldAddressStreet, "the blue house", "the blue house", 0.7},
		{FieldAddressCity, "new york", "New York", 0.85},
		{FieldAddressCity, "x", "x", 0.3},
		{FieldAddressState, "ohio", "OH", 0.95},
		{FieldAddressState, "n.y.", "NY", 0.95},
		{FieldAddressState, "cascadia", "Cascadia", 0.5},
		{FieldAddressZip, "zip is 45402", "45402", 0.95},
		{FieldAddressZip, "45402-1234", "45402-1234", 0.95},
		{FieldAddressZip, "4540", "4540", 0.4},
	}
	for _, tt := range tests {
		t.Run(string(tt.field)+"/"+tt.raw, func(t *testing.T) {
			got := NormalizeAt(tt.field, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestNormalize_Insurance(t *testing.T) {
	got := NormalizeAt(FieldInsuranceProvider, "I have blue cross blue shield of texas", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "Blue Cross Blue Shield", *got.Value)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)

	got = NormalizeAt(FieldInsuranceProvider, "acme health plan", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "Acme Health Plan", *got.Value)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)

	ids := []struct {
		raw      string
		wantVal  string
		wantConf float64
	}{
		{"abc-123 456", "ABC123456", 0.9},
		{"x12", "X12", 0.7},
		{"AB#12", "AB#12", 0.5},
		{"a1", "A1", 0.2},
		{"1234567890123456", "1234567890123456", 0.5},
	}
	for _, tt := range ids {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeAt(FieldInsuranceID, tt.raw, testNow)
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.wantVal, *got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestNormalize_FreeText(t *testing.T) {
	got := NormalizeAt(FieldTest, "  complete   blood count ", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "Complete Blood Count", *got.Value)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	got = NormalizeAt(FieldTest, "cbc", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "cbc", *got.Value)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)

	got = NormalizeAt(FieldReasons, "annual   physical", testNow)
	require.NotNil(t, got.Value)
	assert.Equal(t, "annual physical", *got.Value)
}
