package intake

// Decision records what the merge did with one incoming field.
type Decision string

const (
	DecisionAdopted   Decision = "adopted"   // incoming replaced or filled the field
	DecisionKept      Decision = "kept"      // existing confidence was equal or higher
	DecisionProtected Decision = "protected" // existing value was entered by the user
	DecisionSkipped   Decision = "skipped"   // incoming value was empty
)

// MergeReport lists the per-field decisions of one merge.
type MergeReport map[CanonicalField]Decision

// Adopted returns the fields whose incoming value won, in AllFields order.
func (r MergeReport) Adopted() []CanonicalField {
	var out []CanonicalField
	for _, f := range AllFields {
		if r[f] == DecisionAdopted {
			out = append(out, f)
		}
	}
	return out
}

// Merge folds incoming into existing and returns a new map. Neither input is modified.
//
// Per field, in order: a user-entered existing value always stays; an empty
// incoming value never overwrites; an empty existing slot (or an automated one
// facing a user-entered value) takes the incoming value; otherwise incoming
// wins only with strictly greater confidence.
// Applying the same incoming map twice gives the same result as applying it once.
func Merge(existing, incoming FieldMap) FieldMap {
	merged, _ := MergeWithReport(existing, incoming)
	return merged
}

// Refine applies a second-pass extraction over the real-time map. The rules are
// those of Merge with the refinement as the incoming side, so user edits still win
// and the careful pass only upgrades lower-confidence guesses.
func Refine(realtime, refinement FieldMap) FieldMap {
	merged, _ := MergeWithReport(realtime, refinement)
	return merged
}

// MergeWithReport is Merge that also reports the decision taken for every incoming field.
func MergeWithReport(existing, incoming FieldMap) (FieldMap, MergeReport) {
	out := existing.Clone()
	report := make(MergeReport, len(incoming))

	for field, in := range incoming {
		cur, has := out[field]
		switch {
		case has && cur.Source == SourceUser:
			report[field] = DecisionProtected
		case in.Empty():
			report[field] = DecisionSkipped
		case !has || cur.Empty() || in.Source == SourceUser:
			out[field] = copyValue(in)
			report[field] = DecisionAdopted
		case in.Confidence > cur.Confidence:
			out[field] = copyValue(in)
			report[field] = DecisionAdopted
		default:
			report[field] = DecisionKept
		}
	}
	return out, report
}

func copyValue(v FieldValue) FieldValue {
	if v.Value != nil {
		s := *v.Value
		v.Value = &s
	}
	return v
}
