package tak

import (
	"github.com/clinsight/takforge/errors"
)

// ErrMalformed marks a definition missing a required attribute for its
// concept type. Malformed definitions are rejected before generation and
// never retried.
var ErrMalformed = errors.New("malformed definition")

func malformedf(id string, format string, args ...interface{}) error {
	err := errors.Wrapf(ErrMalformed, format, args...)
	return errors.WithDetailf(err, "definition id: %s", id)
}

// Validate checks that the definition carries every attribute its concept
// type requires. It reports the first defect found; a nil return means the
// definition may be sent to the oracle.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.Wrap(ErrMalformed, "definition has empty id")
	}
	if d.Name == "" {
		return malformedf(d.ID, "definition %s has empty name", d.ID)
	}

	if _, err := ParseConceptType(string(d.Type)); err != nil {
		return malformedf(d.ID, "definition %s: %v", d.ID, err)
	}
	if !d.Type.Supported() {
		return malformedf(d.ID, "definition %s has concept type %q, which is reserved but not yet generatable", d.ID, d.Type)
	}

	switch d.Type {
	case ConceptRawNumeric:
		if d.MinValue == nil || d.MaxValue == nil {
			return malformedf(d.ID, "raw-numeric %s requires min_value and max_value", d.ID)
		}
		if *d.MinValue >= *d.MaxValue {
			return malformedf(d.ID, "raw-numeric %s has min_value %v >= max_value %v", d.ID, *d.MinValue, *d.MaxValue)
		}
		if d.Unit == "" {
			return malformedf(d.ID, "raw-numeric %s requires a unit", d.ID)
		}
		if d.Scale == "" {
			return malformedf(d.ID, "raw-numeric %s requires a scale", d.ID)
		}

	case ConceptRawNominal:
		if len(d.NominalValues) == 0 {
			return malformedf(d.ID, "raw-nominal %s requires nominal_values", d.ID)
		}

	case ConceptState:
		if len(d.DerivedFrom) == 0 {
			return malformedf(d.ID, "state %s requires derived_from", d.ID)
		}
		if len(d.Mapping) == 0 {
			return malformedf(d.ID, "state %s requires a bin mapping", d.ID)
		}
		if len(d.StateLabels) != len(d.Mapping)+1 {
			return malformedf(d.ID, "state %s has %d labels for %d boundaries (want %d)",
				d.ID, len(d.StateLabels), len(d.Mapping), len(d.Mapping)+1)
		}
		for i := 1; i < len(d.Mapping); i++ {
			if d.Mapping[i] <= d.Mapping[i-1] {
				return malformedf(d.ID, "state %s mapping is not strictly increasing at index %d (%v after %v)",
					d.ID, i, d.Mapping[i], d.Mapping[i-1])
			}
		}

	case ConceptEvent:
		if len(d.Attributes) == 0 {
			return malformedf(d.ID, "event %s requires attributes", d.ID)
		}

	case ConceptContext:
		if d.InducerID == "" {
			return malformedf(d.ID, "context %s requires inducer_id", d.ID)
		}
		if d.From == "" || d.Until == "" {
			return malformedf(d.ID, "context %s requires from and until clipping rules", d.ID)
		}

	case ConceptTrend:
		if len(d.DerivedFrom) == 0 {
			return malformedf(d.ID, "trend %s requires derived_from", d.ID)
		}
		if d.Thresholds == nil {
			return malformedf(d.ID, "trend %s requires thresholds", d.ID)
		}
	}

	return nil
}
