// Package tak defines the TAKForge data model: temporal-abstraction concept
// types and the business-rule definitions that drive artifact generation.
package tak

import (
	"fmt"
	"strings"

	"github.com/clinsight/takforge/errors"
)

// ConceptType identifies the kind of temporal-abstraction concept a
// definition describes. The enumeration is closed: adding a type means
// adding a template and a business rule set, never touching the engine.
type ConceptType string

const (
	ConceptRawNumeric ConceptType = "raw-numeric"
	ConceptRawNominal ConceptType = "raw-nominal"
	ConceptState      ConceptType = "state"
	ConceptEvent      ConceptType = "event"
	ConceptContext    ConceptType = "context"
	ConceptTrend      ConceptType = "trend"

	// Recognized but not yet generatable. A definition carrying one of
	// these is rejected before any oracle call.
	ConceptPattern  ConceptType = "pattern"
	ConceptScenario ConceptType = "scenario"
)

// ParseConceptType maps a raw string onto the closed enumeration.
func ParseConceptType(s string) (ConceptType, error) {
	ct := ConceptType(strings.ToLower(strings.TrimSpace(s)))
	switch ct {
	case ConceptRawNumeric, ConceptRawNominal, ConceptState, ConceptEvent,
		ConceptContext, ConceptTrend, ConceptPattern, ConceptScenario:
		return ct, nil
	default:
		return "", errors.Newf("unrecognized concept type %q", s)
	}
}

// Supported reports whether the engine can generate artifacts for this type.
func (ct ConceptType) Supported() bool {
	switch ct {
	case ConceptPattern, ConceptScenario:
		return false
	default:
		return true
	}
}

// GroupDir returns the output directory name for this concept type.
// Raw numeric and nominal concepts share a directory.
func (ct ConceptType) GroupDir() string {
	switch ct {
	case ConceptRawNumeric, ConceptRawNominal:
		return "raw_concepts"
	case ConceptState:
		return "states"
	case ConceptEvent:
		return "events"
	case ConceptContext:
		return "contexts"
	case ConceptTrend:
		return "trends"
	default:
		return string(ct)
	}
}

// FilePrefix returns the uppercase artifact filename prefix, e.g. "STATE".
func (ct ConceptType) FilePrefix() string {
	return strings.ToUpper(strings.ReplaceAll(string(ct), "-", "_"))
}

// Persistence holds the temporal persistence flags shared by all concept
// types: validity windows and interpolation semantics.
type Persistence struct {
	GoodBefore     int    `yaml:"good_before"`
	GoodBeforeUnit string `yaml:"good_before_unit"`
	GoodAfter      int    `yaml:"good_after"`
	GoodAfterUnit  string `yaml:"good_after_unit"`

	DownwardHereditary bool `yaml:"downward_hereditary"`
	Forward            bool `yaml:"forward"`
	Backward           bool `yaml:"backward"`
	Solid              bool `yaml:"solid"`
	Concatenable       bool `yaml:"concatenable"`
	Gestalt            bool `yaml:"gestalt"`
}

// TrendThresholds holds the change thresholds for a trend concept.
type TrendThresholds struct {
	Increase     float64 `yaml:"increase"`
	Decrease     float64 `yaml:"decrease"`
	Significance float64 `yaml:"significance"`
}

// Definition is one business-rule record describing a concept to be
// generated. Immutable once loaded; the type-specific attribute set that
// must be present depends on Type.
type Definition struct {
	ID   string      `yaml:"id"`
	Name string      `yaml:"name"`
	Type ConceptType `yaml:"type"`

	Persistence Persistence `yaml:"persistence"`

	// raw-numeric
	MinValue *float64 `yaml:"min_value,omitempty"`
	MaxValue *float64 `yaml:"max_value,omitempty"`
	Unit     string   `yaml:"unit,omitempty"`
	Scale    string   `yaml:"scale,omitempty"`

	// raw-nominal
	NominalValues []string `yaml:"nominal_values,omitempty"`

	// state, trend
	DerivedFrom []string `yaml:"derived_from,omitempty"`

	// state
	Mapping      []float64 `yaml:"mapping,omitempty"`      // ordered bin boundaries
	StateLabels  []string  `yaml:"state_labels,omitempty"` // len(Mapping)+1 labels
	RankCriteria string    `yaml:"rank_criteria,omitempty"`

	// event
	Attributes []string `yaml:"attributes,omitempty"`

	// context
	InducerID string `yaml:"inducer_id,omitempty"`
	From      string `yaml:"from,omitempty"`
	Until     string `yaml:"until,omitempty"`

	// trend
	Thresholds *TrendThresholds `yaml:"thresholds,omitempty"`
}

// ArtifactFilename returns the output filename for this definition with an
// optional disposition marker ("INVALID_" or "VALIDATE_"; empty for valid).
func (d *Definition) ArtifactFilename(marker string) string {
	return fmt.Sprintf("%s_%s%s.xml", d.Type.FilePrefix(), marker, d.ID)
}

// Bins returns the state's value intervals implied by Mapping: one bin
// below the first boundary, one between each adjacent pair, and one above
// the last. Labels align 1:1 with the returned bins.
func (d *Definition) Bins() []Bin {
	if len(d.Mapping) == 0 {
		return nil
	}
	bins := make([]Bin, 0, len(d.Mapping)+1)
	bins = append(bins, Bin{Upper: &d.Mapping[0]})
	for i := 0; i < len(d.Mapping)-1; i++ {
		bins = append(bins, Bin{Lower: &d.Mapping[i], Upper: &d.Mapping[i+1]})
	}
	bins = append(bins, Bin{Lower: &d.Mapping[len(d.Mapping)-1]})
	return bins
}

// Bin is one half-open value interval [Lower, Upper). A nil bound is
// unbounded on that side.
type Bin struct {
	Lower *float64
	Upper *float64
}

// String renders the bin in interval notation for findings and feedback.
func (b Bin) String() string {
	lower, upper := "-inf", "+inf"
	if b.Lower != nil {
		lower = trimFloat(*b.Lower)
	}
	if b.Upper != nil {
		upper = trimFloat(*b.Upper)
	}
	return fmt.Sprintf("[%s, %s)", lower, upper)
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
