package tak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsight/takforge/errors"
)

func floatPtr(f float64) *float64 { return &f }

func validState() Definition {
	return Definition{
		ID:          "HR_STATE",
		Name:        "HeartRateState",
		Type:        ConceptState,
		DerivedFrom: []string{"HEART_RATE"},
		Mapping:     []float64{60, 100},
		StateLabels: []string{"Low", "Normal", "High"},
	}
}

func TestValidateState(t *testing.T) {
	def := validState()
	require.NoError(t, def.Validate())
}

func TestValidateMalformedDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"empty id", func(d *Definition) { d.ID = "" }},
		{"empty name", func(d *Definition) { d.Name = "" }},
		{"unknown type", func(d *Definition) { d.Type = "observation" }},
		{"reserved type", func(d *Definition) { d.Type = ConceptPattern }},
		{"no derived_from", func(d *Definition) { d.DerivedFrom = nil }},
		{"no mapping", func(d *Definition) { d.Mapping = nil }},
		{"label count mismatch", func(d *Definition) { d.StateLabels = []string{"Low", "High"} }},
		{"non-increasing mapping", func(d *Definition) { d.Mapping = []float64{100, 60} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validState()
			tt.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "expected ErrMalformed, got: %v", err)
		})
	}
}

func TestValidateRawNumeric(t *testing.T) {
	def := Definition{
		ID:       "HEART_RATE",
		Name:     "HeartRate",
		Type:     ConceptRawNumeric,
		MinValue: floatPtr(0),
		MaxValue: floatPtr(300),
		Unit:     "bpm",
		Scale:    "linear",
	}
	require.NoError(t, def.Validate())

	def.MaxValue = floatPtr(-1)
	err := def.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))

	def.MaxValue = nil
	assert.Error(t, def.Validate())
}

func TestValidateRawNominal(t *testing.T) {
	def := Definition{
		ID:            "SEX",
		Name:          "Sex",
		Type:          ConceptRawNominal,
		NominalValues: []string{"male", "female"},
	}
	require.NoError(t, def.Validate())

	def.NominalValues = nil
	assert.True(t, errors.Is(def.Validate(), ErrMalformed))
}

func TestValidateEvent(t *testing.T) {
	def := Definition{
		ID:         "INSULIN_BOLUS",
		Name:       "InsulinBolus",
		Type:       ConceptEvent,
		Attributes: []string{"DOSE"},
	}
	require.NoError(t, def.Validate())

	def.Attributes = nil
	assert.True(t, errors.Is(def.Validate(), ErrMalformed))
}

func TestValidateContext(t *testing.T) {
	def := Definition{
		ID:        "POST_SURGERY",
		Name:      "PostSurgery",
		Type:      ConceptContext,
		InducerID: "SURGERY_EVENT",
		From:      "event-start",
		Until:     "event-start+72h",
	}
	require.NoError(t, def.Validate())

	def.InducerID = ""
	assert.True(t, errors.Is(def.Validate(), ErrMalformed))
}

func TestValidateTrend(t *testing.T) {
	def := Definition{
		ID:          "GLUCOSE_TREND",
		Name:        "GlucoseTrend",
		Type:        ConceptTrend,
		DerivedFrom: []string{"GLUCOSE"},
		Thresholds:  &TrendThresholds{Increase: 10, Decrease: 10, Significance: 0.5},
	}
	require.NoError(t, def.Validate())

	def.Thresholds = nil
	assert.True(t, errors.Is(def.Validate(), ErrMalformed))
}
