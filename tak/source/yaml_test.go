package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsight/takforge/tak"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const goodCatalog = `
concepts:
  - id: HEART_RATE
    name: HeartRate
    type: raw-numeric
    min_value: 0
    max_value: 300
    unit: bpm
    scale: linear
    persistence:
      good_before: 12
      good_before_unit: hour
      good_after: 12
      good_after_unit: hour
  - id: HR_STATE
    name: HeartRateState
    type: state
    derived_from: [HEART_RATE]
    mapping: [60, 100]
    state_labels: [Low, Normal, High]
`

func TestCatalogLoad(t *testing.T) {
	cat := NewCatalog(writeCatalog(t, goodCatalog))

	defs, err := cat.Load()
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "HEART_RATE", defs[0].ID)
	assert.Equal(t, tak.ConceptRawNumeric, defs[0].Type)
	assert.Equal(t, 12, defs[0].Persistence.GoodBefore)

	assert.Equal(t, "HR_STATE", defs[1].ID)
	assert.Equal(t, []float64{60, 100}, defs[1].Mapping)
	assert.Equal(t, []string{"Low", "Normal", "High"}, defs[1].StateLabels)
}

func TestCatalogMissingFile(t *testing.T) {
	_, err := NewCatalog(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.Error(t, err)
}

func TestCatalogEmpty(t *testing.T) {
	_, err := NewCatalog(writeCatalog(t, "concepts: []")).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no concepts")
}

func TestCatalogDuplicateIDs(t *testing.T) {
	content := `
concepts:
  - id: HEART_RATE
    name: HeartRate
    type: raw-numeric
  - id: HEART_RATE
    name: HeartRateAgain
    type: raw-nominal
`
	_, err := NewCatalog(writeCatalog(t, content)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate definition id")
}

func TestCatalogUnknownConceptType(t *testing.T) {
	content := `
concepts:
  - id: X
    name: X
    type: observation
`
	_, err := NewCatalog(writeCatalog(t, content)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized concept type")
}

func TestCatalogDanglingReference(t *testing.T) {
	content := `
concepts:
  - id: HR_STATE
    name: HeartRateState
    type: state
    derived_from: [HEART_RATE]
    mapping: [60, 100]
    state_labels: [Low, Normal, High]
`
	_, err := NewCatalog(writeCatalog(t, content)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined id")
}

func TestCatalogDanglingInducer(t *testing.T) {
	content := `
concepts:
  - id: POST_OP
    name: PostOp
    type: context
    inducer_id: SURGERY
    from: event-start
    until: event-start+72h
`
	_, err := NewCatalog(writeCatalog(t, content)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inducer_id")
}
