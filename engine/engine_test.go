package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsight/takforge/db"
	"github.com/clinsight/takforge/oracle"
	"github.com/clinsight/takforge/oracle/oracletest"
	"github.com/clinsight/takforge/registry"
	"github.com/clinsight/takforge/tak"
	"github.com/clinsight/takforge/tak/template"
)

const stateTemplate = `<state id="" name="">
  <persistence good-before="" good-after="" downward-hereditary=""/>
  <derived-from>
    <concept id=""/>
  </derived-from>
  <mapping-function rank-criteria="">
    <bin label="" lower="" upper=""/>
  </mapping-function>
</state>`

const goodArtifact = `<state id="HR_STATE" name="Heart Rate State">
  <persistence good-before="4h" good-after="8h" downward-hereditary="true"/>
  <derived-from><concept id="HR_RAW"/></derived-from>
  <mapping-function rank-criteria="value">
    <bin label="Low" upper="60"/>
    <bin label="Normal" lower="60" upper="100"/>
    <bin label="High" lower="100"/>
  </mapping-function>
</state>`

// Structurally valid, business-rejected: wrong good-before window.
const staleWindowArtifact = `<state id="HR_STATE" name="Heart Rate State">
  <persistence good-before="5h" good-after="8h" downward-hereditary="true"/>
  <derived-from><concept id="HR_RAW"/></derived-from>
  <mapping-function rank-criteria="value">
    <bin label="Low" upper="60"/>
    <bin label="Normal" lower="60" upper="100"/>
    <bin label="High" lower="100"/>
  </mapping-function>
</state>`

// Missing mapping-function entirely: a structural rejection.
const shapelessArtifact = `<state id="HR_STATE" name="Heart Rate State">
  <persistence good-before="4h" good-after="8h" downward-hereditary="true"/>
  <derived-from><concept id="HR_RAW"/></derived-from>
</state>`

// Duplicated mapping-function: structurally sound, business-ambiguous.
const ambiguousArtifact = `<state id="HR_STATE" name="Heart Rate State">
  <persistence good-before="4h" good-after="8h" downward-hereditary="true"/>
  <derived-from><concept id="HR_RAW"/></derived-from>
  <mapping-function rank-criteria="value">
    <bin label="Low" upper="60"/>
    <bin label="Normal" lower="60" upper="100"/>
    <bin label="High" lower="100"/>
  </mapping-function>
  <mapping-function rank-criteria="value">
    <bin label="Low" upper="60"/>
    <bin label="Normal" lower="60" upper="100"/>
    <bin label="High" lower="100"/>
  </mapping-function>
</state>`

func hrStateDef() tak.Definition {
	return tak.Definition{
		ID:   "HR_STATE",
		Name: "Heart Rate State",
		Type: tak.ConceptState,
		Persistence: tak.Persistence{
			GoodBefore: 4, GoodBeforeUnit: "h",
			GoodAfter: 8, GoodAfterUnit: "h",
			DownwardHereditary: true,
		},
		DerivedFrom:  []string{"HR_RAW"},
		Mapping:      []float64{60, 100},
		StateLabels:  []string{"Low", "Normal", "High"},
		RankCriteria: "value",
	}
}

type fixture struct {
	engine    *Engine
	registry  *registry.Registry
	outputDir string
}

func newFixture(t *testing.T, o oracle.Oracle, opts Options) *fixture {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, nil))
	reg := registry.New(conn)

	templateDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(templateDir, "state.xml"), []byte(stateTemplate), 0o644))
	templates, err := template.Load(templateDir)
	require.NoError(t, err)

	opts.OutputDir = filepath.Join(t.TempDir(), "TAKs")
	return &fixture{
		engine:    New(o, reg, templates, opts, nil),
		registry:  reg,
		outputDir: opts.OutputDir,
	}
}

func (f *fixture) artifactPath(name string) string {
	return filepath.Join(f.outputDir, "states", name)
}

func TestRunValidFirstAttempt(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: goodArtifact, TokenCost: 350})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 350, summary.TokenCost)
	require.Len(t, summary.Outcomes, 1)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionValid, outcome.Disposition)
	assert.Equal(t, 1, outcome.AttemptsUsed)
	assert.Equal(t, f.artifactPath("STATE_HR_STATE.xml"), outcome.OutputPath)
	assert.FileExists(t, outcome.OutputPath)

	entry, err := f.registry.Get(context.Background(), "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, registry.DispositionValid, entry.Disposition)
	assert.Equal(t, 350, entry.TotalTokenCost)
	assert.Equal(t, summary.RunID, entry.RunID)

	usages, err := f.registry.UsageForRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Len(t, usages, 1)
}

func TestRunSkipsResolvedDefinition(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: goodArtifact})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})
	ctx := context.Background()

	_, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)
	require.Equal(t, 1, scripted.Calls())

	summary, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Valid)
	assert.Equal(t, 1, scripted.Calls(), "skip must not consult the oracle")
	assert.True(t, summary.Outcomes[0].Skipped)
	assert.Equal(t, registry.DispositionValid, summary.Outcomes[0].Disposition)
}

func TestRunForceRegenerates(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: goodArtifact})
	f := newFixture(t, scripted, Options{MaxAttempts: 3, Force: true})
	ctx := context.Background()

	_, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)
	_, err = f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	assert.Equal(t, 2, scripted.Calls())
}

func TestRetryCarriesFeedback(t *testing.T) {
	scripted := oracletest.NewScripted(
		oracletest.Step{Artifact: shapelessArtifact, TokenCost: 200},
		oracletest.Step{Artifact: goodArtifact, TokenCost: 300},
	)
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionValid, outcome.Disposition)
	assert.Equal(t, 2, outcome.AttemptsUsed)
	assert.Equal(t, 500, outcome.TokenCost)

	reqs := scripted.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].Prompt, "rejected")
	assert.Contains(t, reqs[1].Prompt, "mapping-function")
	assert.Contains(t, reqs[1].Prompt, "Your previous attempt")
	assert.Equal(t, reqs[0].System, reqs[1].System)
}

func TestBudgetExhaustedMarksInvalid(t *testing.T) {
	// Three distinct rejected artifacts so the duplicate short-circuit
	// does not fire early.
	second := "<!-- 2 -->\n" + staleWindowArtifact
	third := "<!-- 3 -->\n" + staleWindowArtifact
	scripted := oracletest.NewScripted(
		oracletest.Step{Artifact: staleWindowArtifact, TokenCost: 100},
		oracletest.Step{Artifact: second, TokenCost: 150},
		oracletest.Step{Artifact: third, TokenCost: 200},
	)
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionInvalid, outcome.Disposition)
	assert.Equal(t, 3, outcome.AttemptsUsed)
	assert.Equal(t, 450, outcome.TokenCost, "token cost sums across every attempt")
	assert.Equal(t, 3, scripted.Calls())

	assert.FileExists(t, f.artifactPath("STATE_INVALID_HR_STATE.xml"))
	assert.NoFileExists(t, f.artifactPath("STATE_HR_STATE.xml"))

	entry, err := f.registry.Get(context.Background(), "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, 450, entry.TotalTokenCost)
	assert.Equal(t, 3, entry.AttemptsUsed)
}

func TestDuplicateArtifactShortCircuits(t *testing.T) {
	scripted := oracletest.NewScripted(
		oracletest.Step{Artifact: staleWindowArtifact},
		oracletest.Step{Artifact: staleWindowArtifact},
	)
	f := newFixture(t, scripted, Options{MaxAttempts: 5})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionInvalid, outcome.Disposition)
	assert.Equal(t, 2, outcome.AttemptsUsed)
	assert.Equal(t, 2, scripted.Calls(), "remaining budget is abandoned")
	assert.Contains(t, outcome.Reason, "repeated")
}

func TestUncertainGoesToReviewWithoutRetry(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: ambiguousArtifact, TokenCost: 120})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionNeedsReview, outcome.Disposition)
	assert.Equal(t, 1, outcome.AttemptsUsed)
	assert.Equal(t, 1, scripted.Calls(), "uncertainty is not retried")
	assert.FileExists(t, f.artifactPath("STATE_VALIDATE_HR_STATE.xml"))

	entry, err := f.registry.Get(context.Background(), "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, registry.DispositionNeedsReview, entry.Disposition)
}

func TestReviewedDefinitionIsNotReprocessed(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: ambiguousArtifact})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})
	ctx := context.Background()

	_, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	summary, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, scripted.Calls())
}

func TestMalformedDefinitionRejectedBeforeGeneration(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: goodArtifact})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	def := hrStateDef()
	def.DerivedFrom = nil

	summary, err := f.engine.Run(context.Background(), []tak.Definition{def})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionInvalid, outcome.Disposition)
	assert.Zero(t, outcome.AttemptsUsed)
	assert.Zero(t, scripted.Calls(), "malformed definitions never reach the oracle")

	entry, err := f.registry.Get(context.Background(), "HR_STATE")
	require.NoError(t, err)
	assert.Equal(t, registry.DispositionInvalid, entry.Disposition)
}

func TestOracleFailureConsumesAttempt(t *testing.T) {
	scripted := oracletest.NewScripted(
		oracletest.Step{Err: oracle.ErrUnavailable},
		oracletest.Step{Artifact: goodArtifact, TokenCost: 280},
	)
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionValid, outcome.Disposition)
	assert.Equal(t, 2, outcome.AttemptsUsed)
	assert.Equal(t, 280, outcome.TokenCost, "failed calls bill nothing")

	usages, err := f.registry.UsageForRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, 2, usages[0].Attempt)
}

func TestOracleOutageExhaustsBudget(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Err: oracle.ErrUnavailable})
	f := newFixture(t, scripted, Options{MaxAttempts: 3})

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	outcome := summary.Outcomes[0]
	assert.Equal(t, registry.DispositionInvalid, outcome.Disposition)
	assert.Equal(t, 3, outcome.AttemptsUsed)
	assert.Equal(t, 3, scripted.Calls())
	assert.Empty(t, outcome.OutputPath, "no artifact to write")
}

func TestTestModeProcessesOneDefinition(t *testing.T) {
	scripted := oracletest.NewScripted(oracletest.Step{Artifact: goodArtifact})
	f := newFixture(t, scripted, Options{MaxAttempts: 3, TestMode: true})

	other := hrStateDef()
	other.ID = "HR_STATE_2"
	other.Name = "Second State"

	summary, err := f.engine.Run(context.Background(), []tak.Definition{hrStateDef(), other})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, scripted.Calls())
}

func TestInvalidArtifactReplacedOnLaterSuccess(t *testing.T) {
	scripted := oracletest.NewScripted(
		oracletest.Step{Artifact: staleWindowArtifact},
		oracletest.Step{Artifact: staleWindowArtifact},
		oracletest.Step{Artifact: goodArtifact},
	)
	f := newFixture(t, scripted, Options{MaxAttempts: 1})
	ctx := context.Background()

	// First run exhausts its single attempt; invalid rows do not block
	// reprocessing on the next run.
	_, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)
	assert.FileExists(t, f.artifactPath("STATE_INVALID_HR_STATE.xml"))

	_, err = f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)

	summary, err := f.engine.Run(ctx, []tak.Definition{hrStateDef()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Valid)
	assert.FileExists(t, f.artifactPath("STATE_HR_STATE.xml"))
	assert.NoFileExists(t, f.artifactPath("STATE_INVALID_HR_STATE.xml"))
}
