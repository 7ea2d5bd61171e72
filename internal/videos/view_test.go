package videos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPhases(t *testing.T) {
	items := []Item{
		{ID: "q", Status: StatusQueued},
		{ID: "r", Status: StatusAnalyzing, Stage: StageReading},
		{ID: "a", Status: StatusAnalyzing, Stage: StageRequesting},
		{ID: "c", Status: StatusComplete, Result: sampleResult("c")},
		{ID: "e", Status: StatusError, FailureReason: FailureReason},
	}
	cases := map[string]Phase{
		"":     PhaseIdle,
		"q":    PhaseIdle,
		"r":    PhaseReading,
		"a":    PhaseAnalyzing,
		"c":    PhaseComplete,
		"e":    PhaseError,
		"gone": PhaseIdle,
	}
	for id, want := range cases {
		v := Project(items, id)
		assert.Equal(t, want, v.Phase, "selected %q", id)
		assert.True(t, v.ExportEnabled)
		if id == "" || id == "gone" {
			assert.Nil(t, v.Selected)
		} else {
			require.NotNil(t, v.Selected)
			assert.Equal(t, id, v.Selected.ID)
		}
	}
}

func TestProjectExportNeedsACompletedResult(t *testing.T) {
	assert.False(t, Project(nil, "").ExportEnabled)
	assert.False(t, Project([]Item{{ID: "x", Status: StatusError}}, "x").ExportEnabled)
	assert.False(t, Project([]Item{{ID: "x", Status: StatusComplete}}, "x").ExportEnabled)
	assert.True(t, Project([]Item{{ID: "x", Status: StatusComplete, Result: &AnalysisResult{}}}, "").ExportEnabled)
}

func TestProjectIsRepeatable(t *testing.T) {
	items := []Item{{ID: "a", Status: StatusComplete, Result: sampleResult("a")}}
	first := Project(items, "a")
	second := Project(items, "a")
	assert.Equal(t, first, second)

	first.Selected.FileName = "mutated"
	assert.Empty(t, items[0].FileName)
}
