package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedfw/buildcore/fingerprint"
	"github.com/embedfw/buildcore/graph"
)

// Scenario S4: a configuration change with no file mtime changes forces a
// rebuild of a target whose output already exists and is newer than its
// (unchanged) dependencies.
func TestScenarioConfigChangeForcesRebuildDespiteUnchangedTimestamps(t *testing.T) {
	dir := t.TempDir()
	buildDir := filepath.Join(dir, ".build")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(out, []byte("stale contents"), 0644))

	first := New(buildDir, PlacementKeepDir, DisplaySummary, false, nil)
	first.SetCompConfig(fingerprint.CompConfig{CompileTemplate: "cc -O2 -c $(FIRST)"})
	_, err := first.CheckCompFingerprint()
	require.NoError(t, err)

	second := New(buildDir, PlacementKeepDir, DisplaySummary, false, nil)
	second.SetCompConfig(fingerprint.CompConfig{CompileTemplate: "cc -O3 -c $(FIRST)"})
	differed, err := second.CheckCompFingerprint()
	require.NoError(t, err)
	assert.True(t, differed)
	assert.True(t, second.GlobalForceRebuild())

	ran := false
	target := graph.NewTarget(out, graph.KindCompile)
	target.Command = graph.ThunkCommand(func(name string, deps []graph.Buildable, extra interface{}) (int, error) {
		ran = true
		return 0, nil
	})
	second.Registry().Register(target)

	require.NoError(t, second.Build(out))
	assert.True(t, ran, "an existing, otherwise up-to-date target must still rebuild after a configuration change")
}

// Scenario S5: a phony aggregator depending on two targets builds both
// (per their own staleness) and is itself always considered stale, but is
// never subject to clean-mode removal.
func TestScenarioPhonyAggregatorBuildsDepsAndIsNeverCleaned(t *testing.T) {
	dir := t.TempDir()
	appRan, docsRan := false, false

	app := graph.NewTarget(filepath.Join(dir, "app"), graph.KindLink)
	app.Command = graph.ThunkCommand(func(name string, deps []graph.Buildable, extra interface{}) (int, error) {
		appRan = true
		return 0, os.WriteFile(name, []byte("x"), 0644)
	})
	docs := graph.NewTarget(filepath.Join(dir, "docs"), graph.KindGeneric)
	docs.Command = graph.ThunkCommand(func(name string, deps []graph.Buildable, extra interface{}) (int, error) {
		docsRan = true
		return 0, os.WriteFile(name, []byte("x"), 0644)
	})

	aggregator := graph.NewTarget("#phony_all", graph.KindPhony)
	aggregator.RawDeps = graph.Deps(app.Name, docs.Name)

	e := New(filepath.Join(dir, ".build"), PlacementKeepDir, DisplaySummary, false, nil)
	e.Registry().Register(app)
	e.Registry().Register(docs)
	e.Registry().Register(aggregator)

	require.NoError(t, e.Build("#phony_all"))
	assert.True(t, appRan)
	assert.True(t, docsRan)

	// Now run clean mode: the phony aggregator must never be treated as a
	// file to remove, only its non-phony dependencies.
	os.Remove(app.Name)
	require.NoError(t, os.WriteFile(app.Name, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(docs.Name, []byte("x"), 0644))

	cleanApp := graph.NewTarget(app.Name, graph.KindLink)
	cleanApp.Command = graph.TemplateCommand("true")
	cleanDocs := graph.NewTarget(docs.Name, graph.KindGeneric)
	cleanDocs.Command = graph.TemplateCommand("true")
	cleanAggregator := graph.NewTarget("#phony_all", graph.KindPhony)
	cleanAggregator.RawDeps = graph.Deps(cleanApp.Name, cleanDocs.Name)

	clean := New(filepath.Join(dir, ".build"), PlacementKeepDir, DisplaySummary, true, nil)
	clean.Registry().Register(cleanApp)
	clean.Registry().Register(cleanDocs)
	clean.Registry().Register(cleanAggregator)

	require.NoError(t, clean.Build("#phony_all"))
	assert.NoFileExists(t, app.Name)
	assert.NoFileExists(t, docs.Name)
}

// Scenario S6: clean mode removes every non-phony target's output and
// never aborts, even when a removal fails.
func TestScenarioCleanModeNeverAborts(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	absent := filepath.Join(dir, "absent")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))

	e := New(filepath.Join(dir, ".build"), PlacementKeepDir, DisplaySummary, true, nil)
	presentTarget := graph.NewTarget(present, graph.KindCompile)
	presentTarget.Command = graph.TemplateCommand("true")
	absentTarget := graph.NewTarget(absent, graph.KindCompile)
	absentTarget.Command = graph.TemplateCommand("true")
	aggregator := graph.NewTarget("#phony_clean", graph.KindPhony)
	aggregator.RawDeps = graph.Deps(present, absent)
	e.Registry().Register(presentTarget)
	e.Registry().Register(absentTarget)
	e.Registry().Register(aggregator)

	require.NoError(t, e.Build("#phony_clean"))
	assert.NoFileExists(t, present)
	assert.NoError(t, e.CleanErrors(), "a benign already-clean removal must not be reported as an error")
}
