// Package engine wires together graph, fingerprint, template and process
// into the top-level driver: it holds the registry, the fingerprint store,
// global flags (clean mode, display mode, placement mode), the
// command-template factories, and the Build entry point. It implements
// graph.Host so the graph package never needs to import it.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/embedfw/buildcore/buildlog"
	"github.com/embedfw/buildcore/fingerprint"
	"github.com/embedfw/buildcore/graph"
	"github.com/embedfw/buildcore/metrics"
	"github.com/embedfw/buildcore/process"
	"github.com/embedfw/buildcore/template"
)

// Engine is the top-level build driver. Exactly one should exist per
// invocation; unlike the source implementation's process-globals, every
// piece of run state lives on this value.
type Engine struct {
	registry     *graph.Registry
	fingerprints *fingerprint.Store
	recorder     *metrics.Recorder

	BuildDir      string
	PlacementMode PlacementMode
	DisplayMode   DisplayMode
	Clean         bool

	globalForceRebuild bool
	outputDirCreated   bool

	// depResults holds the parsed header-dependency list for each source
	// path, populated by a dep target's post-hook and consumed by the
	// matching compile target's pre-hook.
	depResults map[string][]string

	compConfig fingerprint.CompConfig
	linkConfig fingerprint.LinkConfig

	// cleanErrs accumulates real (not "already gone") removal failures
	// encountered during a clean-mode run. These are never fatal — clean
	// mode always exits 0 per its contract — but are surfaced to the
	// caller for a post-run diagnostic summary.
	cleanErrs *multierror.Error
}

// New creates an Engine rooted at buildDir. recorder may be nil, in which
// case metrics are silently dropped.
func New(buildDir string, placement PlacementMode, disp DisplayMode, clean bool, recorder *metrics.Recorder) *Engine {
	return &Engine{
		registry:      graph.NewRegistry(),
		fingerprints:  fingerprint.NewStore(buildDir, clean),
		recorder:      recorder,
		BuildDir:      buildDir,
		PlacementMode: placement,
		DisplayMode:   disp,
		Clean:         clean,
		depResults:    map[string][]string{},
	}
}

// Registry implements graph.Host.
func (e *Engine) Registry() *graph.Registry { return e.registry }

// CleanMode implements graph.Host.
func (e *Engine) CleanMode() bool { return e.Clean }

// GlobalForceRebuild implements graph.Host.
func (e *Engine) GlobalForceRebuild() bool { return e.globalForceRebuild }

// SetCompConfig records the compile-class configuration fields this engine
// run is building with, for fingerprinting.
func (e *Engine) SetCompConfig(cfg fingerprint.CompConfig) { e.compConfig = cfg }

// SetLinkConfig records the link-class configuration fields this engine run
// is building with, for fingerprinting.
func (e *Engine) SetLinkConfig(cfg fingerprint.LinkConfig) { e.linkConfig = cfg }

// CheckCompFingerprint compares the current comp-class configuration
// against the one persisted from the previous run. A mismatch sets
// GlobalForceRebuild and logs a notice; callers invoke this once, before
// starting the build traversal.
func (e *Engine) CheckCompFingerprint() (bool, error) {
	differed, err := e.fingerprints.CompareAndStore("comp", e.compConfig.Fields())
	if err != nil {
		return false, err
	}
	if differed {
		e.globalForceRebuild = true
		buildlog.Notice("Forcing rebuild due to configuration change")
	}
	return differed, nil
}

// CheckLinkFingerprint compares the current link-class configuration
// against the one persisted from the previous run, setting linkTarget's
// ForceRebuild flag on mismatch. Callers invoke this at the moment the link
// target is constructed.
func (e *Engine) CheckLinkFingerprint(linkTarget *graph.Target) (bool, error) {
	differed, err := e.fingerprints.CompareAndStore("link", e.linkConfig.Fields())
	if err != nil {
		return false, err
	}
	if differed {
		linkTarget.ForceRebuild = true
	}
	return differed, nil
}

// DepResults returns the parsed dependency list most recently stored for
// source by a dep target's post-hook, or nil if none has run yet.
func (e *Engine) DepResults(source string) []string {
	return e.depResults[source]
}

// setDepResults is called by the dep-target post-hook installed in
// headerpipeline.go.
func (e *Engine) setDepResults(source string, deps []string) {
	e.depResults[source] = deps
}

// Build looks up targetName in the registry and runs its build traversal.
// In clean mode, the persisted fingerprint files are removed once the
// traversal completes.
func (e *Engine) Build(targetName string) error {
	root, ok := e.registry.Lookup(targetName)
	if !ok {
		all := e.registry.AllTargets()
		available := make([]AvailableTarget, 0, len(all))
		for _, t := range all {
			available = append(available, AvailableTarget{Name: t.Name, Help: t.Help})
		}
		sort.Slice(available, func(i, j int) bool { return available[i].Name < available[j].Name })
		return &TargetNotFoundError{Name: targetName, Available: available}
	}

	stale, err := root.Build(e)
	if err != nil {
		return err
	}
	if !stale {
		buildlog.UpToDate(targetName)
	}

	if e.Clean {
		if err := e.fingerprints.Remove(); err != nil {
			return err
		}
	}
	return nil
}

// ensureBuildDir lazily creates BuildDir the first time any target's
// command is executed, rather than up front, so a run that executes no
// command does not create it here.
func (e *Engine) ensureBuildDir() error {
	if e.outputDirCreated || e.BuildDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.BuildDir, 0755); err != nil {
		return err
	}
	e.outputDirCreated = true
	return nil
}

// Execute implements graph.Host. It is only ever called with a target whose
// Command is not none and whose staleness already warranted running it.
func (e *Engine) Execute(t *graph.Target, resolved []graph.Buildable, depends string) (ran bool, keep bool, err error) {
	if err := e.ensureBuildDir(); err != nil {
		return false, false, err
	}

	if e.Clean {
		return e.executeClean(t)
	}

	start := time.Now()
	switch {
	case t.Command.IsTemplate():
		ran, keep, err = e.executeTemplate(t, resolved, depends)
	case t.Command.IsThunk():
		ran, keep, err = e.executeThunk(t, resolved)
	default:
		return false, true, nil
	}
	outcome := metrics.OutcomeRan
	if err != nil {
		outcome = metrics.OutcomeFailed
	} else if !ran {
		outcome = metrics.OutcomeSkipped
	}
	e.recorder.Observe(kindLabel(t.Kind), outcome, time.Since(start))
	return ran, keep, err
}

func (e *Engine) executeTemplate(t *graph.Target, resolved []graph.Buildable, depends string) (bool, bool, error) {
	first := ""
	if len(resolved) > 0 {
		if name, ok := resolved[0].TargetName(); ok {
			first = name
		}
	}
	command := template.Expand(t.Command.Template(), t.Name, depends, first)

	if e.DisplayMode == DisplayAll {
		buildlog.Command(t.Name, command)
	} else {
		buildlog.Label(t.Kind.Label(), t.Name)
	}

	result, err := process.RunShell("", command)
	if err != nil {
		return false, false, &BuildError{Target: t.Name, Command: command, Err: err}
	}
	if result.ExitCode != 0 {
		os.Stderr.Write(result.Stderr)
		return false, false, &BuildError{Target: t.Name, Command: command, Binary: diagnosticBinary(command), ExitCode: result.ExitCode}
	}
	return true, true, nil
}

// diagnosticBinary recovers the first argv token of a failed command, for
// inclusion in its BuildError, by tokenizing it the same way the shell that
// ran it would have. Returns "" if the command doesn't tokenize (eg.
// unbalanced quoting) rather than failing the diagnostic outright.
func diagnosticBinary(command string) string {
	argv, err := process.Split(command)
	if err != nil || len(argv) == 0 {
		return ""
	}
	return argv[0]
}

func (e *Engine) executeThunk(t *graph.Target, resolved []graph.Buildable) (bool, bool, error) {
	if e.DisplayMode != DisplayAll {
		buildlog.Label(t.Kind.Label(), t.Name)
	}
	code, err := t.Command.Thunk()(t.Name, resolved, t.ExtraArgs)
	if err != nil {
		return false, false, &BuildError{Target: t.Name, ExitCode: code, Err: err}
	}
	switch code {
	case 0:
		return true, true, nil
	case 1:
		// Sentinel: ran and succeeded, but don't mark as executed — parents
		// must see this target as fresh.
		return true, false, nil
	default:
		return false, false, &BuildError{Target: t.Name, ExitCode: code}
	}
}

// executeClean replaces a target's command with output removal, per the
// engine's clean-mode contract: every non-phony target's output file is
// removed, success or failure both print a line, and removal failure never
// aborts the run.
func (e *Engine) executeClean(t *graph.Target) (bool, bool, error) {
	name, ok := t.TargetName()
	if !ok {
		return true, true, nil
	}
	if err := os.Remove(name); err != nil {
		buildlog.CleanFailed(name)
		if !os.IsNotExist(err) {
			e.cleanErrs = multierror.Append(e.cleanErrs, fmt.Errorf("%s: %w", name, err))
		}
		return true, true, nil
	}
	buildlog.Cleaned(name)
	return true, true, nil
}

// CleanErrors returns the real (not merely "already absent") removal
// failures accumulated during a clean-mode run, or nil if there were none.
func (e *Engine) CleanErrors() error {
	if e.cleanErrs == nil {
		return nil
	}
	return e.cleanErrs.ErrorOrNil()
}

func kindLabel(k graph.Kind) string {
	switch k {
	case graph.KindCompile:
		return "compile"
	case graph.KindAssemble:
		return "assemble"
	case graph.KindDepend:
		return "depend"
	case graph.KindLink:
		return "link"
	case graph.KindPhony:
		return "phony"
	default:
		return "generic"
	}
}

// CompileTemplate synthesizes a compile command-template string from a
// compiler executable and structured flag/define/include lists.
func (e *Engine) CompileTemplate(compiler string, flags, defines, includes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", compiler)
	for _, f := range flags {
		fmt.Fprintf(&b, " %s", f)
	}
	for _, d := range defines {
		fmt.Fprintf(&b, " -D%s", template.Quote(d))
	}
	for _, i := range includes {
		fmt.Fprintf(&b, " -I%s", template.Quote(i))
	}
	fmt.Fprintf(&b, " -c -o $(TARGET) $(FIRST)")
	return b.String()
}

// AssembleTemplate synthesizes an assemble command-template string from an
// assembler executable and a flag list.
func (e *Engine) AssembleTemplate(assembler string, flags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", assembler)
	for _, f := range flags {
		fmt.Fprintf(&b, " %s", f)
	}
	fmt.Fprintf(&b, " -c -o $(TARGET) $(FIRST)")
	return b.String()
}

// DependTemplate synthesizes the compiler-invocation template used to emit
// a Make-style .d dependency file for a single source, redirected to
// $(TARGET).
func DependTemplate(compiler, dependFlag string, defines, includes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", compiler, dependFlag)
	for _, d := range defines {
		fmt.Fprintf(&b, " -D%s", template.Quote(d))
	}
	for _, i := range includes {
		fmt.Fprintf(&b, " -I%s", template.Quote(i))
	}
	fmt.Fprintf(&b, " $(FIRST) > $(TARGET)")
	return b.String()
}

// LinkTemplate synthesizes a link command-template string from a linker
// executable, a flag list and a library list.
func (e *Engine) LinkTemplate(linker string, flags, libs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", linker)
	for _, f := range flags {
		fmt.Fprintf(&b, " %s", f)
	}
	fmt.Fprintf(&b, " -o $(TARGET) $(DEPENDS)")
	for _, l := range libs {
		fmt.Fprintf(&b, " -l%s", l)
	}
	return b.String()
}

// executableName appends the platform executable extension to name if it
// has no extension of its own, per the link target's output-naming rule.
func executableName(name string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
