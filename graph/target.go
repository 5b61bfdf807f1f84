// Package graph implements the build-target graph: construction, deferred
// dependency resolution, and the memoized, topological build traversal.
// It knows nothing about compilers or linkers; it only knows how to decide
// whether a target is stale and to ask its Host to run (or simulate) its
// command.
package graph

import "strings"

// Buildable is implemented by both *Target and *FileDep: anything that can
// sit in a target's resolved dependency list.
type Buildable interface {
	// TargetName returns the filesystem path this node names, and whether
	// it has one at all (phony targets don't).
	TargetName() (string, bool)
	// Build recursively builds this node's dependencies (if any), runs its
	// command if it's stale, and reports whether it was (or counts as)
	// stale to its caller.
	Build(host Host) (bool, error)
}

// Host is the subset of Engine that the graph traversal needs. It exists so
// that this package has no import-time dependency on the engine package,
// avoiding the ownership cycle the teacher avoids between Target and
// BuildState by passing state through the call stack rather than storing it
// on the node.
type Host interface {
	// Registry is the Registry this build run is operating on.
	Registry() *Registry
	// CleanMode reports whether this is a clean run (commands are replaced
	// by output removal).
	CleanMode() bool
	// GlobalForceRebuild reports whether a configuration-fingerprint
	// mismatch has forced every target to rebuild this run.
	GlobalForceRebuild() bool
	// Execute runs (or, in clean mode, simulates) a target's command.
	// ran reports whether the command actually executed (used for
	// display/metrics); keep is false only for the thunk-command
	// "succeeded but do not mark as executed" sentinel.
	Execute(t *Target, resolved []Buildable, depends string) (ran bool, keep bool, err error)
}

// Kind controls only the human-readable label and colour used to display a
// target while it builds.
type Kind int

const (
	KindGeneric Kind = iota
	KindCompile
	KindAssemble
	KindDepend
	KindLink
	KindPhony
)

// Label returns the display verb for this kind, eg. "Compiling".
func (k Kind) Label() string {
	switch k {
	case KindCompile:
		return "Compiling"
	case KindAssemble:
		return "Assembling"
	case KindDepend:
		return "Depending"
	case KindLink:
		return "Linking"
	case KindPhony:
		return "Building"
	default:
		return "Running"
	}
}

// Hook is a callback a target invokes before or after its build, receiving
// itself and whether its command is about to run (or just ran). Returning
// an error aborts the engine, mirroring the fatal treatment of command
// failures; the source's hooks never themselves fail, but a typed engine
// shouldn't force authors to panic to signal a problem.
type Hook func(t *Target, willRun bool) error

// CommandFunc is a callable command: given the target's name, its resolved
// dependencies and its opaque extra-args payload, it runs the build step
// itself and returns an exit code. 0 means success; 1 is a sentinel meaning
// "succeeded, but don't mark this target as having run a command" (parents
// still see it as fresh); anything else is fatal.
type CommandFunc func(targetName string, deps []Buildable, extra interface{}) (int, error)

type commandKind int

const (
	commandNone commandKind = iota
	commandTemplate
	commandThunk
)

// Command is either a literal command-template string, a callable builder,
// or nothing (a pure aggregator target).
type Command struct {
	kind     commandKind
	template string
	thunk    CommandFunc
}

// NoCommand returns the empty command of a pure aggregator target.
func NoCommand() Command { return Command{kind: commandNone} }

// TemplateCommand wraps a command-template string.
func TemplateCommand(tpl string) Command { return Command{kind: commandTemplate, template: tpl} }

// ThunkCommand wraps a callable command builder.
func ThunkCommand(f CommandFunc) Command { return Command{kind: commandThunk, thunk: f} }

// IsNone reports whether this is the empty command.
func (c Command) IsNone() bool { return c.kind == commandNone }

// IsTemplate reports whether this is a string command template.
func (c Command) IsTemplate() bool { return c.kind == commandTemplate }

// IsThunk reports whether this is a callable command.
func (c Command) IsThunk() bool { return c.kind == commandThunk }

// Template returns the command-template string. Only valid if IsTemplate().
func (c Command) Template() string { return c.template }

// Thunk returns the callable command. Only valid if it's a thunk command.
func (c Command) Thunk() CommandFunc { return c.thunk }

// Target is a node in the build graph.
type Target struct {
	// Name is either a filesystem path or a phony name (prefix "#phony").
	Name string
	// Command to run when this target is stale. A target with no command
	// is a pure aggregator.
	Command Command
	// RawDeps is the dependency declaration as originally supplied.
	// Retained (rather than discarded after first resolution) because
	// hooks may rewrite it, requiring re-resolution.
	RawDeps []Dep
	// PreHook and PostHook are optional build-lifecycle callbacks.
	PreHook, PostHook Hook
	// ForceRebuild makes this target rebuild unconditionally.
	ForceRebuild bool
	// ExtraArgs is opaque data passed through to callable commands.
	ExtraArgs interface{}
	// Kind controls only the display label/colour.
	Kind Kind
	// Help is an optional one-line description of this target, shown
	// alongside its name when a requested top-level target isn't found.
	Help string

	// resolvedDeps is the dependency-resolution cache, recomputed before
	// every build attempt.
	resolvedDeps []Buildable
}

// NewTarget creates a new target with no command and no dependencies.
func NewTarget(name string, kind Kind) *Target {
	return &Target{Name: name, Command: NoCommand(), Kind: kind}
}

// IsPhony reports whether name carries the phony-target prefix. Phony
// targets represent abstract goals with no output file: they're always
// stale relative to themselves, and are never considered as a timestamped
// input to a consumer.
func IsPhony(name string) bool {
	return strings.HasPrefix(name, "#phony")
}

// Normalize folds path separators so that "a\b" and "a/b" name the same
// target.
func Normalize(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// TargetName returns the target's name, unless it's phony (phony targets
// have no output file and so no meaningful name for timestamp purposes).
func (t *Target) TargetName() (string, bool) {
	if IsPhony(t.Name) {
		return "", false
	}
	return t.Name, true
}

// ResolvedDeps returns the dependency-resolution cache from the most recent
// build attempt (or resolution) of this target.
func (t *Target) ResolvedDeps() []Buildable {
	return t.resolvedDeps
}

// resolveDeps flattens and resolves t.RawDeps against the given registry,
// caching the result on the target, and returns it.
func (t *Target) resolveDeps(reg *Registry) []Buildable {
	var flat []Dep
	flatten(t.RawDeps, &flat)
	resolved := make([]Buildable, 0, len(flat))
	for _, d := range flat {
		switch d.kind {
		case depKindNode:
			resolved = append(resolved, d.node)
		case depKindRaw:
			for _, tok := range strings.Fields(d.raw) {
				resolved = append(resolved, reg.resolveToken(tok, t.Name))
			}
		}
	}
	t.resolvedDeps = resolved
	return resolved
}

// Build implements the ten-step staleness and execution algorithm described
// in the engine's design: resolve dependencies, decide whether a command
// needs to run, run pre/post hooks (re-resolving if a pre-hook rewrites the
// dependency declaration), execute the command if stale, and memoize.
func (t *Target) Build(host Host) (bool, error) {
	reg := host.Registry()
	if reg.HasRun(t.Name) {
		return false, nil
	}

	// A target with no concrete name (phony) has no output file to be
	// missing, and is unconditionally considered stale; a target with a
	// concrete name is stale here only if its output doesn't exist yet.
	name, hasName := t.TargetName()
	runCommand := !hasName || !isRegularFile(name)
	runCommand = runCommand || host.GlobalForceRebuild()
	initial := runCommand

	depends, runCommand, err := t.evaluateDeps(host, initial)
	if err != nil {
		return false, err
	}

	if t.PreHook != nil {
		before := t.RawDeps
		if err := t.PreHook(t, runCommand); err != nil {
			return false, err
		}
		if !depsEqual(before, t.RawDeps) {
			// The pre-hook redefined the dependency set. Per the engine's
			// contract, this discards whatever staleness any
			// pre-hook-invisible sibling may have contributed and starts
			// over from the value run_command held on entry; the hook is
			// expected to have fully redefined the dep set.
			depends, runCommand, err = t.evaluateDeps(host, initial)
			if err != nil {
				return false, err
			}
		}
	}

	runCommand = runCommand || t.ForceRebuild
	runCommand = runCommand || host.CleanMode()

	keep := true
	if runCommand && !t.Command.IsNone() {
		_, keep, err = host.Execute(t, t.resolvedDeps, depends)
		if err != nil {
			return false, err
		}
	}

	if t.PostHook != nil {
		if err := t.PostHook(t, runCommand); err != nil {
			return false, err
		}
	}

	reg.MarkRun(t.Name)
	return runCommand && keep, nil
}

// evaluateDeps resolves t's dependencies and walks them in order, combining
// their individual staleness signals (and, for Target children with a
// concrete name, a direct mtime comparison against self) into run_command,
// and building the space-joined "depends" string used by $(DEPENDS).
func (t *Target) evaluateDeps(host Host, initial bool) (string, bool, error) {
	resolved := t.resolveDeps(host.Registry())
	runCommand := initial
	var parts []string

	selfName, selfHasName := t.TargetName()

	for _, d := range resolved {
		childStale, err := d.Build(host)
		if err != nil {
			return "", false, err
		}
		runCommand = runCommand || childStale

		name, ok := d.TargetName()
		if !ok {
			continue
		}
		parts = append(parts, name)
		if childTarget, isTarget := d.(*Target); isTarget {
			_ = childTarget
			if selfHasName && mtime(name) > mtime(selfName) {
				runCommand = true
			}
		}
	}
	return strings.Join(parts, " "), runCommand, nil
}
