package graph

// Registry owns all Target nodes, maps normalized target names to nodes,
// and records which targets have already completed their build step this run.
type Registry struct {
	targets    map[string]*Target
	alreadyRun map[string]bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		targets:    map[string]*Target{},
		alreadyRun: map[string]bool{},
	}
}

// Register stores target under its normalized name. Re-registering the same
// normalized name overwrites the previous entry; this is accepted (it's
// relied on by test harnesses) and isn't guarded against for production
// wiring.
func (r *Registry) Register(target *Target) {
	r.targets[Normalize(target.Name)] = target
}

// Lookup returns the target registered under name, normalizing first.
func (r *Registry) Lookup(name string) (*Target, bool) {
	t, ok := r.targets[Normalize(name)]
	return t, ok
}

// HasRun reports whether the named target's build step has already
// completed this run, whether or not its command needed to run.
func (r *Registry) HasRun(name string) bool {
	return r.alreadyRun[Normalize(name)]
}

// MarkRun records that the named target's build step has completed this
// run, so further attempts to build it are no-ops.
func (r *Registry) MarkRun(name string) {
	r.alreadyRun[Normalize(name)] = true
}

// resolveToken resolves a single dependency token (already split on
// whitespace) to a registered Target, or wraps it as a FileDep belonging to
// consumer if no such target is registered.
func (r *Registry) resolveToken(tok, consumer string) Buildable {
	if t, ok := r.Lookup(tok); ok {
		return t
	}
	return NewFileDep(tok, consumer)
}

// AllTargets returns every target currently registered, in no particular
// order.
func (r *Registry) AllTargets() []*Target {
	ret := make([]*Target, 0, len(r.targets))
	for _, t := range r.targets {
		ret = append(ret, t)
	}
	return ret
}
