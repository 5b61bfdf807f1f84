package graph

// depKind discriminates the variants of Dep.
type depKind int

const (
	depKindRaw depKind = iota
	depKindNode
	depKindNested
)

// Dep is a single entry in a target's dependency declaration. raw_deps in
// the original design is a heterogeneous tree of whitespace-separated
// strings, nested lists, and already-resolved nodes; Dep models that as an
// explicit sum type instead of relying on dynamic typing.
type Dep struct {
	kind   depKind
	raw    string
	node   Buildable
	nested []Dep
}

// RawDep wraps a (possibly whitespace-separated, possibly multi-name)
// string dependency declaration.
func RawDep(s string) Dep { return Dep{kind: depKindRaw, raw: s} }

// NodeDep wraps an already-resolved Target or FileDep.
func NodeDep(b Buildable) Dep { return Dep{kind: depKindNode, node: b} }

// NestedDep wraps a nested list of dependencies, flattened during resolution.
func NestedDep(ds ...Dep) Dep { return Dep{kind: depKindNested, nested: ds} }

// Deps is a convenience constructor for a dependency list built from plain
// strings, equivalent to a single whitespace-separated RawDep per string.
func Deps(names ...string) []Dep {
	ret := make([]Dep, len(names))
	for i, n := range names {
		ret[i] = RawDep(n)
	}
	return ret
}

// flatten walks a Dep tree, filtering out the nesting structure itself but
// preserving every raw and node entry it finds, in order. Nesting is only
// a grouping construct; it never survives into the flattened output.
func flatten(deps []Dep, out *[]Dep) {
	for _, d := range deps {
		if d.kind == depKindNested {
			flatten(d.nested, out)
		} else {
			*out = append(*out, d)
		}
	}
}

// depsEqual reports whether two Dep slices are structurally identical.
// Used to detect whether a pre-hook actually rewrote a target's raw
// dependency declaration.
func depsEqual(a, b []Dep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !depEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func depEqual(a, b Dep) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case depKindRaw:
		return a.raw == b.raw
	case depKindNode:
		return a.node == b.node
	case depKindNested:
		return depsEqual(a.nested, b.nested)
	}
	return false
}
