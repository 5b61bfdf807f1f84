// Package fingerprint persists a serialized record of the tool
// configuration used for each component class (currently "comp" and
// "link") and compares it against the record from the previous run,
// forcing a rebuild on mismatch.
package fingerprint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Field is a single named configuration value contributing to a fingerprint.
type Field struct {
	Key, Value string
}

// Store reads and writes fingerprint files under a build directory.
type Store struct {
	BuildDir  string
	CleanMode bool
}

// NewStore returns a Store rooted at buildDir.
func NewStore(buildDir string, cleanMode bool) *Store {
	return &Store{BuildDir: buildDir, CleanMode: cleanMode}
}

// path returns the file a given component class's fingerprint is persisted to.
func (s *Store) path(class string) string {
	return filepath.Join(s.BuildDir, ".builddata."+class)
}

// canonicalize produces a stable, key-ordered serialization of fields.
func canonicalize(fields []Field) string {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	var b strings.Builder
	for _, f := range sorted {
		fmt.Fprintf(&b, "%s=%s\n", f.Key, f.Value)
	}
	return b.String()
}

// hash returns a stable hash of fields' canonical, lower-cased serialization,
// so that comparisons are case-insensitive per the fingerprint contract.
func hash(fields []Field) string {
	canonical := strings.ToLower(canonicalize(fields))
	return fmt.Sprintf("%016x", xxhash.Sum64String(canonical))
}

// CompareAndStore serializes fields for the given component class, compares
// it against the one persisted from the previous run (unless in clean
// mode), writes the current serialization back to disk regardless, and
// reports whether the previous state existed and differed from the current
// one.
func (s *Store) CompareAndStore(class string, fields []Field) (bool, error) {
	current := hash(fields)
	differed := false

	if !s.CleanMode {
		if previous, err := os.ReadFile(s.path(class)); err == nil {
			differed = strings.TrimSpace(string(previous)) != current
		} else if !os.IsNotExist(err) {
			return false, err
		}
	}

	if err := os.MkdirAll(s.BuildDir, 0755); err != nil {
		return false, err
	}
	if err := os.WriteFile(s.path(class), []byte(current), 0644); err != nil {
		return false, err
	}
	return differed, nil
}

// Remove deletes the persisted fingerprint files for both known component
// classes. Used at the end of a clean-mode run.
func (s *Store) Remove() error {
	for _, class := range []string{"comp", "link"} {
		if err := os.Remove(s.path(class)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// CompConfig is the set of compile-class configuration fields that
// invalidate every compile, assemble and dependency target on mismatch.
type CompConfig struct {
	CompileTemplate  string
	AssembleTemplate string
	CDependCommand   string
	AsmDependCommand string
	ObjectExt        string
}

// Fields returns CompConfig as a Field slice for fingerprinting.
func (c CompConfig) Fields() []Field {
	return []Field{
		{"compile_template", c.CompileTemplate},
		{"assemble_template", c.AssembleTemplate},
		{"c_depend_command", c.CDependCommand},
		{"asm_depend_command", c.AsmDependCommand},
		{"object_ext", c.ObjectExt},
	}
}

// LinkConfig is the set of link-class configuration fields that invalidate
// the link target on mismatch.
type LinkConfig struct {
	LinkTemplate string
}

// Fields returns LinkConfig as a Field slice for fingerprinting.
func (l LinkConfig) Fields() []Field {
	return []Field{{"link_template", l.LinkTemplate}}
}
