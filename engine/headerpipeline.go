package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/embedfw/buildcore/fingerprint"
	"github.com/embedfw/buildcore/graph"
)

// ToolConfig carries the structured compiler/assembler/linker arguments
// MakeExeTarget needs to synthesize its command templates and fingerprint
// configuration.
type ToolConfig struct {
	Compiler   string
	Assembler  string
	Linker     string
	DependFlag string // eg. "-E -MM"
	Defines    []string
	Includes   []string
	CompFlags  []string
	AsmFlags   []string
	LinkFlags  []string
	Libs       []string
	ObjectExt  string // eg. ".o"
}

// MakeExeTarget wires up, for a list of sources, the two-layer
// dep-target/compile-target pipeline plus a link target depending on every
// compiled object, exactly mirroring the engine's header-dependency
// refinement: dep targets precede compile targets in each compile target's
// dependency list, so by the time a compile target's pre-hook runs, its dep
// target's post-hook has already populated the engine's dep-results map.
func (e *Engine) MakeExeTarget(executable string, sources []string, cfg ToolConfig) (*graph.Target, error) {
	e.SetCompConfig(fingerprint.CompConfig{
		CompileTemplate:  e.CompileTemplate(cfg.Compiler, cfg.CompFlags, cfg.Defines, cfg.Includes),
		AssembleTemplate: e.AssembleTemplate(cfg.Assembler, cfg.AsmFlags),
		CDependCommand:   cfg.Compiler + " " + cfg.DependFlag,
		AsmDependCommand: cfg.Assembler + " " + cfg.DependFlag,
		ObjectExt:        cfg.ObjectExt,
	})

	objectNames := make([]string, 0, len(sources))
	for _, source := range sources {
		depTarget := e.makeDepTarget(source, cfg)
		e.registry.Register(depTarget)

		objTarget := e.makeCompileTarget(source, depTarget, cfg)
		e.registry.Register(objTarget)
		objectNames = append(objectNames, objTarget.Name)
	}

	e.SetLinkConfig(fingerprint.LinkConfig{LinkTemplate: e.LinkTemplate(cfg.Linker, cfg.LinkFlags, cfg.Libs)})

	link := graph.NewTarget(executableName(executable), graph.KindLink)
	link.RawDeps = graph.Deps(objectNames...)
	link.Command = graph.TemplateCommand(e.LinkTemplate(cfg.Linker, cfg.LinkFlags, cfg.Libs))
	link.Help = fmt.Sprintf("links %d object(s) into %s", len(objectNames), link.Name)
	if _, err := e.CheckLinkFingerprint(link); err != nil {
		return nil, err
	}
	e.registry.Register(link)
	return link, nil
}

func (e *Engine) makeDepTarget(source string, cfg ToolConfig) *graph.Target {
	depPath := DepFilePath(e.BuildDir, source)
	t := graph.NewTarget(depPath, graph.KindDepend)
	t.Command = graph.TemplateCommand(DependTemplate(cfg.Compiler, cfg.DependFlag, cfg.Defines, cfg.Includes))
	t.Help = fmt.Sprintf("emits header dependencies for %s", source)

	// Seed raw_deps with whatever a prior run's .d file recorded, so the
	// very first resolution of this target (before it has run even once in
	// this process) already reflects the last known header set.
	t.RawDeps = graph.Deps(append([]string{source}, readDepFile(depPath)...)...)

	t.PostHook = func(target *graph.Target, _ bool) error {
		e.setDepResults(source, readDepFile(depPath))
		return nil
	}
	return t
}

func (e *Engine) makeCompileTarget(source string, depTarget *graph.Target, cfg ToolConfig) *graph.Target {
	objPath := ObjectPath(e.PlacementMode, e.BuildDir, source, cfg.ObjectExt)

	kind := graph.KindCompile
	tpl := e.CompileTemplate(cfg.Compiler, cfg.CompFlags, cfg.Defines, cfg.Includes)
	if isAssemblySource(source) {
		kind = graph.KindAssemble
		tpl = e.AssembleTemplate(cfg.Assembler, cfg.AsmFlags)
	}

	t := graph.NewTarget(objPath, kind)
	t.Command = graph.TemplateCommand(tpl)
	t.RawDeps = graph.Deps(depTarget.Name)
	if kind == graph.KindAssemble {
		t.Help = fmt.Sprintf("assembles %s", source)
	} else {
		t.Help = fmt.Sprintf("compiles %s", source)
	}

	t.PreHook = func(target *graph.Target, _ bool) error {
		deps := e.DepResults(source)
		if len(deps) == 0 {
			deps = []string{source}
		}
		target.RawDeps = graph.Deps(deps...)
		return nil
	}
	return t
}

// readDepFile reads and parses path as a Make-style dependency file,
// returning nil (not an error) if it doesn't exist yet.
func readDepFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return ParseDepFile(string(data))
}

// ParseDepFile parses the Make convention "target: dep1 dep2 \" (with
// backslash-newline continuations) into a flat, whitespace-collapsed list
// of dependency paths.
func ParseDepFile(contents string) []string {
	if idx := strings.IndexByte(contents, ':'); idx >= 0 {
		contents = contents[idx+1:]
	}
	contents = strings.ReplaceAll(contents, "\\\n", " ")
	contents = strings.ReplaceAll(contents, "\n", " ")
	return strings.Fields(contents)
}

func isAssemblySource(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".s") || strings.HasSuffix(lower, ".asm")
}
