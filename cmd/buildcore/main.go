// Command buildcore is a minimal CLI binding for the engine package: it
// parses flags, wires one example executable target (a handful of C
// sources under src/), and runs (or cleans) it. Project-specific target
// wiring beyond this illustrative target belongs to whatever embeds the
// engine package, not to this binary.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/thought-machine/go-flags"

	"github.com/embedfw/buildcore/buildlog"
	"github.com/embedfw/buildcore/engine"
	"github.com/embedfw/buildcore/metrics"
)

var opts struct {
	Usage string `usage:"buildcore drives a small dependency-graph build engine for C/assembly firmware sources."`

	BuildDir    string   `long:"build_dir" description:"Directory auxiliary build output is written to" default:".build"`
	BuildMode   string   `long:"build_mode" description:"Object-file placement policy: keep_dir, build_dir or build_dir_linearized" default:"keep_dir"`
	DispMode    string   `long:"disp_mode" description:"Display mode: all or summary" default:"summary"`
	Clean       bool     `long:"clean" description:"Remove build outputs instead of building them"`
	Metrics     bool     `long:"metrics" description:"Record Prometheus build metrics"`
	Target      string   `long:"target" description:"Target name to build" default:"app"`
	Compiler    string   `long:"compiler" description:"C compiler to invoke" default:"cc"`
	Sources     []string `long:"source" description:"Source file to compile into the target (repeatable)"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if err := run(); err != nil {
		buildlog.Errorf("%s", err)
		os.Exit(1)
	}
}

func run() error {
	builtins := engine.NewBuiltinOptions()
	placementVal, err := builtins.Validate("build_mode", opts.BuildMode)
	if err != nil {
		return err
	}
	dispVal, err := builtins.Validate("disp_mode", opts.DispMode)
	if err != nil {
		return err
	}

	var recorder *metrics.Recorder
	if opts.Metrics {
		recorder = metrics.NewRecorder()
	}

	e := engine.New(
		opts.BuildDir,
		engine.PlacementMode(placementVal.(string)),
		engine.DisplayMode(dispVal.(string)),
		opts.Clean,
		recorder,
	)

	sources := opts.Sources
	if len(sources) == 0 {
		sources = []string{"src/a.c"}
	}

	start := time.Now()
	// MakeExeTarget records the compile-class configuration fields (and
	// checks the link-class fingerprint) as it wires the target graph, so
	// the comp-class fingerprint check below must run after it, not before.
	link, err := e.MakeExeTarget(opts.Target, sources, engine.ToolConfig{
		Compiler:   opts.Compiler,
		Assembler:  "as",
		Linker:     opts.Compiler,
		DependFlag: "-E -MM",
		CompFlags:  []string{"-O2", "-Wall"},
		ObjectExt:  ".o",
	})
	if err != nil {
		return err
	}

	if differed, err := e.CheckCompFingerprint(); err != nil {
		return err
	} else if differed {
		buildlog.Notice("compile configuration changed since the last run")
	}

	// Build the link target's actual registered name, not opts.Target
	// verbatim: MakeExeTarget may have appended a platform executable
	// extension (eg. ".exe" on Windows).
	if err := e.Build(link.Name); err != nil {
		return err
	}
	if errs := e.CleanErrors(); errs != nil {
		buildlog.Errorf("clean completed with errors: %s", errs)
	}

	if opts.DispMode == string(engine.DisplayAll) {
		fmt.Fprintf(os.Stderr, "build started %s\n", humanize.Time(start))
	}
	return nil
}
