package engine

import (
	"fmt"
	"strings"
)

// Option is one entry in the engine's configuration-option registry: a
// named, typed, help-documented value an external CLI (or any other driver)
// can discover and set without the engine depending on any particular flag
// library.
type Option struct {
	Name    string
	Help    string
	Default interface{}
	// Values, if non-empty, is the closed set of legal string forms for a
	// choice or choice-map option; used only to render Describe().
	Values []string
	// Validate parses a raw string into the option's typed value. A nil
	// Validate means the option accepts its raw string unchanged.
	Validate func(raw string) (interface{}, error)
}

// Describe renders the option's allowed values and default, for CLI help
// text.
func (o *Option) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", o.Help)
	if len(o.Values) > 0 {
		fmt.Fprintf(&b, " (one of: %s)", strings.Join(o.Values, ", "))
	}
	fmt.Fprintf(&b, " [default: %v]", o.Default)
	return b.String()
}

// OptionRegistry holds every option an Engine recognises, keyed by name,
// plus an insertion-ordered name list so CLI help output is deterministic.
type OptionRegistry struct {
	options map[string]*Option
	order   []string
}

// NewOptionRegistry returns an empty OptionRegistry.
func NewOptionRegistry() *OptionRegistry {
	return &OptionRegistry{options: map[string]*Option{}}
}

// Register adds opt to the registry under opt.Name. Registering the same
// name twice is a programmer error; it overwrites, matching the Registry's
// own re-registration tolerance.
func (r *OptionRegistry) Register(opt *Option) {
	if _, exists := r.options[opt.Name]; !exists {
		r.order = append(r.order, opt.Name)
	}
	r.options[opt.Name] = opt
}

// Lookup returns the option named name, if registered.
func (r *OptionRegistry) Lookup(name string) (*Option, bool) {
	opt, ok := r.options[name]
	return opt, ok
}

// Validate parses raw against the named option's validator and reports a
// ConfigError if the name is unknown or the value doesn't parse.
func (r *OptionRegistry) Validate(name, raw string) (interface{}, error) {
	opt, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigError{Option: name, Reason: "unknown option"}
	}
	if opt.Validate == nil {
		return raw, nil
	}
	val, err := opt.Validate(raw)
	if err != nil {
		return nil, &ConfigError{Option: name, Reason: err.Error()}
	}
	return val, nil
}

// Names returns every registered option name in registration order.
func (r *OptionRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// choiceValidator builds a Validate func that accepts only the given legal
// values, case-sensitively.
func choiceValidator(legal ...string) func(string) (interface{}, error) {
	return func(raw string) (interface{}, error) {
		for _, v := range legal {
			if raw == v {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("must be one of %s", strings.Join(legal, ", "))
	}
}

// PlacementMode selects where object files are written relative to their
// source, per the engine's build_mode option.
type PlacementMode string

const (
	PlacementKeepDir             PlacementMode = "keep_dir"
	PlacementBuildDir            PlacementMode = "build_dir"
	PlacementBuildDirLinearized  PlacementMode = "build_dir_linearized"
)

// DisplayMode selects whether a running command is shown in full or as a
// coloured one-line label.
type DisplayMode string

const (
	DisplayAll     DisplayMode = "all"
	DisplaySummary DisplayMode = "summary"
)

// NewBuiltinOptions returns the registry of options every Engine exposes:
// build_mode, build_dir, disp_mode.
func NewBuiltinOptions() *OptionRegistry {
	r := NewOptionRegistry()
	r.Register(&Option{
		Name:    "build_mode",
		Help:    "Where object files are placed relative to their source",
		Default: string(PlacementKeepDir),
		Values:  []string{string(PlacementKeepDir), string(PlacementBuildDir), string(PlacementBuildDirLinearized)},
		Validate: choiceValidator(
			string(PlacementKeepDir), string(PlacementBuildDir), string(PlacementBuildDirLinearized),
		),
	})
	r.Register(&Option{
		Name:    "build_dir",
		Help:    "Directory auxiliary build output (object files, fingerprints, dep files) is written to",
		Default: ".build",
	})
	r.Register(&Option{
		Name:    "disp_mode",
		Help:    "Whether to print full commands or short coloured labels while building",
		Default: string(DisplaySummary),
		Values:  []string{string(DisplayAll), string(DisplaySummary)},
		Validate: choiceValidator(string(DisplayAll), string(DisplaySummary)),
	})
	return r
}
