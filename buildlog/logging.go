// Package buildlog contains the singleton logger used across buildcore and
// the small amount of terminal-display logic (coloured target labels).
// It deliberately has little else since it's a dependency everywhere.
package buildlog

import (
	"fmt"
	"os"
	"regexp"

	"golang.org/x/term"
	"gopkg.in/op/go-logging.v1"
)

// Log is the singleton logger instance.
var Log = logging.MustGetLogger("buildcore")

// StdErrIsATerminal is true if stderr is attached to an interactive TTY.
// Determines whether ANSI colour codes are stripped from output.
var StdErrIsATerminal = term.IsTerminal(int(os.Stderr.Fd()))

// stripAnsi finds ANSI escape sequences so they can be removed for non-terminal output.
var stripAnsi = regexp.MustCompile("\x1b[^m]+m")

func init() {
	formatStr := "%{time:15:04:05.000} %{level:7s}: %{message}"
	if StdErrIsATerminal {
		formatStr = "%{color}" + formatStr + "%{color:reset}"
	}
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(formatStr))
	logging.SetBackend(formatted)
}

// SetLevel sets the minimum level of message that will be logged.
func SetLevel(level logging.Level) {
	logging.SetLevel(level, "buildcore")
}

// Colour codes used for target-kind labels in summary display mode.
const (
	colourReset   = "\x1b[0m"
	colourCompile = "\x1b[32m" // green
	colourAssem   = "\x1b[36m" // cyan
	colourDepend  = "\x1b[90m" // grey
	colourLink    = "\x1b[35m" // magenta
	colourGeneric = "\x1b[34m" // blue
	colourPhony   = "\x1b[33m" // yellow
)

// colourFor returns the ANSI colour code associated with a target kind label.
func colourFor(label string) string {
	switch label {
	case "Compiling":
		return colourCompile
	case "Assembling":
		return colourAssem
	case "Depending":
		return colourDepend
	case "Linking":
		return colourLink
	case "Building":
		return colourPhony
	default:
		return colourGeneric
	}
}

// printf writes a message to stderr, stripping ANSI codes if stderr isn't a terminal.
func printf(format string, args ...interface{}) {
	if !StdErrIsATerminal {
		fmt.Fprint(os.Stderr, stripAnsi.ReplaceAllString(fmt.Sprintf(format, args...), ""))
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// Label prints a single coloured "<Kind> <name>" line, used in summary display mode.
func Label(kind, name string) {
	printf("%s%s%s %s\n", colourFor(kind), kind, colourReset, name)
}

// Command prints the fully expanded command about to run, used in "all" display mode.
func Command(name, command string) {
	printf("%s: %s\n", name, command)
}

// UpToDate prints the "up to date" message for a root target that needed no work.
func UpToDate(name string) {
	printf("%s: up to date\n", name)
}

// Errorf prints a "[builder]"-prefixed error message, per the engine's error convention.
func Errorf(format string, args ...interface{}) {
	printf("\x1b[31m[builder]\x1b[0m "+format+"\n", args...)
}

// CleanFailed prints the benign "failed!" message for a clean-mode removal
// of an output that didn't exist; this never aborts the run.
func CleanFailed(path string) {
	printf("%s: failed!\n", path)
}

// Cleaned prints confirmation that a clean-mode removal succeeded.
func Cleaned(path string) {
	printf("%s: removed\n", path)
}

// Notice logs an informational message through the singleton logger, used
// for cross-run events like a forced rebuild that aren't per-target display.
func Notice(format string, args ...interface{}) {
	Log.Noticef(format, args...)
}
