// Package process implements the (intentionally minimal) subprocess
// management the engine needs: it runs one external command at a time,
// to completion, and reports its exit code. There is no timeout,
// cancellation or sandboxing here; the engine is strictly serial and
// trusts the filesystem, per its concurrency model.
package process

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/google/shlex"
)

// Result carries the outcome of running a command.
type Result struct {
	Stdout, Stderr []byte
	ExitCode       int
}

// RunShell runs a single command string through the OS shell (bash -c),
// used for string command templates after token expansion.
func RunShell(dir, command string) (Result, error) {
	cmd := exec.Command("bash", "--noprofile", "--norc", "-u", "-o", "pipefail", "-c", command)
	return run(cmd, dir)
}

// Split tokenizes a command line the way a shell would, without actually
// invoking one. Used to recover the binary name for a failed-command
// diagnostic without re-parsing the command by hand.
func Split(command string) ([]string, error) {
	return shlex.Split(command)
}

func run(cmd *exec.Cmd, dir string) (Result, error) {
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()
	err := cmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	} else if err != nil {
		return result, err
	}
	result.ExitCode = 0
	return result, nil
}
