package graph

import "os"

// FileDep is the leaf pseudo-target wrapping a plain source file. It has no
// command of its own; its "build" is a pure staleness query comparing its
// mtime against the mtime of the target that depends on it.
type FileDep struct {
	// Path to the file on disk.
	Path string
	// Name of the consuming target, used to decide phoniness and to
	// compare mtimes against.
	Consumer string
}

// NewFileDep wraps path as a leaf dependency of consumer.
func NewFileDep(path, consumer string) *FileDep {
	return &FileDep{Path: path, Consumer: consumer}
}

// TargetName returns the file's path. FileDeps always name a real path;
// there is no such thing as a phony file dependency.
func (f *FileDep) TargetName() (string, bool) { return f.Path, true }

// Build reports whether this file is newer than the target that depends on
// it. A phony consumer is always considered stale, since phony targets have
// no output file to compare against. A missing file has effective mtime -1,
// so a missing dependency never looks newer than an existing consumer, and
// a missing consumer always looks "older" than any existing dependency.
func (f *FileDep) Build(host Host) (bool, error) {
	if IsPhony(f.Consumer) {
		return true, nil
	}
	return mtime(f.Path) > mtime(f.Consumer), nil
}

// mtime returns the modification time of path in nanoseconds since the
// epoch, or -1 if the path doesn't exist or can't be stat'd.
func mtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.ModTime().UnixNano()
}

// isRegularFile returns true if path exists and is a regular file.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
