package engine

import (
	"path/filepath"
	"strings"
)

// ObjectPath computes the object-file path for source under the given
// placement mode, build directory and object extension, per the three
// placement policies the engine supports.
func ObjectPath(mode PlacementMode, buildDir, source, objectExt string) string {
	switch mode {
	case PlacementBuildDir:
		return filepath.Join(buildDir, swapExt(filepath.Base(source), objectExt))
	case PlacementBuildDirLinearized:
		return filepath.Join(buildDir, swapExt(linearize(source), objectExt))
	default: // PlacementKeepDir
		return swapExt(source, objectExt)
	}
}

// DepFilePath computes the path of the compiler-emitted Make-style
// dependency file for source, always linearized under build_dir regardless
// of object placement mode — dep files are auxiliary engine state, not
// build output a toolchain expects to find beside the source.
func DepFilePath(buildDir, source string) string {
	return filepath.Join(buildDir, linearize(source)+".d")
}

// linearize replaces path separators with "__" so a full source path can be
// embedded as a single flat filename.
func linearize(path string) string {
	cleaned := strings.ReplaceAll(path, `\`, "/")
	return strings.ReplaceAll(cleaned, "/", "__")
}

// swapExt replaces path's extension with newExt (which should include the
// leading dot).
func swapExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}
