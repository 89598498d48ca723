package engine

import (
	"os"
	"path/filepath"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/tak"
)

// Filename markers for non-valid artifacts. Valid artifacts carry none.
const (
	markerInvalid  = "INVALID_"
	markerValidate = "VALIDATE_"
)

// writeArtifact persists one artifact under the output tree, grouped by
// concept type. An existing file for the same definition and marker is
// overwritten; stale files with a different marker are removed so one
// definition never leaves two artifacts behind.
func writeArtifact(outputDir string, def *tak.Definition, marker, artifact string) (string, error) {
	dir := filepath.Join(outputDir, def.Type.GroupDir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create output directory %s", dir)
	}

	for _, stale := range []string{markerInvalid, markerValidate, ""} {
		if stale == marker {
			continue
		}
		os.Remove(filepath.Join(dir, def.ArtifactFilename(stale)))
	}

	path := filepath.Join(dir, def.ArtifactFilename(marker))
	if err := os.WriteFile(path, []byte(artifact+"\n"), 0o644); err != nil {
		return "", errors.Wrapf(err, "write artifact %s", path)
	}
	return path, nil
}
