// Package workspace resolves contract crate metadata and runs builds
// against a temporarily edited Cargo.toml, restoring the original manifest
// on every exit path.
package workspace

import (
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/2473o/cargo-liquid/errors"
)

// Workspace scopes manifest edits around a build of one crate. Concurrent
// scopes over the same manifest are not supported.
type Workspace struct {
	log   *zap.Logger
	meta  *CrateMetadata
	edits []ManifestEdit
}

// New creates a workspace for the crate described by meta. A nil logger
// disables logging.
func New(meta *CrateMetadata, log *zap.Logger) *Workspace {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workspace{meta: meta, log: log}
}

// WithRootManifest queues edits to apply to the root package manifest for
// the duration of UsingTemp.
func (w *Workspace) WithRootManifest(edits ...ManifestEdit) *Workspace {
	w.edits = append(w.edits, edits...)
	return w
}

// UsingTemp writes the edited manifest over the crate's Cargo.toml, invokes
// build, and restores the original bytes afterwards. The restore runs even
// when build panics. A build error takes precedence over a restore error;
// a restore failure alone is reported as such.
func (w *Workspace) UsingTemp(build func() error) (err error) {
	path := w.meta.ManifestPath

	original, readErr := os.ReadFile(path)
	if readErr != nil {
		return errors.IO(errors.StageManifest, path, readErr)
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode()
	}

	manifest, parseErr := ParseManifest(path, original)
	if parseErr != nil {
		return parseErr
	}
	for _, edit := range w.edits {
		edit(manifest)
	}
	edited, encErr := manifest.Encode()
	if encErr != nil {
		return encErr
	}

	if writeErr := os.WriteFile(path, edited, mode); writeErr != nil {
		return errors.IO(errors.StageManifest, path, writeErr)
	}
	defer func() {
		restoreErr := os.WriteFile(path, original, mode)
		if restoreErr == nil {
			w.log.Debug("manifest restored", zap.String("path", path))
			return
		}
		restore := errors.RestoreFailed(path, restoreErr)
		if err != nil {
			// The build failure is the actionable error; the lost
			// manifest still deserves a loud trace.
			w.log.Error("manifest restore failed after build error",
				zap.String("path", path), zap.Error(restore))
			return
		}
		err = restore
	}()

	w.log.Debug("manifest rewritten for sandboxed build",
		zap.String("path", path), zap.Int("edits", len(w.edits)))
	return build()
}
