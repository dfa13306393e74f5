package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/2473o/cargo-liquid/errors"
)

// CrateMetadata holds the resolved identity and artifact locations of the
// contract crate being built.
type CrateMetadata struct {
	// ManifestPath is the absolute path of the crate's Cargo.toml.
	ManifestPath string

	// PackageName is the crate name with dashes normalized to underscores,
	// matching the artifact file names rustc produces.
	PackageName string

	// TargetDir is cargo's target directory for this crate.
	TargetDir string
}

// OriginalWasm returns the path of the artifact as cargo emits it.
func (c *CrateMetadata) OriginalWasm() string {
	return filepath.Join(c.TargetDir, "wasm32-unknown-unknown", "release", c.PackageName+".wasm")
}

// DestWasm returns the path the processed contract is written to.
func (c *CrateMetadata) DestWasm() string {
	return filepath.Join(c.TargetDir, c.PackageName+".wasm")
}

// OptWasm returns the scratch path used while the external optimizer runs.
func (c *CrateMetadata) OptWasm() string {
	return filepath.Join(c.TargetDir, c.PackageName+"-opt.wasm")
}

// Collect shells out to cargo metadata and resolves the root package of the
// crate at manifestPath.
func Collect(ctx context.Context, manifestPath string) (*CrateMetadata, error) {
	cmd := exec.CommandContext(ctx, "cargo", "metadata",
		"--no-deps", "--format-version=1", "--manifest-path", manifestPath)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, errors.MetadataResolution(manifestPath, err)
	}
	return collectFrom(out, manifestPath)
}

type cargoMetadata struct {
	Packages []cargoPackage `json:"packages"`
	Resolve  *struct {
		Root string `json:"root"`
	} `json:"resolve"`
	TargetDirectory string `json:"target_directory"`
}

type cargoPackage struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ManifestPath string `json:"manifest_path"`
}

func collectFrom(data []byte, manifestPath string) (*CrateMetadata, error) {
	var meta cargoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.MetadataResolution(manifestPath, err)
	}
	if meta.Resolve == nil || meta.Resolve.Root == "" {
		return nil, errors.MetadataResolution(manifestPath,
			fmt.Errorf("cargo metadata reported no root package"))
	}

	var root *cargoPackage
	for i := range meta.Packages {
		if meta.Packages[i].ID == meta.Resolve.Root {
			root = &meta.Packages[i]
			break
		}
	}
	if root == nil {
		return nil, errors.MetadataResolution(manifestPath,
			fmt.Errorf("root package %q not present in package list", meta.Resolve.Root))
	}

	return &CrateMetadata{
		ManifestPath: root.ManifestPath,
		PackageName:  strings.ReplaceAll(root.Name, "-", "_"),
		TargetDir:    meta.TargetDirectory,
	}, nil
}
