package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/2473o/cargo-liquid/workspace"
)

// rustFlags mirror the link arguments contract crates are built with: a
// 64KiB shadow stack and an imported (host-provided) linear memory.
const rustFlags = "-C link-arg=-z -C link-arg=stack-size=65536 -C link-arg=--import-memory"

// RunCommandFunc executes an external command with extra environment
// entries and returns its captured output streams.
type RunCommandFunc func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

func cargoBuildArgs(meta *workspace.CrateMetadata) []string {
	return []string{
		"build",
		"--manifest-path", meta.ManifestPath,
		"--no-default-features",
		"--release",
		"--target=wasm32-unknown-unknown",
		"--target-dir=" + meta.TargetDir,
	}
}
