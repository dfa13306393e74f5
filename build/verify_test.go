package build

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/wasm"
	"github.com/2473o/cargo-liquid/workspace"
)

func TestVerifyArtifact(t *testing.T) {
	m := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Funcs:   []uint32{0},
		Exports: []wasm.Export{{Name: "call", Kind: wasm.KindFunc, Idx: 0}},
		Code:    []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
	}
	if err := verifyArtifact(context.Background(), m.Encode()); err != nil {
		t.Errorf("valid module rejected: %v", err)
	}
}

func TestVerifyArtifactRejectsGarbage(t *testing.T) {
	err := verifyArtifact(context.Background(), []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF})
	if err == nil {
		t.Fatal("expected verification failure")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if e.Stage != errors.StageTransform || e.Kind != errors.KindVerifyFailed {
		t.Errorf("got stage %q kind %q", e.Stage, e.Kind)
	}
}

func TestCargoBuildArgs(t *testing.T) {
	meta := &workspace.CrateMetadata{
		ManifestPath: "/work/contract/Cargo.toml",
		PackageName:  "contract",
		TargetDir:    "/work/contract/target",
	}
	args := cargoBuildArgs(meta)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"build",
		"--manifest-path /work/contract/Cargo.toml",
		"--no-default-features",
		"--release",
		"--target=wasm32-unknown-unknown",
		"--target-dir=/work/contract/target",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestRunCommandCapturesStreams(t *testing.T) {
	stdout, stderr, err := runCommand(context.Background(), nil,
		"sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(stdout)) != "out" {
		t.Errorf("stdout: got %q", stdout)
	}
	if strings.TrimSpace(string(stderr)) != "err" {
		t.Errorf("stderr: got %q", stderr)
	}
}

func TestRunCommandFailure(t *testing.T) {
	_, stderr, err := runCommand(context.Background(), nil,
		"sh", "-c", "echo boom 1>&2; exit 3")
	if err == nil {
		t.Fatal("expected command failure")
	}
	if !strings.Contains(string(stderr), "boom") {
		t.Errorf("stderr: got %q", stderr)
	}
}
