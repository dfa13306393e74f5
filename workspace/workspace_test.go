package workspace_test

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/workspace"
)

func tempManifest(t *testing.T) (*workspace.CrateMetadata, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.toml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return &workspace.CrateMetadata{
		ManifestPath: path,
		PackageName:  "my_contract",
		TargetDir:    filepath.Join(dir, "target"),
	}, path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestUsingTempEditsAndRestores(t *testing.T) {
	meta, path := tempManifest(t)

	var duringBuild []byte
	err := workspace.New(meta, nil).
		WithRootManifest(workspace.RemoveCrateType("rlib"), workspace.ReleaseLTO(true)).
		UsingTemp(func() error {
			duringBuild = readFile(t, path)
			return nil
		})
	if err != nil {
		t.Fatalf("UsingTemp: %v", err)
	}

	during := string(duringBuild)
	if strings.Contains(during, "rlib") {
		t.Error("rlib still present in manifest during build")
	}
	if !strings.Contains(during, "lto = true") {
		t.Errorf("lto missing from manifest during build:\n%s", during)
	}

	if got := readFile(t, path); string(got) != sampleManifest {
		t.Errorf("manifest not restored byte-for-byte:\n%s", got)
	}
}

func TestUsingTempRestoresOnBuildError(t *testing.T) {
	meta, path := tempManifest(t)
	buildErr := errors.BuildFailed("cargo exited with status 101", nil)

	err := workspace.New(meta, nil).
		WithRootManifest(workspace.RemoveCrateType("rlib")).
		UsingTemp(func() error { return buildErr })

	// The build error comes back unchanged.
	if !stderrors.Is(err, buildErr) {
		t.Fatalf("got %v, want the build error", err)
	}
	if got := readFile(t, path); string(got) != sampleManifest {
		t.Error("manifest not restored after build failure")
	}
}

func TestUsingTempRestoresOnPanic(t *testing.T) {
	meta, path := tempManifest(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic swallowed")
			}
		}()
		_ = workspace.New(meta, nil).
			WithRootManifest(workspace.ReleaseLTO(true)).
			UsingTemp(func() error { panic("build exploded") })
	}()

	if got := readFile(t, path); string(got) != sampleManifest {
		t.Error("manifest not restored after panic")
	}
}

func TestUsingTempInvalidManifest(t *testing.T) {
	meta, path := tempManifest(t)
	if err := os.WriteFile(path, []byte("[lib\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := workspace.New(meta, nil).UsingTemp(func() error {
		t.Error("build must not run with an unparseable manifest")
		return nil
	})
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if e.Kind != errors.KindInvalidManifest {
		t.Errorf("got kind %q, want %q", e.Kind, errors.KindInvalidManifest)
	}
}

func TestUsingTempMissingManifest(t *testing.T) {
	meta := &workspace.CrateMetadata{ManifestPath: filepath.Join(t.TempDir(), "absent", "Cargo.toml")}

	err := workspace.New(meta, nil).UsingTemp(func() error {
		t.Error("build must not run without a manifest")
		return nil
	})
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if e.Stage != errors.StageManifest || e.Kind != errors.KindIOFailure {
		t.Errorf("got stage %q kind %q", e.Stage, e.Kind)
	}
}
