package workspace_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/workspace"
)

const sampleManifest = `[package]
name = "my-contract"
version = "0.1.0"

[lib]
crate-type = ["cdylib", "rlib"]

[dependencies]
liquid_lang = "1.0"
`

func parseSample(t *testing.T) *workspace.Manifest {
	t.Helper()
	m, err := workspace.ParseManifest("Cargo.toml", []byte(sampleManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

// decode re-parses encoded manifest bytes into a generic document.
func decode(t *testing.T, m *workspace.Manifest) map[string]interface{} {
	t.Helper()
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	return doc
}

func TestParseManifestInvalid(t *testing.T) {
	_, err := workspace.ParseManifest("Cargo.toml", []byte("[lib\ncrate-type"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if e.Stage != errors.StageManifest || e.Kind != errors.KindInvalidManifest {
		t.Errorf("got stage %q kind %q", e.Stage, e.Kind)
	}
	if !strings.Contains(err.Error(), "Cargo.toml") {
		t.Errorf("error should carry the manifest path: %v", err)
	}
}

func TestRemoveCrateType(t *testing.T) {
	m := parseSample(t)
	m.RemoveCrateType("rlib")

	doc := decode(t, m)
	lib := doc["lib"].(map[string]interface{})
	types := lib["crate-type"].([]interface{})
	if len(types) != 1 || types[0] != "cdylib" {
		t.Errorf("crate-type: got %v, want [cdylib]", types)
	}

	// Untouched tables survive the round trip.
	pkg := doc["package"].(map[string]interface{})
	if pkg["name"] != "my-contract" {
		t.Errorf("package name lost: %v", pkg)
	}
	if _, ok := doc["dependencies"]; !ok {
		t.Error("dependencies table lost")
	}
}

func TestRemoveCrateTypeAbsent(t *testing.T) {
	m, err := workspace.ParseManifest("Cargo.toml", []byte("[package]\nname = \"x\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// No [lib] table: the edit is a no-op, not a failure.
	m.RemoveCrateType("rlib")
	if _, err := m.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestSetProfileReleaseLTO(t *testing.T) {
	m := parseSample(t)
	m.SetProfileReleaseLTO(true)

	doc := decode(t, m)
	profile := doc["profile"].(map[string]interface{})
	release := profile["release"].(map[string]interface{})
	if release["lto"] != true {
		t.Errorf("lto: got %v, want true", release["lto"])
	}
}

func TestManifestEdits(t *testing.T) {
	m := parseSample(t)
	for _, edit := range []workspace.ManifestEdit{
		workspace.RemoveCrateType("rlib"),
		workspace.ReleaseLTO(true),
	} {
		edit(m)
	}

	doc := decode(t, m)
	lib := doc["lib"].(map[string]interface{})
	if types := lib["crate-type"].([]interface{}); len(types) != 1 {
		t.Errorf("crate-type: got %v", types)
	}
	profile := doc["profile"].(map[string]interface{})
	release := profile["release"].(map[string]interface{})
	if release["lto"] != true {
		t.Errorf("lto: got %v", release["lto"])
	}
}
