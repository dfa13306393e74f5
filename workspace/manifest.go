package workspace

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/2473o/cargo-liquid/errors"
)

// Manifest is a parsed Cargo.toml held as a generic document so edits
// preserve tables the build does not care about.
type Manifest struct {
	path string
	doc  map[string]interface{}
}

// ParseManifest parses Cargo.toml bytes. path is used for error reporting
// only.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.InvalidManifest(path, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return &Manifest{path: path, doc: doc}, nil
}

// Encode serializes the document back to TOML.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := toml.Marshal(m.doc)
	if err != nil {
		return nil, errors.InvalidManifest(m.path, err)
	}
	return data, nil
}

// RemoveCrateType drops the given crate type from [lib] crate-type. Cargo
// refuses to build a wasm target while an rlib output is also requested, so
// the build temporarily removes it.
func (m *Manifest) RemoveCrateType(kind string) {
	lib, ok := m.doc["lib"].(map[string]interface{})
	if !ok {
		return
	}
	types, ok := lib["crate-type"].([]interface{})
	if !ok {
		return
	}
	kept := types[:0]
	for _, t := range types {
		if s, ok := t.(string); ok && s == kind {
			continue
		}
		kept = append(kept, t)
	}
	lib["crate-type"] = kept
}

// SetProfileReleaseLTO sets profile.release.lto, creating the tables if the
// manifest lacks them.
func (m *Manifest) SetProfileReleaseLTO(enabled bool) {
	profile, ok := m.doc["profile"].(map[string]interface{})
	if !ok {
		profile = map[string]interface{}{}
		m.doc["profile"] = profile
	}
	release, ok := profile["release"].(map[string]interface{})
	if !ok {
		release = map[string]interface{}{}
		profile["release"] = release
	}
	release["lto"] = enabled
}

// ManifestEdit is a queued mutation applied to the parsed manifest before
// the sandboxed build runs.
type ManifestEdit func(*Manifest)

// RemoveCrateType returns an edit removing a crate type from [lib].
func RemoveCrateType(kind string) ManifestEdit {
	return func(m *Manifest) { m.RemoveCrateType(kind) }
}

// ReleaseLTO returns an edit setting profile.release.lto.
func ReleaseLTO(enabled bool) ManifestEdit {
	return func(m *Manifest) { m.SetProfileReleaseLTO(enabled) }
}
