// Package wasm provides WebAssembly binary format parsing and encoding.
//
// The package implements a decode/transform/re-encode codec for the module
// shapes that wasm32-unknown-unknown compilers emit: core WebAssembly 2.0
// plus the tail call, bulk memory, reference type, and SIMD proposals.
//
// # Parsing
//
// Parse a WebAssembly module from binary:
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Parse with validation enabled:
//
//	module, err := wasm.ParseModuleValidate(data)
//
// # Encoding
//
// Encode a module back to binary:
//
//	encoded := module.Encode()
//
// Round-trip parsing and encoding preserves module semantics.
//
// # Instructions
//
// Function bodies and constant expressions are held as raw bytes; decode
// them when indices need to be inspected or rewritten:
//
//	instrs, err := wasm.DecodeInstructions(body.Code)
//	// mutate immediates (call targets, global indices, ...)
//	body.Code = wasm.EncodeInstructions(instrs)
//
// # Validation
//
// Validate checks structural consistency: index spaces are in bounds,
// export names are unique, section counts agree, and memory limits are
// within the 4GB page bound.
package wasm
