package build

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/2473o/cargo-liquid/errors"
)

// verifyArtifact compiles the serialized module with wazero's interpreter.
// A module our codec emitted but a real runtime rejects is a transform
// defect, caught here before anything reaches the destination path.
func verifyArtifact(ctx context.Context, wasmBytes []byte) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.VerifyFailed(err)
	}
	return compiled.Close(ctx)
}
