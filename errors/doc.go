// Package errors provides structured error types for the build pipeline.
//
// Errors are categorized by Stage (which pipeline stage failed) and Kind
// (error category). The Error type includes the filesystem path involved,
// a cause chain, and captured child-process output where one was run.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.StageTransform, errors.KindMalformedArtifact).
//		Path("target/contract.wasm").
//		Detail("section out of order").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownEntrypoint("deploy")
//	err := errors.BuildFailed("cargo exited non-zero", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
