package errors

import (
	"fmt"
	"strings"
)

// Stage indicates which pipeline stage the error occurred in
type Stage string

const (
	StageMetadata  Stage = "metadata"  // crate metadata resolution
	StageManifest  Stage = "manifest"  // manifest sandbox
	StageBuild     Stage = "build"     // cargo build
	StageTransform Stage = "transform" // wasm rewrite
	StageOptimize  Stage = "optimize"  // external wasm-opt
)

// Kind categorizes the error
type Kind string

const (
	KindResolution        Kind = "resolution_failed"
	KindInvalidManifest   Kind = "invalid_manifest"
	KindRestoreFailed     Kind = "restore_failed"
	KindBuildFailed       Kind = "build_failed"
	KindMalformedArtifact Kind = "malformed_artifact"
	KindUnknownEntrypoint Kind = "unknown_entrypoint"
	KindDanglingReference Kind = "dangling_reference"
	KindVerifyFailed      Kind = "verify_failed"
	KindOptimizerFailed   Kind = "optimizer_failed"
	KindIOFailure         Kind = "io_failure"
)

// Error is the structured error type used throughout the pipeline
type Error struct {
	Cause  error
	Stage  Stage
	Kind   Kind
	Path   string
	Detail string

	// Stdout and Stderr hold captured output streams of a failed
	// child process, when one was involved.
	Stdout []byte
	Stderr []byte
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if len(e.Stderr) > 0 {
		b.WriteString("\nstderr:\n")
		b.WriteString(strings.TrimRight(string(e.Stderr), "\n"))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Stage == t.Stage && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(stage Stage, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Stage: stage,
			Kind:  kind,
		},
	}
}

// Path sets the filesystem path the error relates to
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Output attaches captured child-process output streams
func (b *Builder) Output(stdout, stderr []byte) *Builder {
	b.err.Stdout = stdout
	b.err.Stderr = stderr
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MetadataResolution creates a crate metadata resolution error
func MetadataResolution(manifestPath string, cause error) *Error {
	return &Error{
		Stage:  StageMetadata,
		Kind:   KindResolution,
		Path:   manifestPath,
		Detail: "resolve crate metadata",
		Cause:  cause,
	}
}

// InvalidManifest creates an error for a manifest that cannot be
// parsed or edited
func InvalidManifest(manifestPath string, cause error) *Error {
	return &Error{
		Stage: StageManifest,
		Kind:  KindInvalidManifest,
		Path:  manifestPath,
		Cause: cause,
	}
}

// RestoreFailed creates an error for a manifest that could not be
// restored after a sandboxed build
func RestoreFailed(manifestPath string, cause error) *Error {
	return &Error{
		Stage:  StageManifest,
		Kind:   KindRestoreFailed,
		Path:   manifestPath,
		Detail: "restore original manifest",
		Cause:  cause,
	}
}

// BuildFailed creates an error for a cargo build that exited non-zero
func BuildFailed(detail string, cause error) *Error {
	return &Error{
		Stage:  StageBuild,
		Kind:   KindBuildFailed,
		Detail: detail,
		Cause:  cause,
	}
}

// MalformedArtifact creates an error for a wasm binary that does not parse
func MalformedArtifact(path string, cause error) *Error {
	return &Error{
		Stage: StageTransform,
		Kind:  KindMalformedArtifact,
		Path:  path,
		Cause: cause,
	}
}

// UnknownEntrypoint creates an error for an entrypoint name absent
// from the module's exports
func UnknownEntrypoint(name string) *Error {
	return &Error{
		Stage:  StageTransform,
		Kind:   KindUnknownEntrypoint,
		Detail: fmt.Sprintf("entrypoint %q is not exported by the module", name),
	}
}

// DanglingReference creates an internal consistency error: a surviving
// section entry references an index that was eliminated
func DanglingReference(space string, idx uint32) *Error {
	return &Error{
		Stage:  StageTransform,
		Kind:   KindDanglingReference,
		Detail: fmt.Sprintf("%s index %d references an eliminated entry", space, idx),
	}
}

// VerifyFailed creates an error for a transformed artifact that fails
// to compile
func VerifyFailed(cause error) *Error {
	return &Error{
		Stage:  StageTransform,
		Kind:   KindVerifyFailed,
		Detail: "transformed artifact does not compile",
		Cause:  cause,
	}
}

// OptimizerFailed creates an error for a wasm-opt run that exited
// non-zero, carrying its output streams
func OptimizerFailed(cause error, stdout, stderr []byte) *Error {
	return &Error{
		Stage:  StageOptimize,
		Kind:   KindOptimizerFailed,
		Detail: "wasm-opt optimization failed",
		Cause:  cause,
		Stdout: stdout,
		Stderr: stderr,
	}
}

// IO creates a filesystem error attributed to a stage
func IO(stage Stage, path string, cause error) *Error {
	return &Error{
		Stage: stage,
		Kind:  KindIOFailure,
		Path:  path,
		Cause: cause,
	}
}
