// Package build orchestrates the contract build pipeline: crate metadata
// resolution, a sandboxed cargo build, wasm post-processing, and an
// optional pass through the external wasm-opt optimizer.
package build

import (
	"context"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/optimize"
	"github.com/2473o/cargo-liquid/wasm"
	"github.com/2473o/cargo-liquid/workspace"
)

// DefaultEntrypoints are the exports a liquid contract exposes to the chain.
var DefaultEntrypoints = []string{"call", "deploy"}

// totalSteps is the number of top-level pipeline stages reported to Progress.
const totalSteps = 4

// Options configures a Pipeline. The function fields default to the real
// implementations and exist so tests can substitute collaborators.
type Options struct {
	// ManifestPath locates the contract crate's Cargo.toml. Empty means
	// the Cargo.toml in the current directory.
	ManifestPath string

	// Entrypoints are the exported functions the shrunk module must keep.
	// Empty means DefaultEntrypoints.
	Entrypoints []string

	// SkipWasmOpt disables the external optimizer stage.
	SkipWasmOpt bool

	// SkipVerify disables the wazero compile check on the transformed
	// artifact.
	SkipVerify bool

	Resolver   func(ctx context.Context, manifestPath string) (*workspace.CrateMetadata, error)
	BuildFn    func(ctx context.Context, meta *workspace.CrateMetadata) error
	LookPath   func(file string) (string, error)
	RunCommand RunCommandFunc
	Progress   func(step, total int, message string)
}

// Summary reports where the finished artifact lives and how large it is.
type Summary struct {
	// DestWasm is the final artifact path.
	DestWasm string

	// OriginalSize is the artifact size in bytes after post-processing,
	// before the external optimizer.
	OriginalSize int64

	// OptimizedSize is the size after wasm-opt, zero when it did not run.
	OptimizedSize int64

	// WasmOptUsed reports whether the external optimizer ran.
	WasmOptUsed bool
}

// Pipeline drives a full contract build.
type Pipeline struct {
	log      *zap.Logger
	opts     Options
	resolve  func(ctx context.Context, manifestPath string) (*workspace.CrateMetadata, error)
	build    func(ctx context.Context, meta *workspace.CrateMetadata) error
	lookPath func(file string) (string, error)
	run      RunCommandFunc
	progress func(step, total int, message string)
}

// New creates a pipeline. A nil logger disables logging.
func New(opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ManifestPath == "" {
		opts.ManifestPath = "Cargo.toml"
	}
	if len(opts.Entrypoints) == 0 {
		opts.Entrypoints = DefaultEntrypoints
	}

	p := &Pipeline{log: log, opts: opts}
	p.resolve = opts.Resolver
	if p.resolve == nil {
		p.resolve = workspace.Collect
	}
	p.build = opts.BuildFn
	if p.build == nil {
		p.build = p.cargoBuild
	}
	p.lookPath = opts.LookPath
	if p.lookPath == nil {
		p.lookPath = exec.LookPath
	}
	p.run = opts.RunCommand
	if p.run == nil {
		p.run = runCommand
	}
	p.progress = opts.Progress
	if p.progress == nil {
		p.progress = func(int, int, string) {}
	}
	return p
}

// Execute runs the pipeline end to end and returns the artifact summary.
func (p *Pipeline) Execute(ctx context.Context) (*Summary, error) {
	p.progress(1, totalSteps, "Collecting crate metadata")
	meta, err := p.resolve(ctx, p.opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	p.log.Debug("crate metadata resolved",
		zap.String("package", meta.PackageName),
		zap.String("target_dir", meta.TargetDir))

	p.progress(2, totalSteps, "Building cargo project")
	if err := p.build(ctx, meta); err != nil {
		return nil, err
	}

	p.progress(3, totalSteps, "Post processing wasm file")
	if err := p.postProcess(ctx, meta); err != nil {
		return nil, err
	}

	p.progress(4, totalSteps, "Optimizing wasm file")
	return p.externalOptimize(ctx, meta)
}

// cargoBuild runs cargo against the temporarily edited manifest. The rlib
// crate type conflicts with the wasm target and LTO keeps the artifact
// small, so both edits are scoped to this build.
func (p *Pipeline) cargoBuild(ctx context.Context, meta *workspace.CrateMetadata) error {
	ws := workspace.New(meta, p.log).WithRootManifest(
		workspace.RemoveCrateType("rlib"),
		workspace.ReleaseLTO(true),
	)
	return ws.UsingTemp(func() error {
		stdout, stderr, err := p.run(ctx, []string{"RUSTFLAGS=" + rustFlags},
			"cargo", cargoBuildArgs(meta)...)
		if err != nil {
			return errors.New(errors.StageBuild, errors.KindBuildFailed).
				Path(meta.ManifestPath).
				Cause(err).
				Detail("cargo build failed").
				Output(stdout, stderr).
				Build()
		}
		return nil
	})
}

// postProcess shrinks the cargo artifact to the entrypoint closure, strips
// metadata, verifies the result, and writes it to the destination path.
// The destination stays untouched unless every step succeeds.
func (p *Pipeline) postProcess(ctx context.Context, meta *workspace.CrateMetadata) error {
	src := meta.OriginalWasm()
	raw, err := os.ReadFile(src)
	if err != nil {
		return errors.IO(errors.StageTransform, src, err)
	}

	module, err := wasm.ParseModuleValidate(raw)
	if err != nil {
		return errors.MalformedArtifact(src, err)
	}

	opt := optimize.NewOptimizer(p.log)
	if err := opt.Shrink(module, p.opts.Entrypoints); err != nil {
		return err
	}
	opt.StripMetadata(module)

	out := module.Encode()
	if !p.opts.SkipVerify {
		if err := verifyArtifact(ctx, out); err != nil {
			return err
		}
	}

	dest := meta.DestWasm()
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return errors.IO(errors.StageTransform, dest, err)
	}
	p.log.Debug("artifact written",
		zap.String("path", dest),
		zap.Int("raw_size", len(raw)),
		zap.Int("processed_size", len(out)))
	return nil
}

// externalOptimize runs wasm-opt over the destination artifact when the
// tool is installed. Its absence is not an error; the transform output
// simply ships as-is.
func (p *Pipeline) externalOptimize(ctx context.Context, meta *workspace.CrateMetadata) (*Summary, error) {
	dest := meta.DestWasm()
	summary := &Summary{DestWasm: dest}
	if info, err := os.Stat(dest); err == nil {
		summary.OriginalSize = info.Size()
	}

	if p.opts.SkipWasmOpt {
		p.log.Debug("wasm-opt stage skipped by request")
		return summary, nil
	}
	if _, err := p.lookPath("wasm-opt"); err != nil {
		p.log.Warn("wasm-opt not found in PATH, shipping unoptimized artifact")
		return summary, nil
	}

	scratch := meta.OptWasm()
	stdout, stderr, err := p.run(ctx, nil, "wasm-opt", dest, "-O3", "-o", scratch)
	if err != nil {
		return nil, errors.OptimizerFailed(err, stdout, stderr)
	}
	if info, err := os.Stat(scratch); err == nil {
		summary.OptimizedSize = info.Size()
	}
	if err := os.Rename(scratch, dest); err != nil {
		return nil, errors.IO(errors.StageOptimize, dest, err)
	}
	summary.WasmOptUsed = true

	p.log.Debug("wasm-opt finished",
		zap.Int64("original_size", summary.OriginalSize),
		zap.Int64("optimized_size", summary.OptimizedSize))
	return summary, nil
}
