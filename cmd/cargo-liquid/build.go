package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/2473o/cargo-liquid/build"
)

const wasmOptHint = `wasm-opt is not installed. Install this tool on your system in order to
reduce the size of your contract's Wasm binary.
See https://github.com/WebAssembly/binaryen#tools`

func newBuildCmd() *cobra.Command {
	var (
		skipWasmOpt bool
		skipVerify  bool
		entrypoints []string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the contract to WebAssembly and prepare it for deployment",
		Long: `Compile the contract crate for the wasm32-unknown-unknown target, remove
everything unreachable from its entrypoints, strip metadata sections, and
optionally run wasm-opt over the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			out := cmd.OutOrStdout()
			pipeline := build.New(build.Options{
				ManifestPath: flagManifestPath,
				Entrypoints:  entrypoints,
				SkipWasmOpt:  skipWasmOpt,
				SkipVerify:   skipVerify,
				Progress:     stepPrinter(out),
			}, log)

			summary, err := pipeline.Execute(cmd.Context())
			if err != nil {
				return err
			}

			reportSummary(out, summary, skipWasmOpt)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipWasmOpt, "skip-wasm-opt", false, "do not run the external wasm-opt optimizer")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "do not compile the processed artifact as a sanity check")
	cmd.Flags().StringSliceVar(&entrypoints, "entrypoint", nil, "exported function the contract must keep (repeatable; defaults to call,deploy)")
	return cmd
}

func stepPrinter(w io.Writer) func(step, total int, message string) {
	return func(step, total int, message string) {
		fmt.Fprintf(w, " %s %s\n",
			render(styleStep, fmt.Sprintf("[%d/%d]", step, total)),
			render(styleStage, message))
	}
}

func reportSummary(w io.Writer, summary *build.Summary, skipWasmOpt bool) {
	switch {
	case summary.WasmOptUsed:
		fmt.Fprintf(w, " Original wasm size: %.1fK, Optimized: %.1fK\n",
			float64(summary.OriginalSize)/1000.0,
			float64(summary.OptimizedSize)/1000.0)
	case !skipWasmOpt:
		fmt.Fprintln(w, render(styleWarn, wasmOptHint))
	}

	fmt.Fprintf(w, "\nYour contract is ready. You can find it here:\n%s\n",
		render(styleBold, summary.DestWasm))
}
