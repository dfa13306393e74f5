package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	flagManifestPath string
	flagVerbose      bool
	flagQuiet        bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cargo-liquid",
		Short: "Build tool for liquid smart contracts",
		Long: `cargo-liquid compiles a liquid smart contract crate to WebAssembly and
post-processes the artifact for deployment.

The build pipeline:
  - resolves the contract crate's metadata
  - runs cargo against a temporarily edited manifest
  - shrinks the wasm module to its entrypoint closure and strips metadata
  - optionally runs wasm-opt for further size reduction`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagManifestPath, "manifest-path", "Cargo.toml", "path to the contract crate's Cargo.toml")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "disable logging")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// newLogger builds the logger the current verbosity flags ask for.
func newLogger() (*zap.Logger, error) {
	switch {
	case flagQuiet:
		return zap.NewNop(), nil
	case flagVerbose:
		return zap.NewDevelopment()
	default:
		return zap.NewProductionConfig().Build()
	}
}
