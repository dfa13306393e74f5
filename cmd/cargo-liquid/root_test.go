package main

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		debugOn bool
		infoOn  bool
	}{
		{name: "default", infoOn: true},
		{name: "verbose", verbose: true, debugOn: true, infoOn: true},
		{name: "quiet", quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flagVerbose, flagQuiet = tt.verbose, tt.quiet
			defer func() { flagVerbose, flagQuiet = false, false }()

			log, err := newLogger()
			if err != nil {
				t.Fatalf("newLogger: %v", err)
			}
			if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Errorf("debug enabled: got %v, want %v", got, tt.debugOn)
			}
			if got := log.Core().Enabled(zapcore.InfoLevel); got != tt.infoOn {
				t.Errorf("info enabled: got %v, want %v", got, tt.infoOn)
			}
		})
	}
}
