package optimize

import (
	"go.uber.org/zap"

	"github.com/2473o/cargo-liquid/wasm"
)

// StripMetadata removes every custom section from the module. Name,
// producer, and linking sections serve toolchains and debuggers, not
// execution, and carry no weight a deployed contract should pay for.
// It returns the number of sections removed.
func (o *Optimizer) StripMetadata(m *wasm.Module) int {
	n := len(m.CustomSections)
	if n == 0 {
		return 0
	}
	names := make([]string, n)
	for i, s := range m.CustomSections {
		names[i] = s.Name
	}
	m.CustomSections = nil
	o.log.Debug("custom sections stripped", zap.Strings("sections", names))
	return n
}
