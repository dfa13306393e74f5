package optimize

import (
	"go.uber.org/zap"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/wasm"
)

// Optimizer shrinks a module to the code reachable from a set of exported
// entrypoints and strips toolchain metadata.
type Optimizer struct {
	log *zap.Logger
}

// NewOptimizer creates an optimizer. A nil logger disables logging.
func NewOptimizer(log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{log: log}
}

// Shrink removes every function, global, type, table, memory, and segment
// not reachable from the named entrypoint exports, then compacts all index
// spaces and remaps every reference. Function exports outside the entrypoint
// set are dropped; exports of other kinds survive. The module is mutated in
// place only after the whole reachability pass succeeds; an unknown
// entrypoint leaves it untouched.
func (o *Optimizer) Shrink(m *wasm.Module, entrypoints []string) error {
	entrySet := make(map[string]bool, len(entrypoints))
	rootFuncs := make([]uint32, 0, len(entrypoints))
	for _, name := range entrypoints {
		idx, ok := m.ExportedFunc(name)
		if !ok {
			return errors.UnknownEntrypoint(name)
		}
		entrySet[name] = true
		rootFuncs = append(rootFuncs, idx)
	}

	mk := newMarker(m)
	for _, idx := range rootFuncs {
		mk.markFunc(idx)
	}
	if m.Start != nil {
		mk.markFunc(*m.Start)
	}
	for _, exp := range m.Exports {
		switch exp.Kind {
		case wasm.KindTable:
			mk.markTable(exp.Idx)
		case wasm.KindMemory:
			mk.markMemory(exp.Idx)
		case wasm.KindGlobal:
			mk.markGlobal(exp.Idx)
		}
	}
	// Active data segments are applied at instantiation and pin their
	// target memory. Declarative element segments keep their functions
	// referenceable for ref.func.
	for i := range m.Data {
		if m.Data[i].IsActive() {
			mk.markData(uint32(i))
		}
	}
	for i := range m.Elements {
		if m.Elements[i].IsDeclarative() {
			mk.markElem(uint32(i))
		}
	}

	if err := mk.run(); err != nil {
		return err
	}

	before := shapeOf(m)
	if err := o.compact(m, mk, entrySet); err != nil {
		return err
	}
	after := shapeOf(m)

	o.log.Debug("module shrunk",
		zap.Uint32s("entrypoints", rootFuncs),
		zap.Int("funcs_before", before.funcs), zap.Int("funcs_after", after.funcs),
		zap.Int("globals_before", before.globals), zap.Int("globals_after", after.globals),
		zap.Int("types_before", before.types), zap.Int("types_after", after.types),
		zap.Int("data_before", before.data), zap.Int("data_after", after.data))
	return nil
}

type moduleShape struct {
	funcs, globals, types, data int
}

func shapeOf(m *wasm.Module) moduleShape {
	return moduleShape{
		funcs:   m.NumFuncs(),
		globals: m.NumGlobals(),
		types:   len(m.Types),
		data:    len(m.Data),
	}
}

// marker computes the reachable subset of every index space. Spaces are
// interdependent (a reachable table pulls in its element segments, whose
// entries pull in functions), so marking runs worklists to a fixed point.
type marker struct {
	m *wasm.Module

	funcs    map[uint32]bool
	globals  map[uint32]bool
	types    map[uint32]bool
	tables   map[uint32]bool
	memories map[uint32]bool
	data     map[uint32]bool
	elems    map[uint32]bool

	funcQ   []uint32
	globalQ []uint32
	tableQ  []uint32
	dataQ   []uint32
	elemQ   []uint32

	// Decoded bodies of declared functions, reused by the rewrite pass.
	bodies map[uint32][]wasm.Instruction
}

func newMarker(m *wasm.Module) *marker {
	return &marker{
		m:        m,
		funcs:    make(map[uint32]bool),
		globals:  make(map[uint32]bool),
		types:    make(map[uint32]bool),
		tables:   make(map[uint32]bool),
		memories: make(map[uint32]bool),
		data:     make(map[uint32]bool),
		elems:    make(map[uint32]bool),
		bodies:   make(map[uint32][]wasm.Instruction),
	}
}

func (mk *marker) markFunc(idx uint32) {
	if !mk.funcs[idx] {
		mk.funcs[idx] = true
		mk.funcQ = append(mk.funcQ, idx)
	}
}

func (mk *marker) markGlobal(idx uint32) {
	if !mk.globals[idx] {
		mk.globals[idx] = true
		mk.globalQ = append(mk.globalQ, idx)
	}
}

func (mk *marker) markType(idx uint32) {
	mk.types[idx] = true
}

func (mk *marker) markTable(idx uint32) {
	if !mk.tables[idx] {
		mk.tables[idx] = true
		mk.tableQ = append(mk.tableQ, idx)
	}
}

func (mk *marker) markMemory(idx uint32) {
	mk.memories[idx] = true
}

func (mk *marker) markData(idx uint32) {
	if !mk.data[idx] {
		mk.data[idx] = true
		mk.dataQ = append(mk.dataQ, idx)
	}
}

func (mk *marker) markElem(idx uint32) {
	if !mk.elems[idx] {
		mk.elems[idx] = true
		mk.elemQ = append(mk.elemQ, idx)
	}
}

func (mk *marker) run() error {
	for {
		switch {
		case len(mk.funcQ) > 0:
			idx := mk.funcQ[len(mk.funcQ)-1]
			mk.funcQ = mk.funcQ[:len(mk.funcQ)-1]
			if err := mk.visitFunc(idx); err != nil {
				return err
			}
		case len(mk.globalQ) > 0:
			idx := mk.globalQ[len(mk.globalQ)-1]
			mk.globalQ = mk.globalQ[:len(mk.globalQ)-1]
			if err := mk.visitGlobal(idx); err != nil {
				return err
			}
		case len(mk.tableQ) > 0:
			idx := mk.tableQ[len(mk.tableQ)-1]
			mk.tableQ = mk.tableQ[:len(mk.tableQ)-1]
			mk.visitTable(idx)
		case len(mk.dataQ) > 0:
			idx := mk.dataQ[len(mk.dataQ)-1]
			mk.dataQ = mk.dataQ[:len(mk.dataQ)-1]
			if err := mk.visitData(idx); err != nil {
				return err
			}
		case len(mk.elemQ) > 0:
			idx := mk.elemQ[len(mk.elemQ)-1]
			mk.elemQ = mk.elemQ[:len(mk.elemQ)-1]
			if err := mk.visitElem(idx); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (mk *marker) visitFunc(idx uint32) error {
	typeIdx, ok := mk.m.FuncTypeIdx(idx)
	if !ok {
		return errors.DanglingReference("function", idx)
	}
	mk.markType(typeIdx)

	numImported := uint32(mk.m.NumImportedFuncs())
	if idx < numImported {
		return nil
	}
	declared := idx - numImported
	if int(declared) >= len(mk.m.Code) {
		return errors.DanglingReference("function", idx)
	}
	instrs, err := wasm.DecodeInstructions(mk.m.Code[declared].Code)
	if err != nil {
		return errors.New(errors.StageTransform, errors.KindMalformedArtifact).
			Cause(err).
			Detail("decode body of function %d", idx).
			Build()
	}
	mk.bodies[idx] = instrs
	mk.scan(instrs)
	return nil
}

func (mk *marker) visitGlobal(idx uint32) error {
	numImported := uint32(mk.m.NumImportedGlobals())
	if idx < numImported {
		return nil
	}
	declared := idx - numImported
	if int(declared) >= len(mk.m.Globals) {
		return errors.DanglingReference("global", idx)
	}
	instrs, err := wasm.DecodeInstructions(mk.m.Globals[declared].Init)
	if err != nil {
		return errors.New(errors.StageTransform, errors.KindMalformedArtifact).
			Cause(err).
			Detail("decode init of global %d", idx).
			Build()
	}
	mk.scan(instrs)
	return nil
}

// visitTable pulls in the active element segments that populate the table.
// Their entries may be called indirectly, so they stay reachable.
func (mk *marker) visitTable(idx uint32) {
	for i := range mk.m.Elements {
		elem := &mk.m.Elements[i]
		if elem.IsActive() && elem.TableIdx == idx {
			mk.markElem(uint32(i))
		}
	}
}

func (mk *marker) visitData(idx uint32) error {
	// Segment indices come straight from memory.init/data.drop immediates,
	// so they must be range-checked like any other reference.
	if int(idx) >= len(mk.m.Data) {
		return errors.DanglingReference("data segment", idx)
	}
	seg := &mk.m.Data[idx]
	if !seg.IsActive() {
		return nil
	}
	mk.markMemory(seg.MemIdx)
	instrs, err := wasm.DecodeInstructions(seg.Offset)
	if err != nil {
		return errors.New(errors.StageTransform, errors.KindMalformedArtifact).
			Cause(err).
			Detail("decode offset of data segment %d", idx).
			Build()
	}
	mk.scan(instrs)
	return nil
}

func (mk *marker) visitElem(idx uint32) error {
	if int(idx) >= len(mk.m.Elements) {
		return errors.DanglingReference("element segment", idx)
	}
	elem := &mk.m.Elements[idx]
	if elem.IsActive() {
		mk.markTable(elem.TableIdx)
		instrs, err := wasm.DecodeInstructions(elem.Offset)
		if err != nil {
			return errors.New(errors.StageTransform, errors.KindMalformedArtifact).
				Cause(err).
				Detail("decode offset of element segment %d", idx).
				Build()
		}
		mk.scan(instrs)
	}
	for _, funcIdx := range elem.FuncIdxs {
		mk.markFunc(funcIdx)
	}
	for i, expr := range elem.Exprs {
		instrs, err := wasm.DecodeInstructions(expr)
		if err != nil {
			return errors.New(errors.StageTransform, errors.KindMalformedArtifact).
				Cause(err).
				Detail("decode expression %d of element segment %d", i, idx).
				Build()
		}
		mk.scan(instrs)
	}
	return nil
}

func (mk *marker) scan(instrs []wasm.Instruction) {
	for i := range instrs {
		switch imm := instrs[i].Imm.(type) {
		case wasm.CallImm:
			mk.markFunc(imm.FuncIdx)
		case wasm.CallIndirectImm:
			mk.markType(imm.TypeIdx)
			mk.markTable(imm.TableIdx)
		case wasm.GlobalImm:
			mk.markGlobal(imm.GlobalIdx)
		case wasm.RefFuncImm:
			mk.markFunc(imm.FuncIdx)
		case wasm.TableImm:
			mk.markTable(imm.TableIdx)
		case wasm.MemoryImm:
			mk.markMemory(imm.MemIdx)
		case wasm.MemoryIdxImm:
			mk.markMemory(imm.MemIdx)
		case wasm.BlockImm:
			if imm.Type >= 0 {
				mk.markType(uint32(imm.Type))
			}
		case wasm.SIMDImm:
			if imm.MemArg != nil {
				mk.markMemory(imm.MemArg.MemIdx)
			}
		case wasm.MiscImm:
			mk.scanMisc(imm)
		}
	}
}

func (mk *marker) scanMisc(imm wasm.MiscImm) {
	switch imm.SubOpcode {
	case wasm.MiscMemoryInit:
		mk.markData(imm.Operands[0])
		mk.markMemory(imm.Operands[1])
	case wasm.MiscDataDrop:
		mk.markData(imm.Operands[0])
	case wasm.MiscMemoryCopy:
		mk.markMemory(imm.Operands[0])
		mk.markMemory(imm.Operands[1])
	case wasm.MiscMemoryFill:
		mk.markMemory(imm.Operands[0])
	case wasm.MiscTableInit:
		mk.markElem(imm.Operands[0])
		mk.markTable(imm.Operands[1])
	case wasm.MiscElemDrop:
		mk.markElem(imm.Operands[0])
	case wasm.MiscTableCopy:
		mk.markTable(imm.Operands[0])
		mk.markTable(imm.Operands[1])
	case wasm.MiscTableGrow, wasm.MiscTableSize, wasm.MiscTableFill:
		mk.markTable(imm.Operands[0])
	}
}
