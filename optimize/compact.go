package optimize

import (
	"fmt"

	"github.com/2473o/cargo-liquid/errors"
	"github.com/2473o/cargo-liquid/wasm"
)

// remapTable carries the order-preserving old-to-new index mapping for every
// compacted index space.
type remapTable struct {
	funcs    map[uint32]uint32
	globals  map[uint32]uint32
	types    map[uint32]uint32
	tables   map[uint32]uint32
	memories map[uint32]uint32
	data     map[uint32]uint32
	elems    map[uint32]uint32
}

func buildRemap(space map[uint32]bool, total int) map[uint32]uint32 {
	out := make(map[uint32]uint32, len(space))
	var next uint32
	for i := 0; i < total; i++ {
		if space[uint32(i)] {
			out[uint32(i)] = next
			next++
		}
	}
	return out
}

// compact drops every unmarked entry, renumbers the survivors, and rewrites
// all references through the new numbering.
func (o *Optimizer) compact(m *wasm.Module, mk *marker, entrySet map[string]bool) error {
	rm := &remapTable{
		funcs:    buildRemap(mk.funcs, m.NumFuncs()),
		globals:  buildRemap(mk.globals, m.NumGlobals()),
		types:    buildRemap(mk.types, len(m.Types)),
		tables:   buildRemap(mk.tables, m.NumTables()),
		memories: buildRemap(mk.memories, m.NumMemories()),
		data:     buildRemap(mk.data, len(m.Data)),
		elems:    buildRemap(mk.elems, len(m.Elements)),
	}

	numImportedFuncs := uint32(m.NumImportedFuncs())
	numImportedGlobals := uint32(m.NumImportedGlobals())
	numImportedTables := uint32(m.NumImportedTables())
	numImportedMemories := uint32(m.NumImportedMemories())

	// Imports. Per-kind counters recover each import's index in its space.
	var fIdx, gIdx, tIdx, memIdx uint32
	imports := m.Imports[:0]
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			if mk.funcs[fIdx] {
				newType, ok := rm.types[imp.Desc.TypeIdx]
				if !ok {
					return errors.DanglingReference("type", imp.Desc.TypeIdx)
				}
				imp.Desc.TypeIdx = newType
				imports = append(imports, imp)
			}
			fIdx++
		case wasm.KindGlobal:
			if mk.globals[gIdx] {
				imports = append(imports, imp)
			}
			gIdx++
		case wasm.KindTable:
			if mk.tables[tIdx] {
				imports = append(imports, imp)
			}
			tIdx++
		case wasm.KindMemory:
			if mk.memories[memIdx] {
				imports = append(imports, imp)
			}
			memIdx++
		}
	}
	m.Imports = imports

	// Declared functions and their bodies.
	funcs := m.Funcs[:0]
	code := m.Code[:0]
	for i := range m.Funcs {
		oldIdx := numImportedFuncs + uint32(i)
		if !mk.funcs[oldIdx] {
			continue
		}
		newType, ok := rm.types[m.Funcs[i]]
		if !ok {
			return errors.DanglingReference("type", m.Funcs[i])
		}
		instrs, ok := mk.bodies[oldIdx]
		if !ok {
			return errors.DanglingReference("function", oldIdx)
		}
		if err := remapInstrs(instrs, rm); err != nil {
			return err
		}
		funcs = append(funcs, newType)
		code = append(code, wasm.FuncBody{
			Locals: m.Code[i].Locals,
			Code:   wasm.EncodeInstructions(instrs),
		})
	}
	m.Funcs = funcs
	m.Code = code

	// Types.
	types := m.Types[:0]
	for i := range m.Types {
		if mk.types[uint32(i)] {
			types = append(types, m.Types[i])
		}
	}
	m.Types = types

	// Declared tables and memories.
	tables := m.Tables[:0]
	for i := range m.Tables {
		if mk.tables[numImportedTables+uint32(i)] {
			tables = append(tables, m.Tables[i])
		}
	}
	m.Tables = tables

	memories := m.Memories[:0]
	for i := range m.Memories {
		if mk.memories[numImportedMemories+uint32(i)] {
			memories = append(memories, m.Memories[i])
		}
	}
	m.Memories = memories

	// Declared globals, with init expressions remapped.
	globals := m.Globals[:0]
	for i := range m.Globals {
		if !mk.globals[numImportedGlobals+uint32(i)] {
			continue
		}
		init, err := remapExpr(m.Globals[i].Init, rm, "global init")
		if err != nil {
			return err
		}
		m.Globals[i].Init = init
		globals = append(globals, m.Globals[i])
	}
	m.Globals = globals

	// Exports: entrypoint functions survive, other function exports are
	// dropped, non-function exports are renumbered.
	exports := m.Exports[:0]
	for _, exp := range m.Exports {
		var (
			newIdx uint32
			ok     bool
		)
		switch exp.Kind {
		case wasm.KindFunc:
			if !entrySet[exp.Name] {
				continue
			}
			newIdx, ok = rm.funcs[exp.Idx]
		case wasm.KindTable:
			newIdx, ok = rm.tables[exp.Idx]
		case wasm.KindMemory:
			newIdx, ok = rm.memories[exp.Idx]
		case wasm.KindGlobal:
			newIdx, ok = rm.globals[exp.Idx]
		}
		if !ok {
			return errors.DanglingReference("export", exp.Idx)
		}
		exp.Idx = newIdx
		exports = append(exports, exp)
	}
	m.Exports = exports

	if m.Start != nil {
		newStart, ok := rm.funcs[*m.Start]
		if !ok {
			return errors.DanglingReference("function", *m.Start)
		}
		m.Start = &newStart
	}

	// Element segments.
	elements := m.Elements[:0]
	for i := range m.Elements {
		if !mk.elems[uint32(i)] {
			continue
		}
		elem := m.Elements[i]
		if elem.IsActive() {
			newTable, ok := rm.tables[elem.TableIdx]
			if !ok {
				return errors.DanglingReference("table", elem.TableIdx)
			}
			elem.TableIdx = newTable
			offset, err := remapExpr(elem.Offset, rm, "element offset")
			if err != nil {
				return err
			}
			elem.Offset = offset
		}
		for j, funcIdx := range elem.FuncIdxs {
			newIdx, ok := rm.funcs[funcIdx]
			if !ok {
				return errors.DanglingReference("function", funcIdx)
			}
			elem.FuncIdxs[j] = newIdx
		}
		for j, expr := range elem.Exprs {
			remapped, err := remapExpr(expr, rm, "element expression")
			if err != nil {
				return err
			}
			elem.Exprs[j] = remapped
		}
		elements = append(elements, elem)
	}
	m.Elements = elements

	// Data segments.
	data := m.Data[:0]
	for i := range m.Data {
		if !mk.data[uint32(i)] {
			continue
		}
		seg := m.Data[i]
		if seg.IsActive() {
			newMem, ok := rm.memories[seg.MemIdx]
			if !ok {
				return errors.DanglingReference("memory", seg.MemIdx)
			}
			seg.MemIdx = newMem
			offset, err := remapExpr(seg.Offset, rm, "data offset")
			if err != nil {
				return err
			}
			seg.Offset = offset
		}
		data = append(data, seg)
	}
	m.Data = data

	if m.DataCount != nil {
		count := uint32(len(m.Data))
		m.DataCount = &count
	}
	return nil
}

// remapExpr decodes an init expression, renumbers its references, and
// re-encodes it.
func remapExpr(expr []byte, rm *remapTable, what string) ([]byte, error) {
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if err := remapInstrs(instrs, rm); err != nil {
		return nil, err
	}
	return wasm.EncodeInstructions(instrs), nil
}

// remapInstrs rewrites every index immediate in place. A reference outside
// the kept set means the reachability pass missed something.
func remapInstrs(instrs []wasm.Instruction, rm *remapTable) error {
	for i := range instrs {
		switch imm := instrs[i].Imm.(type) {
		case wasm.CallImm:
			newIdx, ok := rm.funcs[imm.FuncIdx]
			if !ok {
				return errors.DanglingReference("function", imm.FuncIdx)
			}
			imm.FuncIdx = newIdx
			instrs[i].Imm = imm
		case wasm.CallIndirectImm:
			newType, ok := rm.types[imm.TypeIdx]
			if !ok {
				return errors.DanglingReference("type", imm.TypeIdx)
			}
			newTable, ok := rm.tables[imm.TableIdx]
			if !ok {
				return errors.DanglingReference("table", imm.TableIdx)
			}
			imm.TypeIdx = newType
			imm.TableIdx = newTable
			instrs[i].Imm = imm
		case wasm.GlobalImm:
			newIdx, ok := rm.globals[imm.GlobalIdx]
			if !ok {
				return errors.DanglingReference("global", imm.GlobalIdx)
			}
			imm.GlobalIdx = newIdx
			instrs[i].Imm = imm
		case wasm.RefFuncImm:
			newIdx, ok := rm.funcs[imm.FuncIdx]
			if !ok {
				return errors.DanglingReference("function", imm.FuncIdx)
			}
			imm.FuncIdx = newIdx
			instrs[i].Imm = imm
		case wasm.TableImm:
			newIdx, ok := rm.tables[imm.TableIdx]
			if !ok {
				return errors.DanglingReference("table", imm.TableIdx)
			}
			imm.TableIdx = newIdx
			instrs[i].Imm = imm
		case wasm.MemoryImm:
			newIdx, ok := rm.memories[imm.MemIdx]
			if !ok {
				return errors.DanglingReference("memory", imm.MemIdx)
			}
			imm.MemIdx = newIdx
			instrs[i].Imm = imm
		case wasm.MemoryIdxImm:
			newIdx, ok := rm.memories[imm.MemIdx]
			if !ok {
				return errors.DanglingReference("memory", imm.MemIdx)
			}
			imm.MemIdx = newIdx
			instrs[i].Imm = imm
		case wasm.BlockImm:
			if imm.Type >= 0 {
				newType, ok := rm.types[uint32(imm.Type)]
				if !ok {
					return errors.DanglingReference("type", uint32(imm.Type))
				}
				imm.Type = int32(newType)
				instrs[i].Imm = imm
			}
		case wasm.SIMDImm:
			if imm.MemArg != nil {
				newIdx, ok := rm.memories[imm.MemArg.MemIdx]
				if !ok {
					return errors.DanglingReference("memory", imm.MemArg.MemIdx)
				}
				imm.MemArg.MemIdx = newIdx
			}
		case wasm.MiscImm:
			if err := remapMisc(&imm, rm); err != nil {
				return err
			}
			instrs[i].Imm = imm
		}
	}
	return nil
}

func remapMisc(imm *wasm.MiscImm, rm *remapTable) error {
	remapOne := func(pos int, space map[uint32]uint32, what string) error {
		newIdx, ok := space[imm.Operands[pos]]
		if !ok {
			return errors.DanglingReference(what, imm.Operands[pos])
		}
		imm.Operands[pos] = newIdx
		return nil
	}

	switch imm.SubOpcode {
	case wasm.MiscMemoryInit:
		if err := remapOne(0, rm.data, "data segment"); err != nil {
			return err
		}
		return remapOne(1, rm.memories, "memory")
	case wasm.MiscDataDrop:
		return remapOne(0, rm.data, "data segment")
	case wasm.MiscMemoryCopy:
		if err := remapOne(0, rm.memories, "memory"); err != nil {
			return err
		}
		return remapOne(1, rm.memories, "memory")
	case wasm.MiscMemoryFill:
		return remapOne(0, rm.memories, "memory")
	case wasm.MiscTableInit:
		if err := remapOne(0, rm.elems, "element segment"); err != nil {
			return err
		}
		return remapOne(1, rm.tables, "table")
	case wasm.MiscElemDrop:
		return remapOne(0, rm.elems, "element segment")
	case wasm.MiscTableCopy:
		if err := remapOne(0, rm.tables, "table"); err != nil {
			return err
		}
		return remapOne(1, rm.tables, "table")
	case wasm.MiscTableGrow, wasm.MiscTableSize, wasm.MiscTableFill:
		return remapOne(0, rm.tables, "table")
	}
	return nil
}
