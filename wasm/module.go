// Package wasm assembles WebAssembly binary modules.
//
// It covers what host-facing contracts need: imported host functions, defined
// functions, one linear memory and active data segments. Functions are referenced
// by the index returned when they are declared, so imports must be declared before
// any function is defined.
package wasm

import (
	"bytes"

	"github.com/pkg/errors"
)

// ValueType is a WebAssembly number type.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
)

// Magic and version open every binary module.
var (
	Magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	Version = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	externFunc   = 0x00
	externMemory = 0x02

	funcTypeForm = 0x60

	// PageSize is the size of a linear memory page.
	PageSize = 65536
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (f FuncType) equal(o FuncType) bool {
	return bytes.Equal(valueBytes(f.Params), valueBytes(o.Params)) &&
		bytes.Equal(valueBytes(f.Results), valueBytes(o.Results))
}

func valueBytes(vs []ValueType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

type importEntry struct {
	module, name string
	typeIndex    uint32
}

type function struct {
	typeIndex uint32
	locals    []ValueType
	body      []byte
}

type export struct {
	name  string
	kind  byte
	index uint32
}

type dataSegment struct {
	offset uint32
	bytes  []byte
}

// Module is a module under construction.
type Module struct {
	types    []FuncType
	imports  []importEntry
	funcs    []function
	exports  []export
	data     []dataSegment
	pages    uint32
	dataNext uint32
	err      error
}

// NewModule starts a module with a memory of pages pages. Data is laid out from
// dataBase upwards.
func NewModule(pages, dataBase uint32) *Module {
	return &Module{pages: pages, dataNext: dataBase}
}

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// Import declares a host function and returns its function index.
func (m *Module) Import(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 && m.err == nil {
		m.err = errors.Errorf("import %s.%s declared after a function definition", module, name)
	}
	m.imports = append(m.imports, importEntry{module: module, name: name, typeIndex: m.typeIndex(ft)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index.
func (m *Module) Func(ft FuncType, locals []ValueType, body *Code) uint32 {
	m.funcs = append(m.funcs, function{
		typeIndex: m.typeIndex(ft),
		locals:    locals,
		body:      body.Bytes(),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports a function under name.
func (m *Module) Export(name string, funcIndex uint32) {
	for _, e := range m.exports {
		if e.name == name && m.err == nil {
			m.err = errors.Errorf("duplicate export %q", name)
		}
	}
	m.exports = append(m.exports, export{name: name, kind: externFunc, index: funcIndex})
}

// ExportMemory exports the module memory under name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: externMemory, index: 0})
}

func (m *Module) alloc(n uint32) uint32 {
	// keep every allocation 8 byte aligned
	offset := (m.dataNext + 7) &^ 7
	m.dataNext = offset + n
	if uint64(m.dataNext) > uint64(m.pages)*PageSize && m.err == nil {
		m.err = errors.Errorf("data does not fit in %d pages", m.pages)
	}
	return offset
}

// Data places b in memory and returns its address.
func (m *Module) Data(b []byte) uint32 {
	offset := m.alloc(uint32(len(b)))
	m.data = append(m.data, dataSegment{offset: offset, bytes: append([]byte(nil), b...)})
	return offset
}

// Reserve sets aside n zeroed bytes and returns their address.
func (m *Module) Reserve(n uint32) uint32 {
	return m.alloc(n)
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = appendUleb128(out, uint64(len(content)))
	return append(out, content...)
}

func encodeLocals(locals []ValueType) []byte {
	type group struct {
		n uint32
		t ValueType
	}
	var groups []group
	for _, l := range locals {
		if len(groups) > 0 && groups[len(groups)-1].t == l {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: l})
	}
	out := appendUleb128(nil, uint64(len(groups)))
	for _, g := range groups {
		out = appendUleb128(out, uint64(g.n))
		out = append(out, byte(g.t))
	}
	return out
}

// Encode returns the binary module.
func (m *Module) Encode() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append(append([]byte{}, Magic...), Version...)

	var sec []byte
	sec = appendUleb128(sec, uint64(len(m.types)))
	for _, t := range m.types {
		sec = append(sec, funcTypeForm)
		sec = appendUleb128(sec, uint64(len(t.Params)))
		sec = append(sec, valueBytes(t.Params)...)
		sec = appendUleb128(sec, uint64(len(t.Results)))
		sec = append(sec, valueBytes(t.Results)...)
	}
	out = appendSection(out, sectionType, sec)

	if len(m.imports) > 0 {
		sec = appendUleb128(nil, uint64(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, externFunc)
			sec = appendUleb128(sec, uint64(imp.typeIndex))
		}
		out = appendSection(out, sectionImport, sec)
	}

	sec = appendUleb128(nil, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		sec = appendUleb128(sec, uint64(f.typeIndex))
	}
	out = appendSection(out, sectionFunction, sec)

	// one memory, minimum only
	sec = appendUleb128(nil, 1)
	sec = append(sec, 0x00)
	sec = appendUleb128(sec, uint64(m.pages))
	out = appendSection(out, sectionMemory, sec)

	if len(m.exports) > 0 {
		sec = appendUleb128(nil, uint64(len(m.exports)))
		for _, e := range m.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = appendUleb128(sec, uint64(e.index))
		}
		out = appendSection(out, sectionExport, sec)
	}

	sec = appendUleb128(nil, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		body := encodeLocals(f.locals)
		body = append(body, f.body...)
		body = append(body, opEnd)
		sec = appendUleb128(sec, uint64(len(body)))
		sec = append(sec, body...)
	}
	out = appendSection(out, sectionCode, sec)

	if len(m.data) > 0 {
		sec = appendUleb128(nil, uint64(len(m.data)))
		for _, d := range m.data {
			// active segment for memory 0
			sec = appendUleb128(sec, 0)
			sec = append(sec, opI32Const)
			sec = appendSleb128(sec, int64(int32(d.offset)))
			sec = append(sec, opEnd)
			sec = appendUleb128(sec, uint64(len(d.bytes)))
			sec = append(sec, d.bytes...)
		}
		out = appendSection(out, sectionData, sec)
	}
	return out, nil
}
