// Package native runs contracts written as plain Go types.
//
// A native contract is any value whose exported methods have the signature
// func(core.Context). Entry point names map onto method names by title-casing the
// underscore separated words: counter_inc is served by CounterInc, call by Call.
// Every capital letter starts a word, so ReadURef serves read_u_ref. Methods
// whose names do not survive that mapping both ways are rejected by Register.
package native

import (
	"bytes"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/govm-net/counter/core"
)

var (
	ErrBadMethodName  = errors.New("method name does not map to an entry point")
	ErrModuleNotFound = errors.New("native module not found")
	ErrNoSuchExport   = errors.New("entry point not exported by module")
	ErrNotNative      = errors.New("not a native module")
)

// magic prefixes the module bytes of a native contract.
var magic = []byte("\x00gonative:")

var contextType = reflect.TypeOf((*core.Context)(nil)).Elem()

// casers are not safe for concurrent use.
var casers = sync.Pool{New: func() any { return cases.Title(language.Und) }}

// Module is a registered native contract.
type Module struct {
	name    string
	methods map[string]reflect.Value
}

type registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

var defaultRegistry = &registry{modules: make(map[string]*Module)}

// Register adds impl under name.
func Register(name string, impl any) error {
	if name == "" {
		return errors.New("native module name is empty")
	}
	if impl == nil {
		return errors.Errorf("native module %s is nil", name)
	}
	m := &Module{name: name, methods: make(map[string]reflect.Value)}
	v := reflect.ValueOf(impl)
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		method := v.Method(i)
		mt := method.Type()
		if mt.NumIn() != 1 || mt.In(0) != contextType || mt.NumOut() != 0 {
			continue
		}
		name := t.Method(i).Name
		if MethodName(EntryPointName(name)) != name {
			return errors.Wrapf(ErrBadMethodName, "%s.%s", m.name, name)
		}
		m.methods[name] = method
	}
	if len(m.methods) == 0 {
		return errors.Errorf("native module %s has no entry points", name)
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, exists := defaultRegistry.modules[name]; exists {
		return errors.Errorf("native module %s already registered", name)
	}
	defaultRegistry.modules[name] = m
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(name string, impl any) {
	if err := Register(name, impl); err != nil {
		panic(err)
	}
}

// Lookup returns the module registered under name.
func Lookup(name string) (*Module, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	m, ok := defaultRegistry.modules[name]
	return m, ok
}

// ListRegistered returns the names of all registered modules.
func ListRegistered() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make([]string, 0, len(defaultRegistry.modules))
	for name := range defaultRegistry.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ModuleBytes returns the code that refers to the native module name. It is what
// gets deployed and stored as contract wasm.
func ModuleBytes(name string) []byte {
	return append(append([]byte{}, magic...), name...)
}

// IsNative reports whether code was produced by ModuleBytes.
func IsNative(code []byte) bool {
	return bytes.HasPrefix(code, magic)
}

// Load resolves module bytes to a registered module.
func Load(code []byte) (*Module, error) {
	if !IsNative(code) {
		return nil, ErrNotNative
	}
	name := string(code[len(magic):])
	m, ok := Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrModuleNotFound, "module %q", name)
	}
	return m, nil
}

func (m *Module) Name() string {
	return m.name
}

// Has reports whether the module serves entryPoint.
func (m *Module) Has(entryPoint string) bool {
	_, ok := m.methods[MethodName(entryPoint)]
	return ok
}

// EntryPoints lists the entry point names the module serves.
func (m *Module) EntryPoints() []string {
	out := make([]string, 0, len(m.methods))
	for name := range m.methods {
		out = append(out, EntryPointName(name))
	}
	sort.Strings(out)
	return out
}

// Invoke runs entryPoint. Aborts raised through ctx propagate as panics.
func (m *Module) Invoke(ctx core.Context, entryPoint string) error {
	method, ok := m.methods[MethodName(entryPoint)]
	if !ok {
		return errors.Wrapf(ErrNoSuchExport, "%s.%s", m.name, entryPoint)
	}
	method.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem()})
	return nil
}

// MethodName maps an entry point name to the Go method serving it.
func MethodName(entryPoint string) string {
	caser := casers.Get().(cases.Caser)
	defer casers.Put(caser)
	var b strings.Builder
	for _, part := range strings.Split(entryPoint, "_") {
		b.WriteString(caser.String(part))
	}
	return b.String()
}

// EntryPointName is the inverse of MethodName.
func EntryPointName(method string) string {
	var b strings.Builder
	for i, r := range method {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
