package types

// EntryPointAccess controls who may call an entry point.
type EntryPointAccess uint8

const (
	AccessPublic EntryPointAccess = 0
)

// EntryPointType selects the context an entry point runs in.
type EntryPointType uint8

const (
	// EntryPointSession runs with the caller's named keys.
	EntryPointSession EntryPointType = 0
	// EntryPointContract runs with the contract's named keys.
	EntryPointContract EntryPointType = 1
)

// Parameter is a declared argument of an entry point.
type Parameter struct {
	Name string
	Type CLType
}

// EntryPoint describes a callable function of a contract.
type EntryPoint struct {
	Name   string
	Args   []Parameter
	Ret    CLType
	Access EntryPointAccess
	Type   EntryPointType
}

func NewEntryPoint(name string, args []Parameter, ret CLType, access EntryPointAccess, typ EntryPointType) EntryPoint {
	return EntryPoint{
		Name:   name,
		Args:   args,
		Ret:    ret,
		Access: access,
		Type:   typ,
	}
}

// EntryPoints is the ordered set of entry points of a contract.
type EntryPoints []EntryPoint

// Add inserts ep, replacing an entry point with the same name.
func (e *EntryPoints) Add(ep EntryPoint) {
	for i := range *e {
		if (*e)[i].Name == ep.Name {
			(*e)[i] = ep
			return
		}
	}
	*e = append(*e, ep)
}

func (e EntryPoints) Get(name string) (EntryPoint, bool) {
	for _, ep := range e {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

func (e EntryPoints) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}

func (e EntryPoints) Names() []string {
	out := make([]string, 0, len(e))
	for _, ep := range e {
		out = append(out, ep.Name)
	}
	return out
}

// Validate rejects unnamed and duplicate entry points.
func (e EntryPoints) Validate() error {
	seen := make(map[string]struct{}, len(e))
	for _, ep := range e {
		if ep.Name == "" {
			return ErrInvalidArgument
		}
		if _, ok := seen[ep.Name]; ok {
			return ErrDuplicateKey
		}
		if !ep.Ret.Valid() {
			return ErrFormatting
		}
		seen[ep.Name] = struct{}{}
	}
	return nil
}

// NamedArg is a single runtime argument.
type NamedArg struct {
	Name  string
	Value CLValue
}

// RuntimeArgs are the arguments of a call, in the order they were given.
type RuntimeArgs []NamedArg

func (a RuntimeArgs) Get(name string) (CLValue, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return CLValue{}, false
}

// Insert adds or replaces an argument.
func (a *RuntimeArgs) Insert(name string, value CLValue) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, NamedArg{Name: name, Value: value})
}
