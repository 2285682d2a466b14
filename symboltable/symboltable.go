// Package symboltable tracks name-to-slot bindings for the compiler,
// extracted out of Nilan's ast_compiler.go Local bookkeeping into its own
// package (C4 in the design).
package symboltable

import "fmt"

// ParamBase is the first local/parameter slot index; slots below it are
// globals (spec §3: 0..255 global, 256+ local/parameter).
const ParamBase = 256

// GlobalSlots is the size of the VM's single flat variable array.
const GlobalSlots = 512

// ThisSlot is the dedicated slot a method call binds its receiver into
// (spec §4.6's `call-method` semantics), carved out of the top of the
// local/parameter range rather than added as a 513th slot.
const ThisSlot = GlobalSlots - 1

// Symbol is one bound name: its storage slot, whether it names a function,
// and whether it may be reassigned.
type Symbol struct {
	Name       string
	Slot       int
	IsFunction bool
	IsMutable  bool
}

// Table maps names to Symbols for one compilation scope (the module-level
// table, or a fresh table per function body).
type Table struct {
	symbols map[string]Symbol
	order   []string
	nextSlot int
	local    bool
}

// NewGlobal creates a table allocating global slots starting at 0.
func NewGlobal() *Table {
	return &Table{symbols: make(map[string]Symbol), nextSlot: 0}
}

// NewLocal creates a table allocating parameter/local slots starting at
// ParamBase, for the duration of one function body's compilation.
func NewLocal() *Table {
	return &Table{symbols: make(map[string]Symbol), nextSlot: ParamBase, local: true}
}

// GetOrAdd returns the existing slot for name, or allocates the next free
// slot and registers it as a (non-mutable-by-default) function or plain
// binding.
func (t *Table) GetOrAdd(name string, isFunction bool) Symbol {
	if sym, ok := t.symbols[name]; ok {
		return sym
	}
	sym := Symbol{Name: name, Slot: t.nextSlot, IsFunction: isFunction, IsMutable: !isFunction}
	t.nextSlot++
	t.symbols[name] = sym
	t.order = append(t.order, name)
	return sym
}

// DeclareVariable binds name as a variable with the given mutability. It
// fails if name already names a variable (redeclaration) or a function
// (collision), per spec §4.3.
func (t *Table) DeclareVariable(name string, isMutable bool) (Symbol, error) {
	if existing, ok := t.symbols[name]; ok {
		if existing.IsFunction {
			return Symbol{}, fmt.Errorf("cannot redeclare function %q as a variable", name)
		}
		return Symbol{}, fmt.Errorf("variable %q already declared", name)
	}
	sym := Symbol{Name: name, Slot: t.nextSlot, IsMutable: isMutable}
	t.nextSlot++
	t.symbols[name] = sym
	t.order = append(t.order, name)
	return sym, nil
}

// DeclareParam binds a function parameter to slot ParamBase+index,
// overriding any outer binding of the same name for the duration of the
// function body's compilation.
func (t *Table) DeclareParam(name string, index int) Symbol {
	sym := Symbol{Name: name, Slot: ParamBase + index, IsMutable: true}
	t.symbols[name] = sym
	t.order = append(t.order, name)
	return sym
}

// Resolve looks up name without allocating, reporting whether it is bound.
func (t *Table) Resolve(name string) (Symbol, bool) {
	sym, ok := t.symbols[name]
	return sym, ok
}

// IsMutable reports whether name is a mutable variable. Functions and
// unknown names report false.
func (t *Table) IsMutable(name string) bool {
	sym, ok := t.symbols[name]
	if !ok || sym.IsFunction {
		return false
	}
	return sym.IsMutable
}
