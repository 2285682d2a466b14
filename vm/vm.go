// Package vm implements C7: a stack machine that fetches, decodes, and
// executes a bytecode.Chunk, generalized from Nilan's vm/vm.go
// fetch-decode-execute loop (single OP_CONSTANT case) to the full opcode
// table.
package vm

import (
	"fmt"

	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/symboltable"
	"github.com/simondevenish/Ember/value"
)

const (
	paramBase   = symboltable.ParamBase
	globalSlots = symboltable.GlobalSlots
	thisSlot    = symboltable.ThisSlot
)

// VM executes one compiled chunk.
type VM struct {
	chunk   *bytecode.Chunk
	stack   Stack
	globals [globalSlots]value.Value
	frames  []frame
	ip      int
	debug   bool
}

// New creates a VM bound to chunk.
func New(chunk *bytecode.Chunk) *VM {
	return &VM{chunk: chunk}
}

// SetDebug toggles instruction tracing to standard output.
func (vm *VM) SetDebug(on bool) { vm.debug = on }

// Peek returns the top of the value stack without popping it, for
// inspecting the stack once a run has finished.
func (vm *VM) Peek() (value.Value, bool) { return vm.stack.Peek() }

// GlobalAt returns the value bound in global slot i, for inspecting a
// run's bindings once it has finished.
func (vm *VM) GlobalAt(i int) value.Value { return vm.globals[i] }

// Run executes the chunk from the current ip (0 for a new VM) until op-eof
// or a runtime error.
func (vm *VM) Run() error {
	code := vm.chunk.Code
	for vm.ip < len(code) {
		op := bytecode.Opcode(code[vm.ip])

		if vm.debug {
			def, _ := bytecode.Get(op)
			name := "?"
			if def != nil {
				name = def.Name
			}
			fmt.Printf("%04d %s\n", vm.ip, name)
		}

		switch op {
		case bytecode.OpEof:
			return nil

		case bytecode.OpNop:
			vm.ip++

		case bytecode.OpPop:
			if _, ok := vm.pop(); !ok {
				return vm.err("pop from empty stack")
			}
			vm.ip++

		case bytecode.OpDup:
			v, ok := vm.stack.Peek()
			if !ok {
				return vm.err("dup on empty stack")
			}
			vm.stack.Push(v)
			vm.ip++

		case bytecode.OpSwap:
			if err := vm.swap(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpLoadConst:
			idx := int(code[vm.ip+1])
			if idx < 0 || idx >= len(vm.chunk.Constants) {
				return vm.err(fmt.Sprintf("constant index %d out of range", idx))
			}
			vm.stack.Push(vm.chunk.Constants[idx])
			vm.ip += 2

		case bytecode.OpLoadVar:
			slot := int(bytecode.ReadUint16(code, vm.ip+1))
			if slot < 0 || slot >= globalSlots {
				return vm.err(fmt.Sprintf("variable slot %d out of range", slot))
			}
			vm.stack.Push(vm.globals[slot])
			vm.ip += 3

		case bytecode.OpStoreVar:
			slot := int(bytecode.ReadUint16(code, vm.ip+1))
			if slot < 0 || slot >= globalSlots {
				return vm.err(fmt.Sprintf("variable slot %d out of range", slot))
			}
			v, ok := vm.stack.Peek()
			if !ok {
				return vm.err("store-var on empty stack")
			}
			vm.globals[slot] = v
			vm.ip += 3

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			if err := vm.binaryArith(op); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpNeg:
			if err := vm.unaryNeg(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpNot:
			v, ok := vm.pop()
			if !ok {
				return vm.err("not on empty stack")
			}
			vm.stack.Push(value.NewBoolean(!v.IsTruthy()))
			vm.ip++

		case bytecode.OpEq, bytecode.OpNeq:
			if err := vm.compareEq(op); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe:
			if err := vm.compareOrder(op); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpJump:
			offset := int(bytecode.ReadUint16(code, vm.ip+1))
			vm.ip = vm.ip + 3 + offset

		case bytecode.OpJumpIfFalse:
			v, ok := vm.pop()
			if !ok {
				return vm.err("jump-if-false on empty stack")
			}
			offset := int(bytecode.ReadUint16(code, vm.ip+1))
			if !v.IsTruthy() {
				vm.ip = vm.ip + 3 + offset
			} else {
				vm.ip += 3
			}

		case bytecode.OpLoop:
			offset := int(bytecode.ReadUint16(code, vm.ip+1))
			vm.ip = vm.ip + 3 - offset

		case bytecode.OpCall:
			if err := vm.call(int(code[vm.ip+1]), int(code[vm.ip+2]), vm.ip+3); err != nil {
				return err
			}

		case bytecode.OpCallMethod:
			if err := vm.callMethod(int(code[vm.ip+1]), vm.ip+2); err != nil {
				return err
			}

		case bytecode.OpReturn:
			if err := vm.ret(); err != nil {
				return err
			}

		case bytecode.OpNewArray:
			vm.stack.Push(value.NewArray(nil))
			vm.ip++

		case bytecode.OpMakeRange:
			if err := vm.makeRange(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpArrayPush:
			elem, ok1 := vm.pop()
			arr, ok2 := vm.pop()
			if !ok1 || !ok2 {
				return vm.err("array-push on empty stack")
			}
			if arr.Kind != value.Array {
				return vm.err("array-push target is not an array")
			}
			arr.Push(elem)
			vm.stack.Push(arr)
			vm.ip++

		case bytecode.OpNewObject:
			vm.stack.Push(value.NewObject())
			vm.ip++

		case bytecode.OpGetProperty:
			if err := vm.getProperty(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpSetProperty:
			if err := vm.setProperty(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpSetNestedProperty:
			if err := vm.setNestedProperty(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpCopyProperties:
			if err := vm.copyProperties(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpGetIndex:
			if err := vm.getIndex(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpSetIndex:
			if err := vm.setIndex(); err != nil {
				return err
			}
			vm.ip++

		case bytecode.OpLen:
			v, ok := vm.pop()
			if !ok {
				return vm.err("len on empty stack")
			}
			if v.Kind != value.Array && v.Kind != value.Object {
				return vm.err("len target is not a collection")
			}
			vm.stack.Push(value.NewNumber(float64(v.Len())))
			vm.ip++

		case bytecode.OpPrint:
			argc := int(code[vm.ip+1])
			args := make([]value.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				v, ok := vm.pop()
				if !ok {
					return vm.err("print on empty stack")
				}
				args[i] = v
			}
			parts := ""
			for i, a := range args {
				if i > 0 {
					parts += " "
				}
				parts += a.ToDisplayString()
			}
			fmt.Println(parts)
			vm.ip += 2

		default:
			return vm.err(fmt.Sprintf("unknown opcode %d at ip %d", op, vm.ip))
		}
	}
	return nil
}

func (vm *VM) err(msg string) error {
	opName := ""
	if vm.ip < len(vm.chunk.Code) {
		if def, defErr := bytecode.Get(bytecode.Opcode(vm.chunk.Code[vm.ip])); defErr == nil {
			opName = def.Name
		}
	}
	return RuntimeError{Message: msg, IP: vm.ip, Op: opName}
}

func (vm *VM) pop() (value.Value, bool) {
	return vm.stack.Pop()
}

func (vm *VM) swap() error {
	b, ok1 := vm.pop()
	a, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("swap on fewer than two values")
	}
	vm.stack.Push(b)
	vm.stack.Push(a)
	return nil
}

// binaryArith implements add/sub/mul/div/mod. add on two strings (or a
// string and anything else) concatenates via ToDisplayString, per spec
// §4.6's coercion rule; every other combination requires both operands be
// Numbers.
func (vm *VM) binaryArith(op bytecode.Opcode) error {
	b, ok1 := vm.pop()
	a, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("arithmetic on fewer than two values")
	}

	if op == bytecode.OpAdd && (a.Kind == value.String || b.Kind == value.String) {
		vm.stack.Push(value.NewString(a.ToDisplayString() + b.ToDisplayString()))
		return nil
	}

	if a.Kind != value.Number || b.Kind != value.Number {
		return vm.err(fmt.Sprintf("arithmetic requires numbers, got %s and %s", a.Kind, b.Kind))
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.OpAdd:
		vm.stack.Push(value.NewNumber(x + y))
	case bytecode.OpSub:
		vm.stack.Push(value.NewNumber(x - y))
	case bytecode.OpMul:
		vm.stack.Push(value.NewNumber(x * y))
	case bytecode.OpDiv:
		if y == 0 {
			return vm.err("division by zero")
		}
		vm.stack.Push(value.NewNumber(x / y))
	case bytecode.OpMod:
		if y == 0 {
			return vm.err("modulo by zero")
		}
		vm.stack.Push(value.NewNumber(float64(int64(x) % int64(y))))
	}
	return nil
}

func (vm *VM) unaryNeg() error {
	v, ok := vm.pop()
	if !ok {
		return vm.err("negate on empty stack")
	}
	if v.Kind != value.Number {
		return vm.err(fmt.Sprintf("cannot negate a %s", v.Kind))
	}
	vm.stack.Push(value.NewNumber(-v.AsNumber()))
	return nil
}

// makeRange pops end then start (the order VisitRange compiles them in)
// and pushes an array of [start, end], inclusive, matching the bound used
// by compileRangeIterator's loop-continuation test.
func (vm *VM) makeRange() error {
	end, ok1 := vm.pop()
	start, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("range on fewer than two values")
	}
	if start.Kind != value.Number || end.Kind != value.Number {
		return vm.err("range bounds must be numbers")
	}
	var elems []value.Value
	for i := start.AsNumber(); i <= end.AsNumber(); i++ {
		elems = append(elems, value.NewNumber(i))
	}
	vm.stack.Push(value.NewArray(elems))
	return nil
}

func (vm *VM) compareEq(op bytecode.Opcode) error {
	b, ok1 := vm.pop()
	a, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("comparison on fewer than two values")
	}
	eq := value.Equal(a, b)
	if op == bytecode.OpNeq {
		eq = !eq
	}
	vm.stack.Push(value.NewBoolean(eq))
	return nil
}

func (vm *VM) compareOrder(op bytecode.Opcode) error {
	b, ok1 := vm.pop()
	a, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("comparison on fewer than two values")
	}
	if a.Kind != value.Number || b.Kind != value.Number {
		return vm.err(fmt.Sprintf("ordering comparison requires numbers, got %s and %s", a.Kind, b.Kind))
	}
	x, y := a.AsNumber(), b.AsNumber()
	var result bool
	switch op {
	case bytecode.OpLt:
		result = x < y
	case bytecode.OpGt:
		result = x > y
	case bytecode.OpLe:
		result = x <= y
	case bytecode.OpGe:
		result = x >= y
	}
	vm.stack.Push(value.NewBoolean(result))
	return nil
}

// call invokes the user function at chunk.Functions[funcIdx] with argc
// arguments already on the stack (pushed in reverse order by the
// compiler, so the first parameter is on top). Parameters bind to the
// flat slots 256..256+argc-1; the previous contents of that range are
// saved and restored on return, so a recursive call doesn't corrupt its
// caller's locals.
func (vm *VM) call(funcIdx, argc, returnIP int) error {
	args := make([]value.Value, argc)
	for i := 0; i < argc; i++ {
		v, ok := vm.pop()
		if !ok {
			return vm.err("call with too few arguments on the stack")
		}
		args[i] = v
	}
	return vm.enterFunction(funcIdx, args, returnIP, value.NewNull())
}

func (vm *VM) popArgs(argc int) ([]value.Value, error) {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, ok := vm.pop()
		if !ok {
			return nil, vm.err("call with too few arguments on the stack")
		}
		args[i] = v
	}
	return args, nil
}

// enterFunction binds args to the parameter slots and receiver to
// thisSlot, saving the param range (which spans thisSlot) so a return
// restores both the caller's locals and its own receiver binding.
func (vm *VM) enterFunction(funcIdx int, args []value.Value, returnIP int, receiver value.Value) error {
	if funcIdx < 0 || funcIdx >= len(vm.chunk.Functions) {
		return vm.err(fmt.Sprintf("function index %d out of range", funcIdx))
	}
	meta := vm.chunk.Functions[funcIdx]
	if len(args) != meta.ParamCount {
		return vm.err(fmt.Sprintf("function %q expects %d argument(s), got %d", meta.Name, meta.ParamCount, len(args)))
	}

	var f frame
	copy(f.savedParams[:], vm.globals[paramBase:])
	f.returnIP = returnIP
	for i, a := range args {
		vm.globals[paramBase+i] = a
	}
	vm.globals[thisSlot] = receiver
	vm.frames = append(vm.frames, f)
	vm.ip = meta.EntryIP
	return nil
}

// callMethod implements `call-method`: argc arguments are popped, then
// the method callable, then the receiver (spec §4.6). The receiver binds
// into thisSlot for a user-defined method, or becomes the first
// positional argument for a built-in — one conceptual rule, applied
// according to what the callee can actually accept.
func (vm *VM) callMethod(argc, returnIP int) error {
	args, err := vm.popArgs(argc)
	if err != nil {
		return err
	}
	callee, ok := vm.pop()
	if !ok {
		return vm.err("call-method on empty stack")
	}
	receiver, ok := vm.pop()
	if !ok {
		return vm.err("call-method on empty stack")
	}
	if callee.Kind != value.Function {
		return vm.err(fmt.Sprintf("cannot call a %s", callee.Kind))
	}
	fn := callee.AsFunc()
	if fn.Builtin != nil {
		result, err := fn.Builtin(append([]value.Value{receiver}, args...))
		if err != nil {
			return vm.err(err.Error())
		}
		vm.stack.Push(result)
		vm.ip = returnIP
		return nil
	}
	return vm.enterFunction(fn.TableIndex, args, returnIP, receiver)
}

// ret pops the return value, restores the caller's parameter slots, and
// resumes at the caller's saved ip.
func (vm *VM) ret() error {
	result, ok := vm.pop()
	if !ok {
		return vm.err("return on empty stack")
	}
	if len(vm.frames) == 0 {
		return vm.err("return with no active call frame")
	}
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	copy(vm.globals[paramBase:], f.savedParams[:])
	vm.stack.Push(result)
	vm.ip = f.returnIP
	return nil
}

func (vm *VM) getProperty() error {
	key, ok1 := vm.pop()
	obj, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("get-property on fewer than two values")
	}
	if obj.Kind != value.Object {
		return vm.err(fmt.Sprintf("cannot read a property of a %s", obj.Kind))
	}
	val, found := obj.GetProperty(key.AsString())
	if !found {
		val = value.NewNull()
	}
	vm.stack.Push(val)
	return nil
}

// setProperty pops value, key, object (in that push order: object first,
// key, then value, so value is on top) and pushes the updated object.
func (vm *VM) setProperty() error {
	val, ok1 := vm.pop()
	key, ok2 := vm.pop()
	obj, ok3 := vm.pop()
	if !ok1 || !ok2 || !ok3 {
		return vm.err("set-property on fewer than three values")
	}
	if obj.Kind != value.Object {
		return vm.err(fmt.Sprintf("cannot set a property on a %s", obj.Kind))
	}
	obj.SetProperty(key.AsString(), val)
	vm.stack.Push(obj)
	return nil
}

// setNestedProperty walks a dotted path ("b.c") off the root object on
// the stack, creating intermediate objects as needed, and sets the final
// segment to value.
func (vm *VM) setNestedProperty() error {
	val, ok1 := vm.pop()
	path, ok2 := vm.pop()
	root, ok3 := vm.pop()
	if !ok1 || !ok2 || !ok3 {
		return vm.err("set-nested-property on fewer than three values")
	}
	if root.Kind != value.Object {
		return vm.err(fmt.Sprintf("cannot set a property on a %s", root.Kind))
	}
	segments := splitDotted(path.AsString())
	cur := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur.SetProperty(seg, val)
			break
		}
		next, found := cur.GetProperty(seg)
		if !found || next.Kind != value.Object {
			next = value.NewObject()
			cur.SetProperty(seg, next)
		}
		cur = next
	}
	vm.stack.Push(root)
	return nil
}

func splitDotted(s string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			segments = append(segments, s[start:i])
			start = i + 1
		}
	}
	segments = append(segments, s[start:])
	return segments
}

// copyProperties pops a mixin source and a target object, merges the
// source's properties into the target (a source key overwrites the same
// key already on the target; the compiler emits mixins before the
// literal's own keys, so own keys still win), and pushes the merged object.
func (vm *VM) copyProperties() error {
	source, ok1 := vm.pop()
	target, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("copy-properties on fewer than two values")
	}
	if source.Kind != value.Object || target.Kind != value.Object {
		return vm.err("copy-properties requires two objects")
	}
	for _, k := range source.Keys() {
		v, _ := source.GetProperty(k)
		target.SetProperty(k, v)
	}
	vm.stack.Push(target)
	return nil
}

func (vm *VM) getIndex() error {
	idx, ok1 := vm.pop()
	coll, ok2 := vm.pop()
	if !ok1 || !ok2 {
		return vm.err("get-index on fewer than two values")
	}
	switch coll.Kind {
	case value.Array:
		if idx.Kind != value.Number {
			return vm.err("array index must be a number")
		}
		v, found := coll.Index(int(idx.AsNumber()))
		if !found {
			return vm.err(fmt.Sprintf("array index %d out of range", int(idx.AsNumber())))
		}
		vm.stack.Push(v)
	case value.Object:
		v, found := coll.GetProperty(idx.AsString())
		if !found {
			v = value.NewNull()
		}
		vm.stack.Push(v)
	default:
		return vm.err(fmt.Sprintf("cannot index a %s", coll.Kind))
	}
	return nil
}

func (vm *VM) setIndex() error {
	val, ok1 := vm.pop()
	idx, ok2 := vm.pop()
	coll, ok3 := vm.pop()
	if !ok1 || !ok2 || !ok3 {
		return vm.err("set-index on fewer than three values")
	}
	switch coll.Kind {
	case value.Array:
		if idx.Kind != value.Number {
			return vm.err("array index must be a number")
		}
		if !coll.SetIndex(int(idx.AsNumber()), val) {
			return vm.err(fmt.Sprintf("array index %d out of range", int(idx.AsNumber())))
		}
	case value.Object:
		coll.SetProperty(idx.AsString(), val)
	default:
		return vm.err(fmt.Sprintf("cannot index-assign a %s", coll.Kind))
	}
	vm.stack.Push(coll)
	return nil
}
