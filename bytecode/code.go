// Package bytecode defines Ember's instruction set and the chunk container
// the compiler emits into and the VM executes, following Nilan's
// Opcode/Instructions/MakeInstruction shape (compiler/code.go) generalized
// from its single OP_CONSTANT to the full opcode table spec §4.4 names.
package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/simondevenish/Ember/value"
)

// Opcode identifies one VM instruction.
type Opcode byte

// Instructions is a flat, variable-length encoded instruction stream.
type Instructions []byte

const (
	OpNop Opcode = iota
	OpPop
	OpDup
	OpSwap

	OpLoadConst // u8 index into the constant pool
	OpLoadVar   // u16 slot (0-255 global, 256+ local/parameter)
	OpStoreVar  // u16 slot

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpNot
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe

	OpJump         // u16 forward offset
	OpJumpIfFalse  // u16 forward offset
	OpLoop         // u16 backward offset

	OpCall       // u8 function-table index, u8 argc
	OpCallMethod // u8 argc
	OpReturn

	OpNewArray
	OpArrayPush
	OpMakeRange // pops end then start, pushes the materialized [start, end] array

	OpNewObject
	OpGetProperty
	OpSetProperty
	OpSetNestedProperty
	OpCopyProperties

	OpGetIndex
	OpSetIndex
	OpLen // pops a collection, pushes its element/key count as a Number

	OpPrint // u8 argc

	OpEof
)

// OpCodeDefinition names an opcode and the byte width of each of its
// inline operands, in encoding order.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OpNop:  {"OP_NOP", nil},
	OpPop:  {"OP_POP", nil},
	OpDup:  {"OP_DUP", nil},
	OpSwap: {"OP_SWAP", nil},

	OpLoadConst: {"OP_LOAD_CONST", []int{1}},
	OpLoadVar:   {"OP_LOAD_VAR", []int{2}},
	OpStoreVar:  {"OP_STORE_VAR", []int{2}},

	OpAdd: {"OP_ADD", nil},
	OpSub: {"OP_SUB", nil},
	OpMul: {"OP_MUL", nil},
	OpDiv: {"OP_DIV", nil},
	OpMod: {"OP_MOD", nil},
	OpNeg: {"OP_NEG", nil},

	OpNot: {"OP_NOT", nil},
	OpEq:  {"OP_EQ", nil},
	OpNeq: {"OP_NEQ", nil},
	OpLt:  {"OP_LT", nil},
	OpGt:  {"OP_GT", nil},
	OpLe:  {"OP_LE", nil},
	OpGe:  {"OP_GE", nil},

	OpJump:        {"OP_JUMP", []int{2}},
	OpJumpIfFalse: {"OP_JUMP_IF_FALSE", []int{2}},
	OpLoop:        {"OP_LOOP", []int{2}},

	OpCall:       {"OP_CALL", []int{1, 1}},
	OpCallMethod: {"OP_CALL_METHOD", []int{1}},
	OpReturn:     {"OP_RETURN", nil},

	OpNewArray:  {"OP_NEW_ARRAY", nil},
	OpArrayPush: {"OP_ARRAY_PUSH", nil},
	OpMakeRange: {"OP_MAKE_RANGE", nil},

	OpNewObject:         {"OP_NEW_OBJECT", nil},
	OpGetProperty:       {"OP_GET_PROPERTY", nil},
	OpSetProperty:       {"OP_SET_PROPERTY", nil},
	OpSetNestedProperty: {"OP_SET_NESTED_PROPERTY", nil},
	OpCopyProperties:    {"OP_COPY_PROPERTIES", nil},

	OpGetIndex: {"OP_GET_INDEX", nil},
	OpSetIndex: {"OP_SET_INDEX", nil},
	OpLen:      {"OP_LEN", nil},

	OpPrint: {"OP_PRINT", []int{1}},
	OpEof:   {"OP_EOF", nil},
}

// Get returns op's definition, or an error if op is unrecognized.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes op and its operands into a single instruction, operands
// big-endian per spec §3.
func Make(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return []byte{byte(op)}
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	instr := make([]byte, length)
	instr[0] = byte(op)

	offset := 1
	for i, width := range def.OperandWidths {
		operand := operands[i]
		switch width {
		case 1:
			instr[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(instr[offset:], uint16(operand))
		}
		offset += width
	}
	return instr
}

// ReadUint16 decodes a big-endian u16 operand at offset.
func ReadUint16(ins Instructions, offset int) uint16 {
	return binary.BigEndian.Uint16(ins[offset : offset+2])
}

// PatchUint16 overwrites the u16 operand at offset in place, used for jump
// patching (spec §4.4).
func PatchUint16(ins Instructions, offset int, v uint16) {
	binary.BigEndian.PutUint16(ins[offset:offset+2], v)
}

// FunctionMeta is one entry in a chunk's function table: the dedicated
// table Open Question resolution (SPEC_FULL.md) chose over encoding a
// function's entry point as a constant-pool Number.
type FunctionMeta struct {
	Name       string
	ParamCount int
	EntryIP    int
}

// Chunk is the compiled unit: code bytes plus the parallel constant pool
// (spec §3 "Bytecode chunk"), plus the function table user-defined
// functions are called through.
type Chunk struct {
	Code      Instructions
	Constants []value.Value
	Functions []FunctionMeta
}

// AddConstant appends v and returns its index.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Disassemble renders the chunk's instructions in a human-readable form,
// mirroring Nilan's hex-dump debugging aid but decoding operands by name.
func (c *Chunk) Disassemble() string {
	out := ""
	ip := 0
	for ip < len(c.Code) {
		op := Opcode(c.Code[ip])
		def, err := Get(op)
		if err != nil {
			out += fmt.Sprintf("%04d ERROR: %s\n", ip, err)
			ip++
			continue
		}
		out += fmt.Sprintf("%04d %s", ip, def.Name)
		offset := ip + 1
		for _, w := range def.OperandWidths {
			switch w {
			case 1:
				out += fmt.Sprintf(" %d", c.Code[offset])
			case 2:
				out += fmt.Sprintf(" %d", ReadUint16(c.Code, offset))
			}
			offset += w
		}
		out += "\n"
		ip = offset
	}
	return out
}
