package bytecode

import (
	"testing"

	"github.com/simondevenish/Ember/value"
)

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpLoadConst, []int{1}, []byte{byte(OpLoadConst), 1}},
		{OpLoadVar, []int{65000}, []byte{byte(OpLoadVar), 253, 232}},
		{OpStoreVar, []int{65000}, []byte{byte(OpStoreVar), 253, 232}},
		{OpAdd, nil, []byte{byte(OpAdd)}},
		{OpJump, []int{65000}, []byte{byte(OpJump), 253, 232}},
		{OpCall, []int{3, 2}, []byte{byte(OpCall), 3, 2}},
		{OpPop, nil, []byte{byte(OpPop)}},
	}

	for _, tt := range tests {
		got := Make(tt.op, tt.operands...)
		if len(got) != len(tt.expected) {
			t.Fatalf("Make(%v, %v): got length %d, want %d", tt.op, tt.operands, len(got), len(tt.expected))
		}
		for i, b := range tt.expected {
			if got[i] != b {
				t.Errorf("Make(%v, %v)[%d]: got %d, want %d", tt.op, tt.operands, i, got[i], b)
			}
		}
	}
}

func TestReadAndPatchUint16(t *testing.T) {
	ins := Make(OpJump, 0)
	PatchUint16(ins, 1, 42)
	if got := ReadUint16(ins, 1); got != 42 {
		t.Errorf("ReadUint16 after patch: got %d, want 42", got)
	}
}

func TestDisassemble(t *testing.T) {
	c := &Chunk{}
	c.Code = append(c.Code, Make(OpLoadConst, 0)...)
	c.Code = append(c.Code, Make(OpAdd)...)
	c.Code = append(c.Code, Make(OpPop)...)

	want := "0000 OP_LOAD_CONST 0\n0002 OP_ADD\n0003 OP_POP\n"
	if got := c.Disassemble(); got != want {
		t.Errorf("Disassemble() = %q, want %q", got, want)
	}
}

func TestAddConstant(t *testing.T) {
	c := &Chunk{}
	i0 := c.AddConstant(value.NewNumber(1))
	i1 := c.AddConstant(value.NewNumber(2))
	if i0 != 0 || i1 != 1 {
		t.Errorf("AddConstant indices: got %d, %d, want 0, 1", i0, i1)
	}
}
