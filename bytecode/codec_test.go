package bytecode

import (
	"testing"

	"github.com/simondevenish/Ember/value"
)

func TestEncodeDecodeRoundTripsScalarsAndArray(t *testing.T) {
	c := &Chunk{
		Code: Make(OpAdd),
		Constants: []value.Value{
			value.NewNumber(3.5),
			value.NewBoolean(true),
			value.NewNull(),
			value.NewString("hi"),
			value.NewArray([]value.Value{value.NewNumber(1), value.NewNumber(2)}),
		},
		Functions: []FunctionMeta{
			{Name: "f", ParamCount: 2, EntryIP: 10},
		},
	}

	data := Encode(c)
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %s", err)
	}

	if len(decoded.Code) != len(c.Code) {
		t.Fatalf("code length mismatch: got %d, want %d", len(decoded.Code), len(c.Code))
	}
	for i, b := range c.Code {
		if decoded.Code[i] != b {
			t.Errorf("code byte %d: got %d, want %d", i, decoded.Code[i], b)
		}
	}

	if len(decoded.Constants) != len(c.Constants) {
		t.Fatalf("constants length mismatch: got %d, want %d", len(decoded.Constants), len(c.Constants))
	}
	if decoded.Constants[0].AsNumber() != 3.5 {
		t.Errorf("constant 0: got %v, want 3.5", decoded.Constants[0].AsNumber())
	}
	if !decoded.Constants[1].AsBoolean() {
		t.Errorf("constant 1: expected true")
	}
	if decoded.Constants[2].Kind != value.Null {
		t.Errorf("constant 2: expected null")
	}
	if decoded.Constants[3].AsString() != "hi" {
		t.Errorf("constant 3: got %q, want %q", decoded.Constants[3].AsString(), "hi")
	}
	arr := decoded.Constants[4]
	if arr.Kind != value.Array || arr.Len() != 2 {
		t.Fatalf("constant 4: expected a 2-element array, got %+v", arr)
	}
	first, _ := arr.Index(0)
	second, _ := arr.Index(1)
	if first.AsNumber() != 1 || second.AsNumber() != 2 {
		t.Errorf("constant 4 elements: got [%v %v], want [1 2]", first.AsNumber(), second.AsNumber())
	}

	if len(decoded.Functions) != 1 {
		t.Fatalf("functions length mismatch: got %d, want 1", len(decoded.Functions))
	}
	if decoded.Functions[0] != c.Functions[0] {
		t.Errorf("function table entry: got %+v, want %+v", decoded.Functions[0], c.Functions[0])
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected an error decoding truncated data, got nil")
	}
}
