package value

import "testing"

func TestCopyArrayDoesNotAlias(t *testing.T) {
	original := NewArray([]Value{NewNumber(1), NewNumber(2)})
	copied := original.Copy()

	copied.SetIndex(0, NewNumber(99))

	v, _ := original.Index(0)
	if v.AsNumber() != 1 {
		t.Errorf("mutating the copy leaked into the original: got %v, want 1", v.AsNumber())
	}
}

func TestCopyObjectDoesNotAlias(t *testing.T) {
	original := NewObject()
	original.SetProperty("k", NewNumber(1))
	copied := original.Copy()

	copied.SetProperty("k", NewNumber(99))

	v, _ := original.GetProperty("k")
	if v.AsNumber() != 1 {
		t.Errorf("mutating the copy's property leaked into the original: got %v, want 1", v.AsNumber())
	}
}

func TestCopyNestedArrayIsDeep(t *testing.T) {
	inner := NewArray([]Value{NewNumber(1)})
	outer := NewArray([]Value{inner})
	copied := outer.Copy()

	innerCopy, _ := copied.Index(0)
	innerCopy.SetIndex(0, NewNumber(42))

	originalInner, _ := outer.Index(0)
	v, _ := originalInner.Index(0)
	if v.AsNumber() != 1 {
		t.Errorf("nested copy aliased the inner array: got %v, want 1", v.AsNumber())
	}
}

func TestObjectPreservesInsertionOrderOnOverwrite(t *testing.T) {
	obj := NewObject()
	obj.SetProperty("a", NewNumber(1))
	obj.SetProperty("b", NewNumber(2))
	obj.SetProperty("a", NewNumber(99))

	keys := obj.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("expected [a b] preserved on overwrite, got %v", keys)
	}
	v, _ := obj.GetProperty("a")
	if v.AsNumber() != 99 {
		t.Errorf("expected overwritten value 99, got %v", v.AsNumber())
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NewNull(), false},
		{"false", NewBoolean(false), false},
		{"true", NewBoolean(true), true},
		{"zero", NewNumber(0), false},
		{"nonzero", NewNumber(1), true},
		{"empty string", NewString(""), false},
		{"nonempty string", NewString("x"), true},
		{"array", NewArray(nil), true},
		{"object", NewObject(), true},
	}
	for _, tt := range tests {
		if got := tt.v.IsTruthy(); got != tt.want {
			t.Errorf("%s: IsTruthy() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqualByIdentityForContainers(t *testing.T) {
	a := NewArray([]Value{NewNumber(1)})
	b := NewArray([]Value{NewNumber(1)})
	if Equal(a, b) {
		t.Error("two distinct arrays with equal contents should not be eq")
	}
	if !Equal(a, a) {
		t.Error("an array should be eq to itself")
	}
}

func TestEqualByValueForScalars(t *testing.T) {
	if !Equal(NewNumber(1), NewNumber(1)) {
		t.Error("equal numbers should compare eq")
	}
	if Equal(NewNumber(1), NewString("1")) {
		t.Error("differing kinds should never compare eq")
	}
	if !Equal(NewString("x"), NewString("x")) {
		t.Error("equal strings should compare eq")
	}
}

func TestToDisplayString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewNull(), "null"},
		{NewBoolean(true), "true"},
		{NewNumber(5), "5"},
		{NewString("hi"), "hi"},
		{NewArray([]Value{NewNumber(1), NewNumber(2)}), "[1, 2]"},
	}
	for _, tt := range tests {
		if got := tt.v.ToDisplayString(); got != tt.want {
			t.Errorf("ToDisplayString() = %q, want %q", got, tt.want)
		}
	}
}
