package bytecode

import "testing"

func TestParseVarType(t *testing.T) {
	tests := []struct {
		name string
		want VarType
	}{
		{"int", TypeInt},
		{"UINT", TypeUint},
		{"Float", TypeFloat},
		{"string", TypeString},
		{"object", TypeObject},
		{"bool", TypeBool},
		{"void", TypeVoid},
		{"double", TypeInvalid},
	}

	for _, tt := range tests {
		if got := ParseVarType(tt.name); got != tt.want {
			t.Errorf("ParseVarType(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestTypeSizes(t *testing.T) {
	tests := []struct {
		t    VarType
		want int
	}{
		{TypeVoid, 0},
		{TypeObject, 8},
		{TypeString, -1},
		{TypeFloat, 4},
		{TypeBool, 1},
		{TypeInt, 4},
		{TypeUint, 4},
	}

	for _, tt := range tests {
		if got := tt.t.Size(); got != tt.want {
			t.Errorf("%s.Size() = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestNameID(t *testing.T) {
	if NameID("main") != NameID("main") {
		t.Error("NameID is not deterministic")
	}
	// anagrams must not collide
	if NameID("ab") == NameID("ba") {
		t.Error("NameID(ab) == NameID(ba)")
	}
	for _, name := range []string{"", "main", "f.x", "a_very_long_identifier_name"} {
		if id := NameID(name); id < 0 {
			t.Errorf("NameID(%q) = %d, want non-negative", name, id)
		}
	}
	if LocalName("f", "x") != "f.x" {
		t.Errorf("LocalName = %q", LocalName("f", "x"))
	}
}
