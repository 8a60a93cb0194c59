package bytecode

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// VarType is the type tag carried by variables, sections and stack triples.
type VarType uint8

const (
	TypeVoid VarType = iota
	TypeObject
	TypeString
	TypeFloat
	TypeBool
	TypeInt
	TypeUint

	TypeInvalid VarType = 0xFF
)

var typeNames = map[VarType]string{
	TypeVoid:   "void",
	TypeObject: "object",
	TypeString: "string",
	TypeFloat:  "float",
	TypeBool:   "bool",
	TypeInt:    "int",
	TypeUint:   "uint",
}

func (t VarType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("VarType(%d)", t)
}

// ParseVarType resolves a type keyword, ignoring case.
func ParseVarType(name string) VarType {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t
		}
	}
	return TypeInvalid
}

// Size returns the fixed byte size of the type, or -1 for strings whose
// size depends on their contents.
func (t VarType) Size() int {
	switch t {
	case TypeVoid:
		return 0
	case TypeObject:
		return 8
	case TypeFloat, TypeInt, TypeUint:
		return 4
	case TypeBool:
		return 1
	case TypeString:
		return -1
	}
	return 0
}

// IsNumeric reports whether arithmetic applies to values of the type.
func (t VarType) IsNumeric() bool {
	return t == TypeFloat || t == TypeInt || t == TypeUint || t == TypeBool
}

// Reserved object ids resolved by the VM rather than the variable store.
const (
	NullObjectID     int64 = -1 // the "null" object handle
	AttachedObjectID int64 = -2 // the currently attached object
)

// NameID derives the numeric id of a declaration from its name. Equal names
// always produce equal ids, so a call or reference can be encoded before
// its target has been compiled. Ids are non-negative; negative ids are
// reserved for VM sentinels.
func NameID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64() &^ (1 << 63))
}

// LocalName qualifies a local variable with its enclosing function.
func LocalName(function, local string) string {
	return function + "." + local
}
