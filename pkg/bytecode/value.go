package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Value is a typed byte representation shared by section payloads, SET
// operands and operand-stack triples.
type Value struct {
	Type VarType
	Data []byte
}

// Void is the value left by functions without a result.
var Void = Value{Type: TypeVoid}

// IntValue encodes a 32-bit signed integer.
func IntValue(v int64) Value {
	return Value{Type: TypeInt, Data: binary.LittleEndian.AppendUint32(nil, uint32(int32(v)))}
}

// UintValue encodes a 32-bit unsigned integer.
func UintValue(v uint64) Value {
	return Value{Type: TypeUint, Data: binary.LittleEndian.AppendUint32(nil, uint32(v))}
}

// FloatValue encodes a 32-bit float.
func FloatValue(v float64) Value {
	return Value{Type: TypeFloat, Data: binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v)))}
}

// BoolValue encodes a boolean as one byte.
func BoolValue(v bool) Value {
	if v {
		return Value{Type: TypeBool, Data: []byte{1}}
	}
	return Value{Type: TypeBool, Data: []byte{0}}
}

// ObjectValue encodes a host object handle.
func ObjectValue(handle int64) Value {
	return Value{Type: TypeObject, Data: binary.LittleEndian.AppendUint64(nil, uint64(handle))}
}

// StringValue encodes a string with its trailing NUL.
func StringValue(s string) Value {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return Value{Type: TypeString, Data: data}
}

// Zero returns the zero value of a type.
func Zero(t VarType) Value {
	switch t {
	case TypeObject:
		return ObjectValue(NullObjectID)
	case TypeString:
		return StringValue("")
	case TypeFloat:
		return FloatValue(0)
	case TypeBool:
		return BoolValue(false)
	case TypeInt:
		return IntValue(0)
	case TypeUint:
		return UintValue(0)
	}
	return Void
}

func (v Value) raw() uint64 {
	var buf [8]byte
	copy(buf[:], v.Data)
	return binary.LittleEndian.Uint64(buf[:])
}

// Int returns the value as a signed integer, converting as needed.
func (v Value) Int() int64 {
	switch v.Type {
	case TypeInt:
		return int64(int32(uint32(v.raw())))
	case TypeUint:
		return int64(uint32(v.raw()))
	case TypeFloat:
		return int64(v.Float())
	case TypeBool:
		return int64(v.raw() & 0xFF)
	case TypeObject:
		return int64(v.raw())
	case TypeString:
		n, _ := strconv.ParseInt(v.String(), 10, 64)
		return n
	}
	return 0
}

// Float returns the value as a float, converting as needed.
func (v Value) Float() float64 {
	switch v.Type {
	case TypeFloat:
		return float64(math.Float32frombits(uint32(v.raw())))
	case TypeString:
		f, _ := strconv.ParseFloat(v.String(), 64)
		return f
	case TypeVoid:
		return 0
	}
	return float64(v.Int())
}

// Bool reports whether the value is non-zero.
func (v Value) Bool() bool {
	switch v.Type {
	case TypeFloat:
		return v.Float() != 0
	case TypeString:
		return v.String() != ""
	}
	return v.Int() != 0
}

// String returns the text of a string value (without the trailing NUL) or
// a formatted rendering of any other type.
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		data := v.Data
		for i, c := range data {
			if c == 0 {
				data = data[:i]
				break
			}
		}
		return string(data)
	case TypeFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case TypeBool:
		return strconv.FormatBool(v.Bool())
	case TypeVoid:
		return "void"
	case TypeObject:
		return fmt.Sprintf("object(%d)", v.Int())
	}
	return strconv.FormatInt(v.Int(), 10)
}

// Convert re-encodes the value as another type.
func (v Value) Convert(t VarType) Value {
	if v.Type == t {
		return v
	}
	switch t {
	case TypeInt:
		return IntValue(v.Int())
	case TypeUint:
		return UintValue(uint64(v.Int()))
	case TypeFloat:
		return FloatValue(v.Float())
	case TypeBool:
		return BoolValue(v.Bool())
	case TypeObject:
		return ObjectValue(v.Int())
	case TypeString:
		return StringValue(v.String())
	}
	return Void
}
