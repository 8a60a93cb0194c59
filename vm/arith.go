package vm

import (
	"math"
	"strings"

	"github.com/chazu/baranium/pkg/bytecode"
)

// arithmetic applies a binary arithmetic or bitwise opcode. String + string
// concatenates; a float operand makes the result float; otherwise the
// result is int, or uint when both operands are uint. ok is false on
// division by zero.
func arithmetic(op bytecode.Opcode, a, b bytecode.Value) (bytecode.Value, bool) {
	if op == bytecode.OpAdd && (a.Type == bytecode.TypeString || b.Type == bytecode.TypeString) {
		return bytecode.StringValue(a.String() + b.String()), true
	}

	if a.Type == bytecode.TypeFloat || b.Type == bytecode.TypeFloat {
		x, y := a.Float(), b.Float()
		var r float64
		switch op {
		case bytecode.OpAdd:
			r = x + y
		case bytecode.OpSub:
			r = x - y
		case bytecode.OpMul:
			r = x * y
		case bytecode.OpDiv:
			if y == 0 {
				return bytecode.Value{}, false
			}
			r = x / y
		case bytecode.OpMod:
			if y == 0 {
				return bytecode.Value{}, false
			}
			r = math.Mod(x, y)
		default:
			n, ok := integer(op, int64(x), int64(y))
			if !ok {
				return bytecode.Value{}, false
			}
			r = float64(n)
		}
		return bytecode.FloatValue(r), true
	}

	n, ok := integer(op, a.Int(), b.Int())
	if !ok {
		return bytecode.Value{}, false
	}
	if a.Type == bytecode.TypeUint && b.Type == bytecode.TypeUint {
		return bytecode.UintValue(uint64(n)), true
	}
	return bytecode.IntValue(n), true
}

func integer(op bytecode.Opcode, x, y int64) (int64, bool) {
	switch op {
	case bytecode.OpAdd:
		return x + y, true
	case bytecode.OpSub:
		return x - y, true
	case bytecode.OpMul:
		return x * y, true
	case bytecode.OpDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case bytecode.OpMod:
		if y == 0 {
			return 0, false
		}
		return x % y, true
	case bytecode.OpAnd:
		return x & y, true
	case bytecode.OpOr:
		return x | y, true
	case bytecode.OpXor:
		return x ^ y, true
	case bytecode.OpShftL:
		return x << uint(y&63), true
	case bytecode.OpShftR:
		return x >> uint(y&63), true
	}
	return 0, true
}

// compare evaluates a CMP method. Strings compare by text against
// strings and by truthiness against anything else.
func compare(method bytecode.CompareMethod, a, b bytecode.Value) bool {
	var c int
	switch {
	case a.Type == bytecode.TypeString && b.Type == bytecode.TypeString:
		c = strings.Compare(a.String(), b.String())
	case a.Type == bytecode.TypeFloat || b.Type == bytecode.TypeFloat:
		c = order(truthy(a).Float(), truthy(b).Float())
	default:
		c = order(truthy(a).Int(), truthy(b).Int())
	}

	switch method {
	case bytecode.CompareEqual:
		return c == 0
	case bytecode.CompareNotEqual:
		return c != 0
	case bytecode.CompareLess:
		return c < 0
	case bytecode.CompareLessEqual:
		return c <= 0
	case bytecode.CompareGreater:
		return c > 0
	case bytecode.CompareGreaterEqual:
		return c >= 0
	}
	return false
}

func truthy(v bytecode.Value) bytecode.Value {
	if v.Type == bytecode.TypeString {
		return bytecode.BoolValue(v.Bool())
	}
	return v
}

func order[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
