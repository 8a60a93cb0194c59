package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/baranium/pkg/bytecode"
)

// PredictType returns the type a literal expression will have, judging
// only by its shape. ok is false for anything that is not a literal; the
// language does no inference beyond this.
func PredictType(e Expr) (t bytecode.VarType, ok bool) {
	switch n := e.(type) {
	case *NumberLit:
		if strings.Contains(n.Tok.Text, ".") {
			return bytecode.TypeFloat, true
		}
		return bytecode.TypeInt, true
	case *UnaryExpr:
		if n.Op.Is(TokenMinus) || n.Op.Is(TokenPlus) {
			if num, isNum := n.Operand.(*NumberLit); isNum {
				return PredictType(num)
			}
		}
	case *StringLit:
		return bytecode.TypeString, true
	case *KeywordLit:
		switch n.Tok.Type {
		case TokenTrue, TokenFalse:
			return bytecode.TypeBool, true
		case TokenNull, TokenAttached:
			return bytecode.TypeObject, true
		}
	}
	return bytecode.TypeInvalid, false
}

// isLiteral reports whether e is a literal whose bytes are known at compile
// time. null and attached are resolved by the VM and do not count.
func isLiteral(e Expr) bool {
	if k, ok := e.(*KeywordLit); ok {
		return k.Tok.Is(TokenTrue) || k.Tok.Is(TokenFalse)
	}
	_, ok := PredictType(e)
	return ok
}

// literalValue encodes a literal for storage in a variable of type t. It
// fails with a type-mismatch message when the literal's shape cannot be
// stored there.
func literalValue(e Expr, t bytecode.VarType) (bytecode.Value, error) {
	shape, ok := PredictType(e)
	if !ok {
		return bytecode.Value{}, fmt.Errorf("expression is not a literal")
	}

	switch shape {
	case bytecode.TypeString:
		if t != bytecode.TypeString {
			return bytecode.Value{}, mismatch(shape, t)
		}
		return bytecode.StringValue(e.(*StringLit).Value), nil

	case bytecode.TypeBool:
		if t == bytecode.TypeString || t == bytecode.TypeObject {
			return bytecode.Value{}, mismatch(shape, t)
		}
		return bytecode.BoolValue(e.(*KeywordLit).Tok.Is(TokenTrue)).Convert(t), nil

	case bytecode.TypeFloat:
		f, err := numberText(e, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		if err != nil {
			return bytecode.Value{}, err
		}
		switch t {
		case bytecode.TypeFloat:
			if math.Abs(f) > math.MaxFloat32 {
				return bytecode.Value{}, fmt.Errorf("constant %v overflows float", f)
			}
			return bytecode.FloatValue(f), nil
		case bytecode.TypeBool:
			return bytecode.BoolValue(f != 0), nil
		}
		return bytecode.Value{}, mismatch(shape, t)

	case bytecode.TypeInt:
		n, err := numberText(e, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return bytecode.Value{}, err
		}
		switch t {
		case bytecode.TypeInt:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return bytecode.Value{}, fmt.Errorf("constant %d overflows int", n)
			}
			return bytecode.IntValue(n), nil
		case bytecode.TypeUint:
			if n < 0 {
				return bytecode.Value{}, fmt.Errorf("constant %d is negative, cannot be uint", n)
			}
			if n > math.MaxUint32 {
				return bytecode.Value{}, fmt.Errorf("constant %d overflows uint", n)
			}
			return bytecode.UintValue(uint64(n)), nil
		case bytecode.TypeFloat:
			return bytecode.FloatValue(float64(n)), nil
		case bytecode.TypeBool:
			return bytecode.BoolValue(n != 0), nil
		case bytecode.TypeObject:
			return bytecode.ObjectValue(n), nil
		}
		return bytecode.Value{}, mismatch(shape, t)
	}
	return bytecode.Value{}, mismatch(shape, t)
}

// numberText parses a possibly signed number literal.
func numberText[T int64 | float64](e Expr, parse func(string) (T, error)) (T, error) {
	var zero T
	neg := false
	if u, ok := e.(*UnaryExpr); ok {
		neg = u.Op.Is(TokenMinus)
		e = u.Operand
	}
	num := e.(*NumberLit)
	v, err := parse(num.Tok.Text)
	if err != nil {
		return zero, fmt.Errorf("malformed number %q", num.Tok.Text)
	}
	if neg {
		v = -v
	}
	return v, nil
}

func mismatch(from, to bytecode.VarType) error {
	return fmt.Errorf("type mismatch: cannot use %s literal as %s", from, to)
}
