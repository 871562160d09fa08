package future

import (
	"errors"
	"fmt"
	"math"
)

// Op names a binary arithmetic operation.
type Op string

// Supported operators.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpPow Op = "**"
	OpMod Op = "%"
)

var (
	// ErrDivisionByZero is returned for integer division or modulo by zero.
	ErrDivisionByZero = errors.New("integer division by zero")

	// ErrIntegerOverflow is returned when an integer result or operand does
	// not fit in an int64.
	ErrIntegerOverflow = errors.New("integer overflow")

	// ErrOperandType is returned when an operand is not a number, or not a
	// string for concatenation.
	ErrOperandType = errors.New("unsupported operand type")
)

type numKind int

const (
	kindNone numKind = iota
	kindInt
	kindInt64
	kindFloat
)

func kindOf(v any) numKind {
	switch v.(type) {
	case int:
		return kindInt
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInt64
	case float32, float64:
		return kindFloat
	default:
		return kindNone
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return fromUint(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return fromUint(n)
	}
	return 0, fmt.Errorf("%w: %T", ErrOperandType, v)
}

func fromUint(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", ErrIntegerOverflow, n)
	}
	return int64(n), nil
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	}
	i, _ := toInt64(v)
	return float64(i)
}

// Apply evaluates a op b. Two ints yield an int, other integer mixes an
// int64 and any float operand a float64. Integer division and modulo
// truncate toward zero. A negative integer exponent yields a float64.
// Integer results that do not fit in an int64 fail with ErrIntegerOverflow
// rather than wrapping. Add also concatenates two strings.
func Apply(op Op, a, b any) (any, error) {
	if op == OpAdd {
		if sa, ok := a.(string); ok {
			if sb, ok := b.(string); ok {
				return sa + sb, nil
			}
		}
	}

	ka, kb := kindOf(a), kindOf(b)
	if ka == kindNone || kb == kindNone {
		return nil, fmt.Errorf("%w: %T %s %T", ErrOperandType, a, op, b)
	}

	if ka == kindFloat || kb == kindFloat {
		return applyFloat(op, toFloat64(a), toFloat64(b))
	}

	x, err := toInt64(a)
	if err != nil {
		return nil, err
	}
	y, err := toInt64(b)
	if err != nil {
		return nil, err
	}
	r, err := applyInt(op, x, y)
	if err != nil {
		return nil, err
	}
	if i, ok := r.(int64); ok && ka == kindInt && kb == kindInt {
		if int64(int(i)) != i {
			return nil, fmt.Errorf("%w: %d %s %d", ErrIntegerOverflow, x, op, y)
		}
		return int(i), nil
	}
	return r, nil
}

func applyFloat(op Op, a, b float64) (any, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpPow:
		return math.Pow(a, b), nil
	case OpMod:
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func applyInt(op Op, a, b int64) (any, error) {
	overflow := func() error {
		return fmt.Errorf("%w: %d %s %d", ErrIntegerOverflow, a, op, b)
	}
	switch op {
	case OpAdd:
		c := a + b
		if (b > 0 && c < a) || (b < 0 && c > a) {
			return nil, overflow()
		}
		return c, nil
	case OpSub:
		c := a - b
		if (b > 0 && c > a) || (b < 0 && c < a) {
			return nil, overflow()
		}
		return c, nil
	case OpMul:
		c, ok := mul64(a, b)
		if !ok {
			return nil, overflow()
		}
		return c, nil
	case OpDiv:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if a == math.MinInt64 && b == -1 {
			return nil, overflow()
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return a % b, nil
	case OpPow:
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		c, ok := ipow(a, b)
		if !ok {
			return nil, overflow()
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

// mul64 multiplies a and b, reporting false if the product overflows.
func mul64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

func ipow(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		var ok bool
		if exp&1 == 1 {
			if result, ok = mul64(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		if base, ok = mul64(base, base); !ok {
			return 0, false
		}
	}
	return result, true
}

// Negate returns -v, keeping v's numeric kind.
func Negate(v any) (any, error) {
	switch kindOf(v) {
	case kindInt:
		n := v.(int)
		if n == math.MinInt {
			return nil, fmt.Errorf("%w: -%d", ErrIntegerOverflow, n)
		}
		return -n, nil
	case kindInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n == math.MinInt64 {
			return nil, fmt.Errorf("%w: -%d", ErrIntegerOverflow, n)
		}
		return -n, nil
	case kindFloat:
		return -toFloat64(v), nil
	}
	return nil, fmt.Errorf("%w: -%T", ErrOperandType, v)
}
