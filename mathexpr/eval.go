package mathexpr

import (
	"math"

	"github.com/pkg/errors"
)

// ErrIllegalMath is returned for any arithmetic fault: divide by zero, log
// of a non-positive value, a power with a negative base and non-integer
// exponent, or a NaN/Inf result. It is the "illegal math" fault of spec.md
// §4.1 / §7.
var ErrIllegalMath = errors.New("illegal math expression")

// Resolver supplies the current value of a variable index during
// evaluation.
type Resolver interface {
	Resolve(varIndex int) (float64, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(int) (float64, error)

func (f ResolverFunc) Resolve(i int) (float64, error) { return f(i) }

// Eval evaluates the compiled expression against r. Eval is side-effect
// free and reentrant: concurrent calls against the same *Expr with
// different resolvers are safe.
func (e *Expr) Eval(r Resolver) (float64, error) {
	stack := make([]float64, 0, e.arity+1)
	for _, tok := range e.tokens {
		switch tok.Op {
		case OpConst:
			stack = append(stack, tok.Const)

		case OpVar:
			v, err := r.Resolve(tok.Var)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)

		case OpNeg:
			n := len(stack) - 1
			stack[n] = -stack[n]

		case OpFunc:
			n := len(stack) - 1
			v, err := applyFunc(tok.Fn, stack[n])
			if err != nil {
				return 0, err
			}
			stack[n] = v

		default:
			n := len(stack) - 2
			a, b := stack[n], stack[n+1]
			stack = stack[:n+1]
			v, err := applyBinary(tok.Op, a, b)
			if err != nil {
				return 0, err
			}
			stack[n] = v
		}
	}
	if len(stack) != 1 {
		return 0, errors.Wrap(ErrIllegalMath, "malformed expression")
	}
	result := stack[0]
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, ErrIllegalMath
	}
	return result, nil
}

func applyBinary(op Op, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, ErrIllegalMath
		}
		return a / b, nil
	case OpPow:
		if a < 0 && b != math.Trunc(b) {
			return 0, ErrIllegalMath
		}
		v := math.Pow(a, b)
		if math.IsNaN(v) {
			return 0, ErrIllegalMath
		}
		return v, nil
	}
	panic("mathexpr: unreachable binary op")
}

func applyFunc(fn Func, x float64) (float64, error) {
	switch fn {
	case FuncExp:
		return math.Exp(x), nil
	case FuncLog:
		if x <= 0 {
			return 0, ErrIllegalMath
		}
		return math.Log(x), nil
	case FuncLog10:
		if x <= 0 {
			return 0, ErrIllegalMath
		}
		return math.Log10(x), nil
	case FuncSqrt:
		if x < 0 {
			return 0, ErrIllegalMath
		}
		return math.Sqrt(x), nil
	case FuncSin:
		return math.Sin(x), nil
	case FuncCos:
		return math.Cos(x), nil
	case FuncTan:
		return math.Tan(x), nil
	case FuncCot:
		t := math.Tan(x)
		if t == 0 {
			return 0, ErrIllegalMath
		}
		return 1 / t, nil
	case FuncSinh:
		return math.Sinh(x), nil
	case FuncCosh:
		return math.Cosh(x), nil
	case FuncTanh:
		return math.Tanh(x), nil
	case FuncCoth:
		t := math.Tanh(x)
		if t == 0 {
			return 0, ErrIllegalMath
		}
		return 1 / t, nil
	case FuncAbs:
		return math.Abs(x), nil
	case FuncSign:
		switch {
		case x > 0:
			return 1, nil
		case x < 0:
			return -1, nil
		default:
			return 0, nil
		}
	case FuncStep:
		if x > 0 {
			return 1, nil
		}
		return 0, nil
	}
	panic("mathexpr: unreachable function")
}
