package mathexpr

import (
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

// Resolve maps a variable identifier appearing in an expression to the
// encoded variable index used at evaluation time. The encoding (which
// entity kind an index belongs to, and its offset within that kind) is
// owned by the caller — mathexpr only carries the integer through.
type Resolve func(name string) (int, bool)

// operator precedence/associativity, used by the shunting-yard conversion
// below. Power binds tighter than unary minus, which binds tighter than
// */, which binds tighter than +-.
const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
)

type opFrame struct {
	isFunc   bool
	fn       Func
	isParen  bool
	modifier string
	prec     int
	rightAssoc bool
}

// Compile parses expr (ordinary infix arithmetic, e.g. "K1*C1 - K2*C2^2")
// using govaluate as the tokenizer/parser front end, then rewrites the
// resulting token stream into our own tagged postfix Expr. resolve supplies
// the encoded variable index for each identifier found; an unknown
// identifier is an undefined-reference compile error.
func Compile(expr string, resolve Resolve) (*Expr, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, evaluableFunctionStubs)
	if err != nil {
		return nil, errors.Wrapf(err, "mathexpr: parsing %q", expr)
	}

	var out []Token
	var ops []opFrame
	depth, maxDepth := 0, 0
	push := func(t Token) {
		out = append(out, t)
		switch t.Op {
		case OpConst, OpVar:
			depth++
		case OpFunc, OpNeg:
			// consumes one, produces one: no net change
		default:
			depth-- // binary op: consumes two, produces one
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	popToOutput := func(f opFrame) {
		if f.isFunc {
			push(Token{Op: OpFunc, Fn: f.fn})
			return
		}
		push(modifierToken(f.modifier))
	}

	for _, tok := range parsed.Tokens() {
		switch tok.Kind {
		case govaluate.NUMERIC:
			v, ok := tok.Value.(float64)
			if !ok {
				return nil, fmt.Errorf("mathexpr: non-numeric literal in %q", expr)
			}
			push(Token{Op: OpConst, Const: v})

		case govaluate.VARIABLE:
			name, _ := tok.Value.(string)
			idx, ok := resolve(name)
			if !ok {
				return nil, fmt.Errorf("undefined reference: %s", name)
			}
			push(Token{Op: OpVar, Var: idx})

		case govaluate.FUNCTION:
			name, _ := tok.Value.(string)
			fn, ok := funcNames[name]
			if !ok {
				return nil, fmt.Errorf("illegal math expression: unknown function %s", name)
			}
			ops = append(ops, opFrame{isFunc: true, fn: fn})

		case govaluate.CLAUSE:
			ops = append(ops, opFrame{isParen: true})

		case govaluate.CLAUSE_CLOSE:
			for len(ops) > 0 && !ops[len(ops)-1].isParen {
				popToOutput(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			if len(ops) == 0 {
				return nil, fmt.Errorf("illegal math expression: unbalanced parentheses in %q", expr)
			}
			ops = ops[:len(ops)-1] // discard the '('
			if len(ops) > 0 && ops[len(ops)-1].isFunc {
				popToOutput(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}

		case govaluate.SEPARATOR:
			return nil, fmt.Errorf("illegal math expression: multi-argument functions are not supported in %q", expr)

		case govaluate.PREFIX:
			sym, _ := tok.Value.(string)
			if sym != "-" {
				return nil, fmt.Errorf("illegal math expression: unsupported prefix operator %q", sym)
			}
			ops = append(ops, opFrame{modifier: "neg", prec: precUnary, rightAssoc: true})

		case govaluate.MODIFIER:
			sym, _ := tok.Value.(string)
			prec, ok := binaryPrecedence[sym]
			if !ok {
				return nil, fmt.Errorf("illegal math expression: unsupported operator %q", sym)
			}
			right := sym == "**" || sym == "^"
			for len(ops) > 0 && !ops[len(ops)-1].isParen && !ops[len(ops)-1].isFunc &&
				(ops[len(ops)-1].prec > prec || (ops[len(ops)-1].prec == prec && !right)) {
				popToOutput(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, opFrame{modifier: sym, prec: prec, rightAssoc: right})

		default:
			return nil, fmt.Errorf("illegal math expression: unsupported token in %q", expr)
		}
	}

	for len(ops) > 0 {
		f := ops[len(ops)-1]
		if f.isParen {
			return nil, fmt.Errorf("illegal math expression: unbalanced parentheses in %q", expr)
		}
		popToOutput(f)
		ops = ops[:len(ops)-1]
	}

	return &Expr{tokens: out, arity: maxDepth}, nil
}

var binaryPrecedence = map[string]int{
	"+": precAdd, "-": precAdd,
	"*": precMul, "/": precMul,
	"**": precPow, "^": precPow,
}

func modifierToken(sym string) Token {
	switch sym {
	case "+":
		return Token{Op: OpAdd}
	case "-":
		return Token{Op: OpSub}
	case "*":
		return Token{Op: OpMul}
	case "/":
		return Token{Op: OpDiv}
	case "**", "^":
		return Token{Op: OpPow}
	case "neg":
		return Token{Op: OpNeg}
	}
	panic("mathexpr: unreachable modifier " + sym)
}

// evaluableFunctionStubs registers every recognised function name with
// govaluate so its parser accepts the call syntax; the stubs themselves are
// never invoked since we re-evaluate from the compiled postfix form.
var evaluableFunctionStubs = func() map[string]govaluate.ExpressionFunction {
	m := make(map[string]govaluate.ExpressionFunction, len(funcNames))
	stub := func(args ...interface{}) (interface{}, error) { return 0.0, nil }
	for name := range funcNames {
		m[name] = stub
	}
	return m
}()
