// Package mathexpr compiles and evaluates the tokenised arithmetic
// expressions used by rate, formula and equilibrium terms. Parsing of the
// original infix text is delegated to govaluate; compile.go walks its token
// stream into our own tagged postfix opcode array so that evaluation can do
// variable-kind dispatch and the illegal-math fault handling that a bare
// govaluate.Evaluate() call does not support.
package mathexpr

// Op identifies the kind of one compiled instruction.
type Op uint8

const (
	OpConst Op = iota
	OpVar
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpPow
	OpFunc
)

// Func identifies a named unary function.
type Func uint8

const (
	FuncExp Func = iota
	FuncLog
	FuncLog10
	FuncSqrt
	FuncSin
	FuncCos
	FuncTan
	FuncCot
	FuncSinh
	FuncCosh
	FuncTanh
	FuncCoth
	FuncAbs
	FuncSign
	FuncStep
)

// funcNames maps the identifiers recognised inside expressions to their
// opcode, matching the function list in spec.md §4.1.
var funcNames = map[string]Func{
	"exp":   FuncExp,
	"log":   FuncLog,
	"log10": FuncLog10,
	"sqrt":  FuncSqrt,
	"sin":   FuncSin,
	"cos":   FuncCos,
	"tan":   FuncTan,
	"cot":   FuncCot,
	"sinh":  FuncSinh,
	"cosh":  FuncCosh,
	"tanh":  FuncTanh,
	"coth":  FuncCoth,
	"abs":   FuncAbs,
	"sign":  FuncSign,
	"step":  FuncStep,
}

// Token is a single compiled instruction in postfix order.
type Token struct {
	Op    Op
	Const float64
	Var   int
	Fn    Func
}

// Expr is a compiled, side-effect-free, reentrant arithmetic expression.
// The zero value is not valid; build one with Compile.
type Expr struct {
	tokens []Token
	arity  int // max operand-stack depth required to evaluate
}
