package mathexpr

import (
	"math"
	"testing"
)

func resolveOf(vars map[string]float64) (Resolve, func(int) (float64, error)) {
	names := make([]string, 0, len(vars))
	vals := make([]float64, 0, len(vars))
	idx := make(map[string]int, len(vars))
	for name, v := range vars {
		idx[name] = len(names)
		names = append(names, name)
		vals = append(vals, v)
	}
	resolve := func(name string) (int, bool) {
		i, ok := idx[name]
		return i, ok
	}
	lookup := func(i int) (float64, error) { return vals[i], nil }
	return resolve, lookup
}

func evalExpr(t *testing.T, expr string, vars map[string]float64) float64 {
	t.Helper()
	resolve, lookup := resolveOf(vars)
	e, err := Compile(expr, resolve)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	v, err := e.Eval(ResolverFunc(lookup))
	if err != nil {
		t.Fatalf("Eval(%q): %v", expr, err)
	}
	return v
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		vars map[string]float64
		want float64
	}{
		{"2 + 3 * 4", nil, 14},
		{"(2 + 3) * 4", nil, 20},
		{"2 ** 3 ** 2", nil, 512}, // right-associative power: 2^(3^2)
		{"-2 ** 2", nil, -4},      // power binds tighter than unary minus
		{"K1*C1 - K2*C2", map[string]float64{"K1": 2, "C1": 3, "K2": 1, "C2": 5}, 1},
		{"sqrt(4) + log10(100)", nil, 4},
	}
	for _, c := range cases {
		got := evalExpr(t, c.expr, c.vars)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("%q = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestIllegalMath(t *testing.T) {
	cases := []string{"1/0", "log(-1)", "sqrt(-1)", "(-2) ** 0.5"}
	for _, expr := range cases {
		resolve, lookup := resolveOf(nil)
		e, err := Compile(expr, resolve)
		if err != nil {
			t.Fatalf("Compile(%q): %v", expr, err)
		}
		if _, err := e.Eval(ResolverFunc(lookup)); err == nil {
			t.Errorf("%q: expected illegal math error, got nil", expr)
		}
	}
}

func TestUndefinedReference(t *testing.T) {
	resolve, _ := resolveOf(nil)
	if _, err := Compile("UNKNOWN + 1", resolve); err == nil {
		t.Error("expected undefined reference error")
	}
}

func TestReentrant(t *testing.T) {
	resolve, _ := resolveOf(map[string]float64{"X": 1})
	e, err := Compile("X * 2", resolve)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan float64, 2)
	for i := 0; i < 2; i++ {
		x := float64(i + 1)
		go func() {
			v, _ := e.Eval(ResolverFunc(func(int) (float64, error) { return x, nil }))
			done <- v
		}()
	}
	a, b := <-done, <-done
	if a+b != 6 { // (1*2)+(2*2)
		t.Errorf("got %v, %v", a, b)
	}
}
