package msx

import "github.com/watermodel/msx/mathexpr"

// zoneResolver resolves a VarTable slot to its current value for one
// zone's (pipe or tank) expression evaluation: species come from the
// live concentration snapshot c, terms are evaluated on demand against
// this same resolver (a term may reference species/parameters/constants/
// hydraulics, never another term, so this recursion always terminates),
// parameters fall back from a per-link/tank override to the network
// default, constants and hydraulics are fixed for the duration of one
// evaluation.
type zoneResolver struct {
	net    *Network
	vt     *VarTable
	c      []float64
	hyd    [8]float64
	params map[int]float64
}

func (r *zoneResolver) Resolve(slot int) (float64, error) {
	if i, ok := r.vt.IsSpecies(slot); ok {
		return r.c[i], nil
	}
	if i, ok := r.vt.IsTerm(slot); ok {
		return r.net.Terms[i].Expr.Eval(r)
	}
	if i, ok := r.vt.IsParam(slot); ok {
		if v, ok := r.params[i]; ok {
			return v, nil
		}
		return r.net.Parameters[i].Default, nil
	}
	if i, ok := r.vt.IsConst(slot); ok {
		return r.net.Constants[i].Value, nil
	}
	if hv, ok := r.vt.IsHyd(slot); ok {
		return r.hyd[hv], nil
	}
	return 0, mathexprUndefined
}

var mathexprUndefined = mathexpr.ErrIllegalMath
