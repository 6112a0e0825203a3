package chem

import "github.com/watermodel/msx/mathexpr"

// Kind is a species' expression role within one zone (pipe or tank).
// Kept independent of the root package's ExprKind so this package never
// imports it.
type Kind uint8

const (
	None Kind = iota
	Rate
	Formula
	Equil
)

// SpeciesSpec is the chemistry-relevant description of one species: its
// expression kind and compiled expression in each zone.
type SpeciesSpec struct {
	Bulk      bool
	PipeKind  Kind
	TankKind  Kind
	PipeExpr  *mathexpr.Expr
	TankExpr  *mathexpr.Expr
}

func (s SpeciesSpec) kind(pipe bool) Kind {
	if pipe {
		return s.PipeKind
	}
	return s.TankKind
}

func (s SpeciesSpec) expr(pipe bool) *mathexpr.Expr {
	if pipe {
		return s.PipeExpr
	}
	return s.TankExpr
}

// zoneClass partitions species indices by role within one zone.
type zoneClass struct {
	rate    []int
	formula []int
	equil   []int
}

func classify(specs []SpeciesSpec, pipe bool) zoneClass {
	var zc zoneClass
	for i, s := range specs {
		switch s.kind(pipe) {
		case Rate:
			zc.rate = append(zc.rate, i)
		case Formula:
			zc.formula = append(zc.formula, i)
		case Equil:
			zc.equil = append(zc.equil, i)
		}
	}
	return zc
}
