// Package chem evaluates species reaction kinetics: it classifies each
// species into a rate, formula or equilibrium role per zone (pipe vs
// tank), advances the rate species with a pluggable ODE solver, and
// solves the equilibrium species with a damped Newton iteration at each
// point the rate species are updated. It has no dependency on the root
// network package; callers hand it plain concentration slices and a
// Resolver factory, the same separation the teacher's mechanism/cell
// abstraction used to keep a pluggable per-cell kinetics function
// independent of grid topology.
package chem

import "math"

// HydVars computes the eight hydraulic variables a pipe's reaction
// expressions may reference, in the fixed order D, Q, U, Re, Us, Ff, Av,
// R (spec.md §4.4). q is signed flow, d is diameter, roughness is the
// pipe's Darcy-Weisbach roughness height, visc is the fluid's kinematic
// viscosity.
func HydVars(q, d, roughness, visc float64) [8]float64 {
	var hv [8]float64
	hv[0] = d
	hv[1] = q
	if d <= 0 {
		return hv
	}
	area := math.Pi / 4 * d * d
	u := q / area
	hv[2] = u
	re := math.Abs(u) * d / visc
	hv[3] = re
	ff := frictionFactor(re, roughness, d)
	hv[5] = ff
	hv[4] = math.Abs(u) * math.Sqrt(ff/8)
	hv[6] = 4 / d
	hv[7] = roughness
	return hv
}

// frictionFactor approximates the Darcy-Weisbach friction factor with the
// Swamee-Jain formula for turbulent flow, falling back to the laminar
// relation f = 64/Re below the transitional Reynolds number.
func frictionFactor(re, roughness, d float64) float64 {
	if re < 2300 {
		if re <= 0 {
			return 0
		}
		return 64 / re
	}
	relRough := roughness / (3.7 * d)
	denom := math.Log10(relRough + 5.74/math.Pow(re, 0.9))
	return 0.25 / (denom * denom)
}

// Sherwood returns the dimensionless mass-transfer Sherwood number at
// Reynolds number re and Schmidt number sc, the correlation a wall
// species' film mass-transfer coefficient is built from: the asymptotic
// value for fully developed laminar flow below the transitional Reynolds
// number, and the Notter-Sleicher correlation for turbulent flow.
func Sherwood(re, sc float64) float64 {
	if re < 2300 {
		return 3.65
	}
	return 0.0149 * math.Pow(re, 0.88) * math.Pow(sc, 1.0/3.0)
}

// WallFilmCoeff returns the film mass-transfer coefficient kf (length per
// time) governing how fast a wall species exchanges with the pipe wall,
// for a species of molecular diffusivity molDiff in a pipe of diameter d
// at Reynolds number re, given the fluid's kinematic viscosity visc.
func WallFilmCoeff(re, visc, molDiff, d float64) float64 {
	if d <= 0 || molDiff <= 0 {
		return 0
	}
	sc := visc / molDiff
	return Sherwood(re, sc) * molDiff / d
}
