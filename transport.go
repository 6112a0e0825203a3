package msx

import (
	"math"

	"github.com/watermodel/msx/chem"
	"github.com/watermodel/msx/mathexpr"
)

// waterViscosity is the fresh-water kinematic viscosity (m^2/s) used for
// every Reynolds-number-dependent hydraulic and mass-transfer quantity.
const waterViscosity = 1.1e-6

// wallMolDiffusivity is the molecular diffusivity (m^2/s) used to derive a
// wall species' film mass-transfer coefficient. spec.md's SPECIES grammar
// carries no per-species diffusivity field, so every wall species shares
// this one representative small-ion value (close to chlorine's, the
// species EPANET-MSX's own wall-demand examples are built around) rather
// than going unmodeled.
const wallMolDiffusivity = 1.3e-9

// transportStep runs one quality time step's transport and reaction
// cycle, in this fixed phase order: direction, react, advect, accumulate,
// update nodes, source input, release. There is no separate
// incident-concentration phase. Every phase reads only data frozen by an
// earlier phase in this same call, so link order within a phase never
// affects the result.
func (p *Project) transportStep(dt float64) error {
	vt := p.Net.VarTable()
	step := int(p.Qtime / p.Opts.Timestep)

	// 1. Direction: link flow direction and magnitude are already fixed
	// by applyPeriod when the hydraulic period last changed.

	// 2. React: advance every link's segments and every tank's state
	// through dt of kinetics.
	if err := p.reactLinks(dt, vt); err != nil {
		return err
	}
	if err := p.reactTanks(dt, vt); err != nil {
		return err
	}

	// 3. Advect: shrink each link's head segment by the volume that
	// crosses its downstream node this step, remembering what left.
	type discharge struct {
		node int
		vol  float64
		c    []float64
	}
	var discharges []discharge
	for _, l := range p.Net.Links {
		if l.FlowDir == 0 {
			continue
		}
		vol := math.Abs(l.Q) * dt
		downstream := l.N2
		if l.FlowDir < 0 {
			downstream = l.N1
		}
		if s := l.Segs.Head(); s != nil {
			c := append([]float64(nil), s.c...)
			discharges = append(discharges, discharge{downstream, vol, c})
		}
		l.Segs.ShrinkHead(vol)
	}

	// 4. Accumulate: sum inflow volume and volume*concentration at each
	// node from the link discharges above. Tank discharge is not part of
	// this sum, and a node with no inflow does not take a concentration
	// from its outgoing links; it keeps its previous one (phase 6).
	nSpecies := p.Net.NumSpecies()
	inflowVol := make([]float64, p.Net.NumNodes())
	inflowMass := make([][]float64, p.Net.NumNodes())
	for i := range inflowMass {
		inflowMass[i] = make([]float64, nSpecies)
	}
	for _, d := range discharges {
		inflowVol[d.node] += d.vol
		for i, v := range d.c {
			inflowMass[d.node][i] += v * d.vol
		}
	}

	// 6. Update nodes: blend accumulated inflow into each node's
	// concentration (and its tank, if any), per spec.md §4.6.
	for _, nd := range p.Net.Nodes {
		qIn := inflowVol[nd.Index]
		var cIn []float64
		if qIn > 0 {
			cIn = make([]float64, nSpecies)
			for i := range cIn {
				cIn[i] = inflowMass[nd.Index][i] / qIn
			}
		} else {
			cIn = nd.C
		}
		if nd.IsTank() {
			tk := p.Net.Tanks[nd.TankIdx]
			netFlow := qIn - p.tankOutflow(nd.Index)
			tk.Mix(dt, netFlow, cIn)
			p.copyBulkSpecies(nd.C, tk.DischargeConcentration())
		} else if qIn > 0 {
			p.copyBulkSpecies(nd.C, cIn)
		}
		// A node with no inflow this step (a dead-end source or a node
		// fed only by demand) keeps its previous concentration. A wall
		// species never reaches here either way: spec.md §4.7 changes it
		// only by kinetics and the film-transfer mix applied at Release,
		// never by node-to-node advection.
	}

	// 7. Source input: sources modify the concentration a node presents
	// to its outgoing links, without altering the node's own stored
	// quality (so repeated reads of getQual see the untainted value).
	release := make(map[int][]float64, len(p.Net.Nodes))
	for _, nd := range p.Net.Nodes {
		c := append([]float64(nil), nd.C...)
		for _, src := range nd.Sources {
			p.applySource(c, src, step)
		}
		release[nd.Index] = c
	}

	// 8. Release: push the node's (possibly source-modified) quality
	// into the tail (upstream end) of every link now flowing away from
	// that node. A
	// wall species does not simply advect into the new segment like a
	// bulk species does; its concentration is a Sherwood-number-weighted
	// film-transfer mix against the segment it is being pushed next to
	// (spec.md §4.7).
	_, atol := p.speciesTolerances()
	for _, l := range p.Net.Links {
		if l.FlowDir == 0 {
			continue
		}
		upstream := l.N1
		if l.FlowDir < 0 {
			upstream = l.N2
		}
		vol := math.Abs(l.Q) * dt
		c := p.wallFilmMix(l, release[upstream], dt)
		l.Segs.GrowTail(vol, c, atol)
	}

	return nil
}

// copyBulkSpecies copies every bulk-species entry from src into dst,
// leaving dst's wall-species entries untouched: a wall species has no
// node-level advected quality, only the kinetics and film-transfer mixing
// spec.md §4.7 describes.
func (p *Project) copyBulkSpecies(dst, src []float64) {
	for i, sp := range p.Net.Species {
		if sp.Kind == Wall {
			continue
		}
		dst[i] = src[i]
	}
}

// wallFilmMix returns the concentration vector to push as l's new tail
// segment: bulk species advect with the incoming water unchanged, while
// each wall species is blended with l's current tail segment (the
// downstream neighbor the new segment is about to sit next to) by a
// Sherwood-number-derived film mass-transfer coefficient, per spec.md
// §4.7. With no existing segment to blend against, a wall species simply
// takes the node's value, same as a bulk species.
func (p *Project) wallFilmMix(l *Link, release []float64, dt float64) []float64 {
	adj := l.Segs.Tail()
	if adj == nil {
		return release
	}
	hasWall := false
	for _, sp := range p.Net.Species {
		if sp.Kind == Wall {
			hasWall = true
			break
		}
	}
	if !hasWall {
		return release
	}
	hyd := chem.HydVars(l.Q, l.Diameter, l.Roughness, waterViscosity)
	kf := chem.WallFilmCoeff(hyd[3], waterViscosity, wallMolDiffusivity, hyd[0])
	av := hyd[6]
	alpha := 1 - math.Exp(-kf*av*dt)

	out := append([]float64(nil), release...)
	for i, sp := range p.Net.Species {
		if sp.Kind != Wall {
			continue
		}
		out[i] = (1-alpha)*release[i] + alpha*adj.c[i]
	}
	return out
}

// tankOutflow sums the volumetric flow leaving node ni through links
// currently flowing away from it, used to net against inflow when
// updating a tank's volume.
func (p *Project) tankOutflow(ni int) float64 {
	total := 0.0
	nd := p.Net.Nodes[ni]
	for _, li := range nd.outLinks {
		if l := p.Net.Links[li]; l.FlowDir > 0 {
			total += l.Q
		}
	}
	for _, li := range nd.inLinks {
		if l := p.Net.Links[li]; l.FlowDir < 0 {
			total += -l.Q
		}
	}
	return total
}

// applySource adds one source's contribution to the concentration a node
// presents downstream, per the CONC/MASS/SETPOINT/FLOW kinds of
// original_source/src/msxdict.h's SourceTypeWords.
func (p *Project) applySource(c []float64, src *Source, step int) {
	strength := src.Strength(step)
	i := src.Species
	switch src.Kind {
	case SourceConcen:
		c[i] = strength
	case SourceMassBooster:
		c[i] += strength
	case SourceSetpointBooster:
		if c[i] < strength {
			c[i] = strength
		}
	case SourceFlowPacedBooster:
		c[i] += strength
	}
}

func (p *Project) reactLinks(dt float64, vt *VarTable) error {
	rtol, atol := p.speciesTolerances()
	for _, l := range p.Net.Links {
		hyd := chem.HydVars(l.Q, l.Diameter, l.Roughness, waterViscosity)
		rf := func(c []float64) mathexpr.Resolver {
			return &zoneResolver{net: p.Net, vt: vt, c: c, hyd: hyd, params: l.Params}
		}
		var reactErr error
		l.Segs.Walk(func(v float64, c []float64) bool {
			snapshot := append([]float64(nil), c...)
			if err := p.engine.ReactPipe(dt, snapshot, rtol, atol, rf); err != nil {
				reactErr = err
				return false
			}
			copy(c, snapshot)
			return true
		})
		if reactErr != nil {
			return newErr(ErrIntegratorFailed, "pipe reaction step failed", reactErr)
		}
	}
	return nil
}

func (p *Project) reactTanks(dt float64, vt *VarTable) error {
	rtol, atol := p.speciesTolerances()
	for _, tk := range p.Net.Tanks {
		hyd := chem.HydVars(0, 0, 0, waterViscosity)
		rf := func(c []float64) mathexpr.Resolver {
			return &zoneResolver{net: p.Net, vt: vt, c: c, hyd: hyd, params: tk.Params}
		}
		if tk.Mixing == MixFIFO || tk.Mixing == MixLIFO {
			var reactErr error
			tk.Segs.Walk(func(v float64, c []float64) bool {
				snapshot := append([]float64(nil), c...)
				if err := p.engine.ReactTank(dt, snapshot, rtol, atol, rf); err != nil {
					reactErr = err
					return false
				}
				copy(c, snapshot)
				return true
			})
			if reactErr != nil {
				return newErr(ErrIntegratorFailed, "tank reaction step failed", reactErr)
			}
			continue
		}
		if err := p.engine.ReactTank(dt, tk.C, rtol, atol, rf); err != nil {
			return newErr(ErrIntegratorFailed, "tank reaction step failed", err)
		}
	}
	return nil
}

func (p *Project) speciesTolerances() (rtol, atol []float64) {
	n := p.Net.NumSpecies()
	rtol, atol = make([]float64, n), make([]float64, n)
	for i, sp := range p.Net.Species {
		rtol[i], atol[i] = sp.RTol, sp.ATol
	}
	return
}
