package msx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/watermodel/msx/chem"
	"github.com/watermodel/msx/mathexpr"
	"github.com/watermodel/msx/odesolve"
)

// Options holds the OPTIONS section settings, resolved to internal units.
type Options struct {
	AreaUnits AreaUnits
	RateUnits TimeUnits
	Solver    odesolve.Kind
	Coupling  chem.Coupling
	Timestep  float64 // seconds
	RTol      float64
	ATol      float64
}

func defaultOptions() Options {
	return Options{
		AreaUnits: AreaFT2,
		RateUnits: TimeSec,
		Solver:    odesolve.RK5,
		Coupling:  chem.CouplingNone,
		Timestep:  300,
		RTol:      0.001,
		ATol:      0.01,
	}
}

// parseState is the symbol table used only during parsing; spec.md's
// lifecycle note that hash tables exist only while an input file is
// being read is why none of this survives into the Network itself.
type parseState struct {
	net  *Network
	opts Options

	nodeByID map[string]int
	linkByID map[string]int

	speciesByID map[string]int
	termByID    map[string]int
	paramByID   map[string]int
	constByID   map[string]int
	patternByID map[string]int

	pipeExprKind map[string]ExprKind
	tankExprKind map[string]ExprKind
	pipeExprSrc  map[string]string
	tankExprSrc  map[string]string
	termSrc      map[string]string

	errs []*Error
}

// ParseChemistry reads a chemistry input file and returns the Network and
// resolved Options it describes. Node and link topology (IDs, endpoints,
// diameters) is assumed already present in net (normally populated from
// the companion EPANET hydraulics file before chemistry parsing begins);
// ParseChemistry only adds species, coefficients, and per-entity
// chemistry data.
func ParseChemistry(r io.Reader, net *Network) (*Options, error) {
	ps := &parseState{
		net:          net,
		opts:         defaultOptions(),
		nodeByID:     net.nodeIndex,
		linkByID:     net.linkIndex,
		speciesByID:  map[string]int{},
		termByID:     map[string]int{},
		paramByID:    map[string]int{},
		constByID:    map[string]int{},
		patternByID:  map[string]int{},
		pipeExprKind: map[string]ExprKind{},
		tankExprKind: map[string]ExprKind{},
		pipeExprSrc:  map[string]string{},
		tankExprSrc:  map[string]string{},
		termSrc:      map[string]string{},
	}
	if ps.nodeByID == nil {
		ps.nodeByID = map[string]int{}
	}
	if ps.linkByID == nil {
		ps.linkByID = map[string]int{}
	}

	sec := secNone
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := stripComment(scan.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 1024 {
			ps.addErr(ErrLineTooLong, fmt.Sprintf("line %d", lineNo))
			continue
		}
		if strings.HasPrefix(line, "[") {
			s, ok := lookupSection(line)
			if !ok {
				ps.addErr(ErrBadKeyword, fmt.Sprintf("line %d: %s", lineNo, line))
				continue
			}
			sec = s
			continue
		}
		if err := ps.parseLine(sec, line); err != nil {
			if e, ok := err.(*Error); ok {
				ps.errs = append(ps.errs, e)
			} else {
				ps.addErr(ErrBadNumber, fmt.Sprintf("line %d: %v", lineNo, err))
			}
		}
		if len(ps.errs) >= 100 {
			break
		}
	}
	if err := scan.Err(); err != nil {
		return nil, errors.Wrap(err, "msx: reading chemistry file")
	}
	if len(ps.errs) > 0 {
		return nil, ps.errs[0]
	}

	if err := ps.resolveExpressions(); err != nil {
		return nil, err
	}
	net.Finalize()
	return &ps.opts, nil
}

func stripComment(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return s[:i]
	}
	return s
}

func (ps *parseState) addErr(code Code, msg string) {
	ps.errs = append(ps.errs, newErr(code, msg, nil))
}

func (ps *parseState) parseLine(sec section, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch sec {
	case secTitle:
		return nil
	case secSpecies:
		return ps.parseSpecies(fields)
	case secCoefficients:
		return ps.parseCoefficient(fields)
	case secTerms:
		return ps.parseTerm(line, fields)
	case secPipes:
		return ps.parseLinkData(fields, true)
	case secTanks:
		return ps.parseTankData(fields)
	case secSources:
		return ps.parseSource(fields)
	case secQuality:
		return ps.parseQuality(fields)
	case secParameters:
		return ps.parseLinkData(fields, false)
	case secPatterns:
		return ps.parsePattern(fields)
	case secOptions:
		return ps.parseOption(fields)
	case secReport:
		return nil
	default:
		return newErr(ErrBadKeyword, "line outside any section", nil)
	}
}

// parseSpecies handles `id units [aTol rTol]`. Species kind (bulk vs wall)
// is not stated here; resolveExpressions infers it once PIPES/TANKS has
// been read in full, from which zone's expressions reference the species.
func (ps *parseState) parseSpecies(f []string) error {
	if len(f) < 2 {
		return newErr(ErrTooFewItems, "SPECIES", nil)
	}
	id := f[0]
	if _, dup := ps.speciesByID[id]; dup {
		return newErr(ErrDuplicateName, id, nil)
	}
	units, ok := massUnitsWords[strings.ToUpper(f[1])]
	if !ok {
		return newErr(ErrBadKeyword, f[1], nil)
	}
	atol, rtol := ps.opts.ATol, ps.opts.RTol
	if len(f) >= 4 {
		var err error
		if atol, err = strconv.ParseFloat(f[2], 64); err != nil {
			return newErr(ErrBadNumber, f[2], err)
		}
		if rtol, err = strconv.ParseFloat(f[3], 64); err != nil {
			return newErr(ErrBadNumber, f[3], err)
		}
	}
	sp := &Species{ID: id, Index: len(ps.net.Species), Units: units, ATol: atol, RTol: rtol, Report: true}
	ps.speciesByID[id] = sp.Index
	ps.net.Species = append(ps.net.Species, sp)
	return nil
}

// parseCoefficient handles `PARAMETER id value` or `CONSTANT id value`.
func (ps *parseState) parseCoefficient(f []string) error {
	if len(f) < 3 {
		return newErr(ErrTooFewItems, "COEFFICIENTS", nil)
	}
	val, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[2], err)
	}
	id := f[1]
	switch strings.ToUpper(f[0]) {
	case "PARAMETER":
		if _, dup := ps.paramByID[id]; dup {
			return newErr(ErrDuplicateName, id, nil)
		}
		p := &Parameter{ID: id, Index: len(ps.net.Parameters), Default: val}
		ps.paramByID[id] = p.Index
		ps.net.Parameters = append(ps.net.Parameters, p)
	case "CONSTANT":
		if _, dup := ps.constByID[id]; dup {
			return newErr(ErrDuplicateName, id, nil)
		}
		c := &Constant{ID: id, Index: len(ps.net.Constants), Value: val}
		ps.constByID[id] = c.Index
		ps.net.Constants = append(ps.net.Constants, c)
	default:
		return newErr(ErrBadKeyword, f[0], nil)
	}
	return nil
}

// parseTerm handles `id expr`; the expression is compiled in a later pass
// once every symbol table is complete, per resolveExpressions.
func (ps *parseState) parseTerm(line string, f []string) error {
	if len(f) < 2 {
		return newErr(ErrTooFewItems, "TERMS", nil)
	}
	id := f[0]
	if _, dup := ps.termByID[id]; dup {
		return newErr(ErrDuplicateName, id, nil)
	}
	expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), f[0]))
	idx := len(ps.net.Terms)
	ps.termByID[id] = idx
	ps.termSrc[id] = expr
	ps.net.Terms = append(ps.net.Terms, &Term{ID: id, Index: idx})
	return nil
}

// parseLinkData handles a PIPES-section rate/formula/equilibrium
// assignment (`RATE|FORMULA|EQUIL species expr`) or a PARAMETERS-section
// per-link/per-tank override (`PIPE|TANK id paramID value`).
func (ps *parseState) parseLinkData(f []string, pipesSection bool) error {
	if pipesSection {
		return ps.parseExprAssignment(f, true)
	}
	if len(f) < 4 {
		return newErr(ErrTooFewItems, "PARAMETERS", nil)
	}
	pidx, ok := ps.paramByID[f[2]]
	if !ok {
		return newErr(ErrUndefinedRef, f[2], nil)
	}
	val, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[3], err)
	}
	switch strings.ToUpper(f[0]) {
	case "PIPE":
		li, ok := ps.linkByID[f[1]]
		if !ok {
			return newErr(ErrUndefinedRef, f[1], nil)
		}
		l := ps.net.Links[li]
		if l.Params == nil {
			l.Params = map[int]float64{}
		}
		l.Params[pidx] = val
	case "TANK":
		ni, ok := ps.nodeByID[f[1]]
		if !ok || !ps.net.Nodes[ni].IsTank() {
			return newErr(ErrUndefinedRef, f[1], nil)
		}
		tk := ps.net.Tanks[ps.net.Nodes[ni].TankIdx]
		if tk.Params == nil {
			tk.Params = map[int]float64{}
		}
		tk.Params[pidx] = val
	default:
		return newErr(ErrBadKeyword, f[0], nil)
	}
	return nil
}

// parseExprAssignment handles `{RATE|FORMULA|EQUIL} species expr`,
// recording the source text for a later compile pass (spec.md §6).
func (ps *parseState) parseExprAssignment(f []string, pipeZone bool) error {
	if len(f) < 3 {
		return newErr(ErrTooFewItems, "PIPES", nil)
	}
	kind, ok := exprKindWords[strings.ToUpper(f[0])]
	if !ok {
		return newErr(ErrBadKeyword, f[0], nil)
	}
	if pipeZone && kind == ExprEquil {
		return newErr(ErrIllegalMathExpr, "EQUIL not allowed in pipe zone", nil)
	}
	id := f[1]
	if _, ok := ps.speciesByID[id]; !ok {
		return newErr(ErrUndefinedRef, id, nil)
	}
	expr := strings.Join(f[2:], " ")
	if pipeZone {
		if _, dup := ps.pipeExprKind[id]; dup {
			return newErr(ErrDuplicateExpr, id, nil)
		}
		ps.pipeExprKind[id] = kind
		ps.pipeExprSrc[id] = expr
	} else {
		if _, dup := ps.tankExprKind[id]; dup {
			return newErr(ErrDuplicateExpr, id, nil)
		}
		ps.tankExprKind[id] = kind
		ps.tankExprSrc[id] = expr
	}
	return nil
}

func (ps *parseState) parseTankData(f []string) error {
	if len(f) >= 3 && (strings.EqualFold(f[0], "RATE") || strings.EqualFold(f[0], "FORMULA") || strings.EqualFold(f[0], "EQUIL")) {
		return ps.parseExprAssignment(f, false)
	}
	if len(f) < 4 {
		return newErr(ErrTooFewItems, "TANKS", nil)
	}
	nodeID := f[0]
	ni, ok := ps.nodeByID[nodeID]
	if !ok {
		return newErr(ErrUndefinedRef, nodeID, nil)
	}
	area, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[1], err)
	}
	v0, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[2], err)
	}
	mixing, ok := mixingWords[strings.ToUpper(f[3])]
	if !ok {
		return newErr(ErrBadKeyword, f[3], nil)
	}
	vmix := v0
	if len(f) >= 5 {
		if vmix, err = strconv.ParseFloat(f[4], 64); err != nil {
			return newErr(ErrBadNumber, f[4], err)
		}
	}
	t := &Tank{Node: ni, Area: area, V0: v0, V: v0, Mixing: mixing, VMix: vmix, C: make([]float64, len(ps.net.Species))}
	ps.net.Nodes[ni].TankIdx = len(ps.net.Tanks)
	ps.net.Tanks = append(ps.net.Tanks, t)
	return nil
}

// parseSource handles `node species kind base [pattern]`.
func (ps *parseState) parseSource(f []string) error {
	if len(f) < 4 {
		return newErr(ErrTooFewItems, "SOURCES", nil)
	}
	ni, ok := ps.nodeByID[f[0]]
	if !ok {
		return newErr(ErrUndefinedRef, f[0], nil)
	}
	si, ok := ps.speciesByID[f[1]]
	if !ok {
		return newErr(ErrUndefinedRef, f[1], nil)
	}
	kind, ok := sourceWords[strings.ToUpper(f[2])]
	if !ok {
		return newErr(ErrBadKeyword, f[2], nil)
	}
	base, err := strconv.ParseFloat(f[3], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[3], err)
	}
	src := &Source{Kind: kind, Species: si, Base: base}
	if len(f) >= 5 {
		pi, ok := ps.patternByID[f[4]]
		if !ok {
			return newErr(ErrUndefinedRef, f[4], nil)
		}
		src.Pattern = ps.net.Patterns[pi]
	}
	ps.net.Nodes[ni].Sources = append(ps.net.Nodes[ni].Sources, src)
	return nil
}

// parseQuality handles `node species concentration` initial-quality
// assignments.
func (ps *parseState) parseQuality(f []string) error {
	if len(f) < 3 {
		return newErr(ErrTooFewItems, "QUALITY", nil)
	}
	ni, ok := ps.nodeByID[f[0]]
	if !ok {
		return newErr(ErrUndefinedRef, f[0], nil)
	}
	si, ok := ps.speciesByID[f[1]]
	if !ok {
		return newErr(ErrUndefinedRef, f[1], nil)
	}
	v, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return newErr(ErrBadNumber, f[2], err)
	}
	n := ps.net.Nodes[ni]
	if n.C0 == nil {
		n.C0 = make([]float64, len(ps.net.Species))
		n.C = make([]float64, len(ps.net.Species))
	}
	n.C0[si] = v
	n.C[si] = v
	return nil
}

// parsePattern handles `id mult1 [mult2 ...]`, appending to an existing
// pattern of the same id across multiple lines.
func (ps *parseState) parsePattern(f []string) error {
	if len(f) < 2 {
		return newErr(ErrTooFewItems, "PATTERNS", nil)
	}
	id := f[0]
	vals := make([]float64, 0, len(f)-1)
	for _, tok := range f[1:] {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return newErr(ErrBadNumber, tok, err)
		}
		vals = append(vals, v)
	}
	if idx, ok := ps.patternByID[id]; ok {
		p := ps.net.Patterns[idx]
		p.Mult = append(p.Mult, vals...)
		return nil
	}
	p := &Pattern{ID: id, Index: len(ps.net.Patterns), Mult: vals}
	ps.patternByID[id] = p.Index
	ps.net.Patterns = append(ps.net.Patterns, p)
	return nil
}

func (ps *parseState) parseOption(f []string) error {
	if len(f) < 2 {
		return newErr(ErrTooFewItems, "OPTIONS", nil)
	}
	key, val := strings.ToUpper(f[0]), f[1]
	switch key {
	case "AREA_UNITS":
		u, ok := areaUnitsWords[strings.ToUpper(val)]
		if !ok {
			return newErr(ErrBadKeyword, val, nil)
		}
		ps.opts.AreaUnits = u
	case "RATE_UNITS":
		u, ok := timeUnitsWords[strings.ToUpper(val)]
		if !ok {
			return newErr(ErrBadKeyword, val, nil)
		}
		ps.opts.RateUnits = u
	case "SOLVER":
		switch strings.ToUpper(val) {
		case "EUL":
			ps.opts.Solver = odesolve.Euler
		case "RK5":
			ps.opts.Solver = odesolve.RK5
		case "ROS2":
			ps.opts.Solver = odesolve.ROS2
		default:
			return newErr(ErrBadKeyword, val, nil)
		}
	case "COUPLING":
		switch strings.ToUpper(val) {
		case "NONE":
			ps.opts.Coupling = chem.CouplingNone
		case "FULL":
			ps.opts.Coupling = chem.CouplingFull
		default:
			return newErr(ErrBadKeyword, val, nil)
		}
	case "TIMESTEP":
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return newErr(ErrBadNumber, val, err)
		}
		ps.opts.Timestep = v
	case "RTOL":
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return newErr(ErrBadNumber, val, err)
		}
		ps.opts.RTol = v
	case "ATOL":
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return newErr(ErrBadNumber, val, err)
		}
		ps.opts.ATol = v
	default:
		return newErr(ErrBadKeyword, key, nil)
	}
	return nil
}

// resolveExpressions compiles every term, rate, formula and equilibrium
// expression now that every species/term/parameter/constant symbol has a
// final index, then stamps each Species with its compiled PipeExpr and
// TankExpr. Reference resolution covers species, terms, parameters,
// constants, and the fixed hydraulic-variable names (spec.md §4.4); terms
// may only reference species/parameters/constants/hydraulics, not other
// terms, keeping resolution a single non-recursive pass.
func (ps *parseState) resolveExpressions() error {
	nSpecies, nTerms, nParams, nConst := len(ps.net.Species), len(ps.net.Terms), len(ps.net.Parameters), len(ps.net.Constants)
	vt := NewVarTable(nSpecies, nTerms, nParams, nConst)

	resolve := func(name string) (int, bool) {
		if i, ok := ps.speciesByID[name]; ok {
			return vt.SpeciesSlot(i), true
		}
		if i, ok := ps.termByID[name]; ok {
			return vt.TermSlot(i), true
		}
		if i, ok := ps.paramByID[name]; ok {
			return vt.ParamSlot(i), true
		}
		if i, ok := ps.constByID[name]; ok {
			return vt.ConstSlot(i), true
		}
		for name2, hv := range map[string]HydVar{"D": HydD, "Q": HydQ, "U": HydU, "Re": HydRe, "Us": HydUs, "Ff": HydFf, "Av": HydAv, "R": HydR} {
			if strings.EqualFold(name, name2) {
				return vt.HydSlot(hv), true
			}
		}
		return 0, false
	}

	// A term's expression may not name another term.
	termResolve := func(name string) (int, bool) {
		slot, ok := resolve(name)
		if _, isTerm := vt.IsTerm(slot); ok && isTerm {
			return 0, false
		}
		return slot, ok
	}

	for _, term := range ps.net.Terms {
		src, ok := ps.termSrc[term.ID]
		if !ok {
			continue
		}
		e, err := mathexpr.Compile(src, termResolve)
		if err != nil {
			return newErr(ErrIllegalMathExpr, term.ID, err)
		}
		term.Expr = e
	}

	for _, sp := range ps.net.Species {
		_, inPipe := ps.pipeExprKind[sp.ID]
		_, inTank := ps.tankExprKind[sp.ID]
		if inPipe {
			e, err := mathexpr.Compile(ps.pipeExprSrc[sp.ID], resolve)
			if err != nil {
				return newErr(ErrIllegalMathExpr, sp.ID, err)
			}
			sp.PipeExprKind, sp.PipeExpr = ps.pipeExprKind[sp.ID], e
		}
		if inTank {
			e, err := mathexpr.Compile(ps.tankExprSrc[sp.ID], resolve)
			if err != nil {
				return newErr(ErrIllegalMathExpr, sp.ID, err)
			}
			sp.TankExprKind, sp.TankExpr = ps.tankExprKind[sp.ID], e
		}
		// A species reacted in a tank is transported by flow (bulk); one
		// only ever reacted in a pipe's wall zone, never in a tank, is a
		// wall species. Bulk is the zero-value default when neither zone
		// references the species at all.
		if inPipe && !inTank {
			sp.Kind = Wall
		} else {
			sp.Kind = Bulk
		}
	}
	return nil
}
