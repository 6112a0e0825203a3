package msx

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/watermodel/msx/chem"
	"github.com/watermodel/msx/hydraulics"
	"github.com/watermodel/msx/output"
)

// Project is one opened chemistry-file/hydraulics-file pairing, holding
// every resource scoped to init->close (spec.md §5): the segment memory
// pool, the compiled expression trees reachable from Network, and the
// hydraulics/output/report file handles. No resource here is shared
// across Project values.
type Project struct {
	log *logrus.Entry

	Net     *Network
	Opts    *Options
	engine  *chem.Engine
	segPool *segPool

	hydFile   *os.File
	hydReader *hydraulics.Reader
	hydPeriod *hydraulics.Period

	outFile  *os.File
	store    *output.Store
	rptPath  string

	opened      bool
	initialized bool
	poisoned    bool

	Htime, Qtime, Rtime, Dur float64
	Rstep                    float64
}

// Open parses the chemistry input file against the topology recorded in
// the hydraulics file and builds the Network and reaction Engine. It
// does not yet allocate simulation state; call Init before Step.
func Open(hydraulicsFile, chemistryFile, reportFile string) (*Project, error) {
	p := &Project{log: logrus.WithField("component", "msx"), rptPath: reportFile}

	hf, err := os.Open(hydraulicsFile)
	if err != nil {
		return nil, newErr(ErrOpenHydFile, hydraulicsFile, err)
	}
	hr, err := hydraulics.NewReader(hf)
	if err != nil {
		hf.Close()
		return nil, newErr(ErrOpenHydFile, hydraulicsFile, err)
	}
	p.hydFile, p.hydReader = hf, hr
	p.Net = networkFromTopology(hr.Topology, hr.Header)

	cf, err := os.Open(chemistryFile)
	if err != nil {
		p.Close()
		return nil, newErr(ErrOpenMSXFile, chemistryFile, err)
	}
	defer cf.Close()
	opts, err := ParseChemistry(cf, p.Net)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Opts = opts
	p.Rstep = float64(hr.Header.ReportStep)
	p.Rtime = float64(hr.Header.ReportStart)
	p.Dur = float64(hr.Header.Duration)

	specs := make([]chem.SpeciesSpec, len(p.Net.Species))
	for i, sp := range p.Net.Species {
		specs[i] = chem.SpeciesSpec{
			Bulk:     sp.Kind == Bulk,
			PipeKind: chem.Kind(sp.PipeExprKind),
			TankKind: chem.Kind(sp.TankExprKind),
			PipeExpr: sp.PipeExpr,
			TankExpr: sp.TankExpr,
		}
	}
	p.engine = chem.NewEngine(specs, opts.Solver, opts.Coupling)

	p.opened = true
	p.log.Infof("opened project: %d nodes, %d links, %d species", p.Net.NumNodes(), p.Net.NumLinks(), p.Net.NumSpecies())
	return p, nil
}

func networkFromTopology(t hydraulics.Topology, h hydraulics.Header) *Network {
	net := &Network{}
	net.Nodes = make([]*Node, len(t.NodeIDs))
	for i, id := range t.NodeIDs {
		net.Nodes[i] = &Node{ID: id, Index: i, TankIdx: -1}
	}
	net.Links = make([]*Link, len(t.LinkIDs))
	for i, id := range t.LinkIDs {
		net.Links[i] = &Link{
			ID: id, Index: i,
			N1: int(t.LinkFrom[i]), N2: int(t.LinkTo[i]),
			Diameter: t.Diameter[i], Length: t.Length[i], Roughness: t.Roughness[i],
		}
	}
	// ParseChemistry resolves node and link IDs through these tables.
	net.buildIndexes()
	return net
}

// SolveH validates that a hydraulics solution is attached. Running the
// hydraulic solver itself is out of scope (spec.md §1): this project
// only ever consumes a hydraulics file some other component produced.
func (p *Project) SolveH() error {
	if p.hydReader == nil {
		return newErr(ErrOpenHydFile, "no hydraulics file attached", nil)
	}
	return nil
}

// UseHydFile attaches an externally computed hydraulics solution,
// replacing any file opened by Open.
func (p *Project) UseHydFile(path string) error {
	hf, err := os.Open(path)
	if err != nil {
		return newErr(ErrOpenHydFile, path, err)
	}
	hr, err := hydraulics.NewReader(hf)
	if err != nil {
		hf.Close()
		return newErr(ErrOpenHydFile, path, err)
	}
	if p.hydFile != nil {
		p.hydFile.Close()
	}
	p.hydFile, p.hydReader, p.hydPeriod = hf, hr, nil
	return nil
}

// Init finalizes simulation state: allocates the segment pool at every
// link's and FIFO/LIFO tank's initial volume, and if saveFlag opens the
// output store for writing.
func (p *Project) Init(saveFlag bool) error {
	if !p.opened {
		return newErr(ErrProjectNotOpened, "", nil)
	}
	nSpecies := p.Net.NumSpecies()
	p.segPool = newSegPool(nSpecies)

	for _, l := range p.Net.Links {
		l.Segs = newSegList(p.segPool)
		c := l.InitC
		if c == nil {
			c = make([]float64, nSpecies)
		}
		l.Segs.PushTail(l.Volume(), c)
	}
	for _, tk := range p.Net.Tanks {
		if tk.Mixing == MixFIFO || tk.Mixing == MixLIFO {
			tk.Segs = newSegList(p.segPool)
			tk.Segs.PushTail(tk.V0, tk.C)
		}
	}
	for _, nd := range p.Net.Nodes {
		if nd.C == nil {
			nd.C = make([]float64, nSpecies)
		}
		if nd.C0 == nil {
			nd.C0 = make([]float64, nSpecies)
		}
		// Every Init resets live quality to the initial quality, not just
		// the first: a later SetInitQual only writes C0, and a second
		// Init after a completed run must not leave C wherever the run
		// ended (spec.md §8 P4 run-to-run idempotence).
		copy(nd.C, nd.C0)
	}

	p.Htime, p.Qtime = 0, 0
	p.hydPeriod = nil
	p.poisoned = false

	if saveFlag {
		of, err := os.CreateTemp("", "msx-out-*.bin")
		if err != nil {
			return newErr(ErrOpenOutFile, "", err)
		}
		ids := make([]string, nSpecies)
		for i, sp := range p.Net.Species {
			ids[i] = sp.ID
		}
		st, err := output.NewStore(of, p.Net.NumNodes(), p.Net.NumLinks(), ids)
		if err != nil {
			of.Close()
			return newErr(ErrOpenOutFile, "", err)
		}
		p.outFile, p.store = of, st
	}

	p.initialized = true
	return nil
}

// Step advances the simulation by one quality step, per the time driver
// of spec.md §4.8.
func (p *Project) Step() (t, tleft float64, err error) {
	if !p.initialized {
		return 0, 0, newErr(ErrProjectNotOpened, "", nil)
	}
	if p.poisoned {
		return p.Qtime, p.Dur - p.Qtime, newErr(ErrIntegratorFailed, "project state poisoned by a prior error", nil)
	}

	qstep := p.Opts.Timestep
	p.Qtime += qstep

	if p.hydPeriod == nil || p.Qtime >= p.Htime {
		period, rerr := p.hydReader.Next()
		if rerr != nil && rerr != io.EOF {
			err := newErr(ErrReadHyd, "", rerr)
			p.poison(err)
			return p.Qtime, p.Dur - p.Qtime, err
		}
		if rerr != io.EOF {
			p.hydPeriod = period
			p.Htime = float64(period.Time)
			p.applyPeriod(period)
		}
	}

	if err := p.transportStep(qstep); err != nil {
		p.poison(err)
		return p.Qtime, p.Dur - p.Qtime, err
	}

	if p.store != nil && p.Qtime >= p.Rtime {
		if err := p.reportSnapshot(); err != nil {
			p.poison(err)
			return p.Qtime, p.Dur - p.Qtime, err
		}
		p.Rtime += p.Rstep
	}

	return p.Qtime, p.Dur - p.Qtime, nil
}

// poison marks the project unusable for further Step calls, unless err
// carries a non-fatal taxonomy code (spec.md §7) that leaves project
// state intact.
func (p *Project) poison(err error) {
	if e, ok := err.(*Error); ok && !e.Code.fatal() {
		return
	}
	p.poisoned = true
}

func (p *Project) applyPeriod(period *hydraulics.Period) {
	for i, l := range p.Net.Links {
		l.Q = period.Q[i]
		switch {
		case l.Q > 0:
			l.FlowDir = 1
		case l.Q < 0:
			l.FlowDir = -1
		default:
			l.FlowDir = 0
		}
	}
}

func (p *Project) reportSnapshot() error {
	nSpecies := p.Net.NumSpecies()
	nodeC := make([][]float64, nSpecies)
	linkC := make([][]float64, nSpecies)
	for si := range nodeC {
		nodeC[si] = make([]float64, p.Net.NumNodes())
		for ni, nd := range p.Net.Nodes {
			nodeC[si][ni] = nd.C[si]
		}
		linkC[si] = make([]float64, p.Net.NumLinks())
		for li, l := range p.Net.Links {
			if s := l.Segs.Head(); s != nil {
				linkC[si][li] = s.c[si]
			}
		}
	}
	return p.store.WritePeriod(nodeC, linkC)
}

// SaveOutFile copies the scratch output file accumulated since Init to a
// durable location.
func (p *Project) SaveOutFile(name string) error {
	if p.outFile == nil {
		return newErr(ErrOpenOutFile, "no output file open", nil)
	}
	if _, err := p.outFile.Seek(0, io.SeekStart); err != nil {
		return newErr(ErrOpenOutFile, name, err)
	}
	dst, err := os.Create(name)
	if err != nil {
		return newErr(ErrOpenOutFile, name, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, p.outFile); err != nil {
		return newErr(ErrOpenOutFile, name, err)
	}
	return nil
}

// Report writes the textual summary report to the path given at Open.
func (p *Project) Report() error {
	f, err := os.Create(p.rptPath)
	if err != nil {
		return newErr(ErrOpenRptFile, p.rptPath, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "Water Quality Report\n")
	fmt.Fprintf(f, "%d nodes, %d links, %d species\n", p.Net.NumNodes(), p.Net.NumLinks(), p.Net.NumSpecies())
	if p.store != nil {
		fmt.Fprintf(f, "%d reporting periods\n", p.store.NPeriods())
	}
	return nil
}

// Close releases every resource scoped to this Project.
func (p *Project) Close() error {
	var firstErr error
	if p.hydFile != nil {
		if err := p.hydFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.outFile != nil {
		if err := p.outFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.opened, p.initialized = false, false
	if firstErr != nil {
		return errors.Wrap(firstErr, "msx: close")
	}
	return nil
}
