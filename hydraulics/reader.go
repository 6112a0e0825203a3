// Package hydraulics reads the binary hydraulics file a prior hydraulic
// simulation produced: per-period nodal demand and head, and per-period
// link flow. The reader is strictly sequential and forward-only, the
// same access pattern the teacher's output reader used for its own
// binary results file: each call to Next consumes exactly one period's
// records and never seeks backward, so the time driver can stream
// arbitrarily long hydraulic histories without holding them all in
// memory.
package hydraulics

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const magicNumber uint32 = 0x4D534858 // "MSHX"

// Header is the fixed-size record at the start of a hydraulics file.
type Header struct {
	NNodes      int32
	NLinks      int32
	Duration    int32 // total simulated time, seconds
	ReportStart int32 // seconds
	ReportStep  int32 // seconds
}

// Period is one hydraulic time step's state.
type Period struct {
	Time int32
	D    []float64 // nodal demand, length Header.NNodes
	H    []float64 // nodal head, length Header.NNodes
	Q    []float64 // link flow, length Header.NLinks
}

// Topology is the static network description that precedes the period
// records: node and link IDs and each link's endpoints and physical
// properties. The upstream hydraulic solver (out of scope here) is the
// natural owner of this data, since it already has to resolve the same
// topology to run its own solution; this reader simply expects it
// serialized once, right after the Header, rather than requiring a
// second out-of-band topology file.
type Topology struct {
	NodeIDs   []string
	LinkIDs   []string
	LinkFrom  []int32 // node index
	LinkTo    []int32
	Diameter  []float64
	Length    []float64
	Roughness []float64
}

// ErrBadMagic is returned when the file does not begin with the expected
// magic number.
var ErrBadMagic = errors.New("hydraulics: not a recognized hydraulics file")

// Reader sequentially decodes periods from a hydraulics file.
type Reader struct {
	r        io.Reader
	Header   Header
	Topology Topology
}

// NewReader reads and validates the header and topology block, leaving
// the stream positioned at the first period record.
func NewReader(r io.Reader) (*Reader, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "hydraulics: reading magic number")
	}
	if magic != magicNumber {
		return nil, ErrBadMagic
	}
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "hydraulics: reading header")
	}
	rd := &Reader{r: r, Header: h}
	if err := rd.readTopology(); err != nil {
		return nil, errors.Wrap(err, "hydraulics: reading topology")
	}
	return rd, nil
}

func (rd *Reader) readTopology() error {
	t := &rd.Topology
	var err error
	if t.NodeIDs, err = readStrings(rd.r, int(rd.Header.NNodes)); err != nil {
		return err
	}
	if t.LinkIDs, err = readStrings(rd.r, int(rd.Header.NLinks)); err != nil {
		return err
	}
	t.LinkFrom = make([]int32, rd.Header.NLinks)
	t.LinkTo = make([]int32, rd.Header.NLinks)
	t.Diameter = make([]float64, rd.Header.NLinks)
	t.Length = make([]float64, rd.Header.NLinks)
	t.Roughness = make([]float64, rd.Header.NLinks)
	if err := binary.Read(rd.r, binary.LittleEndian, t.LinkFrom); err != nil {
		return err
	}
	if err := binary.Read(rd.r, binary.LittleEndian, t.LinkTo); err != nil {
		return err
	}
	if err := binary.Read(rd.r, binary.LittleEndian, t.Diameter); err != nil {
		return err
	}
	if err := binary.Read(rd.r, binary.LittleEndian, t.Length); err != nil {
		return err
	}
	return binary.Read(rd.r, binary.LittleEndian, t.Roughness)
}

func readStrings(r io.Reader, n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		var l int32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		out[i] = string(buf)
	}
	return out, nil
}

// Next decodes the next period, returning io.EOF once the stream is
// exhausted. The returned Period is only valid until the next call.
func (rd *Reader) Next() (*Period, error) {
	var t int32
	if err := binary.Read(rd.r, binary.LittleEndian, &t); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "hydraulics: reading period time")
	}
	p := &Period{
		Time: t,
		D:    make([]float64, rd.Header.NNodes),
		H:    make([]float64, rd.Header.NNodes),
		Q:    make([]float64, rd.Header.NLinks),
	}
	for _, buf := range [][]float64{p.D, p.H, p.Q} {
		if err := binary.Read(rd.r, binary.LittleEndian, buf); err != nil {
			return nil, errors.Wrap(err, "hydraulics: reading period record")
		}
	}
	return p, nil
}
