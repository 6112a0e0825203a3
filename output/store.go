// Package output writes and reads the scratch binary results file a
// project accumulates one reporting period at a time and later copies to
// a durable location (the saveOutFile operation). The layout mirrors the
// teacher's own binary results writer: a fixed header followed by
// homogeneous fixed-size records, so the report writer can compute any
// record's file offset directly instead of scanning.
package output

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const magicNumber uint32 = 0x4D53584F // "MSXO"

// Header is written once, after the magic number and ahead of the species
// ID table and all period records.
type Header struct {
	NNodes   int32
	NLinks   int32
	NSpecies int32
}

// Store writes periods to an underlying io.Writer in the order species
// IDs were registered.
type Store struct {
	w          io.Writer
	header     Header
	speciesIDs []string
	nPeriods   int32
}

// NewStore writes the header and species ID table and returns a Store
// ready to accept periods via WritePeriod.
func NewStore(w io.Writer, nNodes, nLinks int, speciesIDs []string) (*Store, error) {
	s := &Store{w: w, header: Header{int32(nNodes), int32(nLinks), int32(len(speciesIDs))}, speciesIDs: speciesIDs}
	if err := binary.Write(w, binary.LittleEndian, magicNumber); err != nil {
		return nil, errors.Wrap(err, "output: writing magic number")
	}
	if err := binary.Write(w, binary.LittleEndian, s.header); err != nil {
		return nil, errors.Wrap(err, "output: writing header")
	}
	for _, id := range speciesIDs {
		if err := writeString(w, id); err != nil {
			return nil, errors.Wrap(err, "output: writing species id")
		}
	}
	return s, nil
}

// WritePeriod appends one reporting period: for each species in ID
// order, every node's concentration then every link's, as 4-byte floats
// (spec.md §6's binary output file layout).
//
// nodeC and linkC are both indexed [speciesIdx][entityIdx].
func (s *Store) WritePeriod(nodeC, linkC [][]float64) error {
	for si := range s.speciesIDs {
		if err := writeFloats(s.w, nodeC[si]); err != nil {
			return errors.Wrap(err, "output: writing node concentrations")
		}
		if err := writeFloats(s.w, linkC[si]); err != nil {
			return errors.Wrap(err, "output: writing link concentrations")
		}
	}
	s.nPeriods++
	return nil
}

// NPeriods returns the number of periods written so far. The report
// writer needs this figure (spec.md P3), which is why it is tracked here
// rather than requiring a second pass over the file.
func (s *Store) NPeriods() int32 { return s.nPeriods }

func writeFloats(w io.Writer, vals []float64) error {
	buf := make([]float32, len(vals))
	for i, v := range vals {
		buf[i] = float32(v)
	}
	return binary.Write(w, binary.LittleEndian, buf)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Reader decodes a results file written by Store.
type Reader struct {
	r          io.Reader
	Header     Header
	SpeciesIDs []string
}

// ErrBadMagic is returned when the stream does not begin with the
// expected magic number.
var ErrBadMagic = errors.New("output: not a recognized results file")

// NewReader reads the header and species ID table.
func NewReader(r io.Reader) (*Reader, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "output: reading magic number")
	}
	if magic != magicNumber {
		return nil, ErrBadMagic
	}
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "output: reading header")
	}
	ids := make([]string, h.NSpecies)
	for i := range ids {
		id, err := readString(r)
		if err != nil {
			return nil, errors.Wrap(err, "output: reading species id")
		}
		ids[i] = id
	}
	return &Reader{r: r, Header: h, SpeciesIDs: ids}, nil
}

// NextPeriod decodes one period: [species][node-then-link] concentration.
func (rd *Reader) NextPeriod() ([][]float64, error) {
	out := make([][]float64, len(rd.SpeciesIDs))
	for si := range out {
		row := make([]float64, int(rd.Header.NNodes)+int(rd.Header.NLinks))
		buf := make([]float32, len(row))
		if err := binary.Read(rd.r, binary.LittleEndian, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			row[i] = float64(v)
		}
		out[si] = row
	}
	return out, nil
}

func readString(r io.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
