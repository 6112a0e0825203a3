package msx

// A segList is a doubly linked chain of Lagrangian water segments. Rather
// than allocating each segment as its own heap object linked by pointers,
// every segment lives in one arena slice shared by the whole network and
// is addressed by a 32-bit slot index; a free list recycles the slots of
// segments that drain or are popped, so steady-state simulations stop
// allocating once the arena has grown to its working size. Segments are
// ordered downstream (head) to upstream (tail).
type segment struct {
	v          float64   // segment volume
	c          []float64 // concentration, one entry per species
	prev, next int32     // arena slot, -1 if none
}

const segNil int32 = -1

// segPool is the shared arena backing every link's and tank's segList.
type segPool struct {
	arena    []segment
	free     int32 // head of the free list, segNil if empty
	nSpecies int
}

func newSegPool(nSpecies int) *segPool {
	return &segPool{free: segNil, nSpecies: nSpecies}
}

// alloc returns a fresh segment slot with a zeroed concentration vector.
func (p *segPool) alloc() int32 {
	if p.free != segNil {
		idx := p.free
		s := &p.arena[idx]
		p.free = s.next
		s.prev, s.next = segNil, segNil
		for i := range s.c {
			s.c[i] = 0
		}
		return idx
	}
	p.arena = append(p.arena, segment{c: make([]float64, p.nSpecies), prev: segNil, next: segNil})
	return int32(len(p.arena) - 1)
}

// release returns slot idx to the free list.
func (p *segPool) release(idx int32) {
	p.arena[idx].next = p.free
	p.arena[idx].prev = segNil
	p.free = idx
}

func (p *segPool) get(idx int32) *segment { return &p.arena[idx] }

// segList is one pipe's or tank's chain of segments, ordered from
// upstream (tail) to downstream (head): the head segment is the next one
// to discharge at the downstream node.
type segList struct {
	pool       *segPool
	head, tail int32
	n          int
}

func newSegList(pool *segPool) *segList {
	return &segList{pool: pool, head: segNil, tail: segNil}
}

func (l *segList) Empty() bool { return l.head == segNil }
func (l *segList) Len() int    { return l.n }

// Head returns the downstream-most segment, or nil if empty.
func (l *segList) Head() *segment {
	if l.head == segNil {
		return nil
	}
	return l.pool.get(l.head)
}

// Tail returns the upstream-most segment, or nil if empty.
func (l *segList) Tail() *segment {
	if l.tail == segNil {
		return nil
	}
	return l.pool.get(l.tail)
}

// PushTail adds a new upstream segment of volume v and concentration c
// (copied), used when water of a new quality enters the pipe.
func (l *segList) PushTail(v float64, c []float64) {
	idx := l.pool.alloc()
	s := l.pool.get(idx)
	s.v = v
	copy(s.c, c)
	s.prev = l.tail
	s.next = segNil
	if l.tail != segNil {
		l.pool.get(l.tail).next = idx
	}
	l.tail = idx
	if l.head == segNil {
		l.head = idx
	}
	l.n++
}

// PopHead removes and returns the downstream-most segment's volume and
// concentration, releasing its slot back to the pool.
func (l *segList) PopHead() (v float64, c []float64) {
	idx := l.head
	s := l.pool.get(idx)
	v, c = s.v, append([]float64(nil), s.c...)
	l.head = s.next
	if l.head != segNil {
		l.pool.get(l.head).prev = segNil
	} else {
		l.tail = segNil
	}
	l.pool.release(idx)
	l.n--
	return v, c
}

// PopTail removes and returns the upstream-most segment's volume and
// concentration, releasing its slot back to the pool. Used by the LIFO
// tank mixing model, whose most recently stored parcel is the next to
// leave.
func (l *segList) PopTail() (v float64, c []float64) {
	idx := l.tail
	s := l.pool.get(idx)
	v, c = s.v, append([]float64(nil), s.c...)
	l.tail = s.prev
	if l.tail != segNil {
		l.pool.get(l.tail).next = segNil
	} else {
		l.head = segNil
	}
	l.pool.release(idx)
	l.n--
	return v, c
}

// ShrinkHead reduces the head segment's volume by dv (water discharged
// downstream); if it drains completely the segment is released and the
// next one becomes head.
func (l *segList) ShrinkHead(dv float64) {
	for dv > 0 && l.head != segNil {
		s := l.pool.get(l.head)
		if s.v > dv {
			s.v -= dv
			return
		}
		dv -= s.v
		idx := l.head
		l.head = s.next
		if l.head != segNil {
			l.pool.get(l.head).prev = segNil
		} else {
			l.tail = segNil
		}
		l.pool.release(idx)
		l.n--
	}
}

// GrowTail adds volume dv to the tail segment if its concentration
// matches c within atol (one absolute tolerance per species), otherwise
// pushes a new tail segment (spec.md §4.5's segment-merge rule: merge if
// every species' concentration differs by less than that species' own
// aTol_m).
func (l *segList) GrowTail(dv float64, c []float64, atol []float64) {
	if l.tail != segNil {
		s := l.pool.get(l.tail)
		if sameQuality(s.c, c, atol) {
			s.v += dv
			return
		}
	}
	l.PushTail(dv, c)
}

func sameQuality(a, b []float64, atol []float64) bool {
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > atol[i] {
			return false
		}
	}
	return true
}

// TotalVolume sums every segment's volume from head to tail.
func (l *segList) TotalVolume() float64 {
	total := 0.0
	for idx := l.head; idx != segNil; idx = l.pool.get(idx).next {
		total += l.pool.get(idx).v
	}
	return total
}

// Walk calls fn for every segment from head (downstream) to tail
// (upstream), stopping early if fn returns false.
func (l *segList) Walk(fn func(v float64, c []float64) bool) {
	for idx := l.head; idx != segNil; idx = l.pool.get(idx).next {
		s := l.pool.get(idx)
		if !fn(s.v, s.c) {
			return
		}
	}
}
