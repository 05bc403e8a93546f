package arena

// Addr identifies a slot in an Arena.
// Addr 0 is reserved and always invalid.
type Addr uint32

// Arena is a slot table with mark bits and a free list.
// Freed slots are reused; every free bumps the slot generation so that
// references taken before the free can be told apart from the new occupant.
//
// Arena is not safe for concurrent use; the owning heap serializes access.
type Arena[M any] struct {
	slots    []slot[M]
	freeList []Addr
	live     int
	bytes    uint64
}

type slot[M any] struct {
	value  any
	meta   M
	size   uintptr
	gen    uint32
	marked bool
	valid  bool
}

// New creates an arena with room for capacity slots before growing.
func New[M any](capacity int) *Arena[M] {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena[M]{
		slots:    make([]slot[M], 0, capacity),
		freeList: make([]Addr, 0, 16),
	}
}

// Insert stores a value unmarked and returns its address.
func (a *Arena[M]) Insert(value any, meta M, size uintptr) Addr {
	a.live++
	a.bytes += uint64(size)

	if len(a.freeList) > 0 {
		addr := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		s := &a.slots[addr-1]
		s.value = value
		s.meta = meta
		s.size = size
		s.marked = false
		s.valid = true
		return addr
	}

	a.slots = append(a.slots, slot[M]{
		value: value,
		meta:  meta,
		size:  size,
		valid: true,
	})
	return Addr(len(a.slots))
}

func (a *Arena[M]) slot(addr Addr) *slot[M] {
	if addr == 0 || int(addr) > len(a.slots) {
		return nil
	}
	s := &a.slots[addr-1]
	if !s.valid {
		return nil
	}
	return s
}

// Get retrieves the value and metadata stored at addr.
func (a *Arena[M]) Get(addr Addr) (any, M, bool) {
	s := a.slot(addr)
	if s == nil {
		var zero M
		return nil, zero, false
	}
	return s.value, s.meta, true
}

// Gen returns the current generation of a live slot.
func (a *Arena[M]) Gen(addr Addr) (uint32, bool) {
	s := a.slot(addr)
	if s == nil {
		return 0, false
	}
	return s.gen, true
}

// Valid reports whether addr is live and still holds generation gen.
func (a *Arena[M]) Valid(addr Addr, gen uint32) bool {
	s := a.slot(addr)
	return s != nil && s.gen == gen
}

// Mark sets the mark bit of addr and reports whether it was already set.
// Invalid addresses report true so callers never descend into them.
func (a *Arena[M]) Mark(addr Addr) bool {
	s := a.slot(addr)
	if s == nil {
		return true
	}
	was := s.marked
	s.marked = true
	return was
}

// Marked reports the mark bit of addr.
func (a *Arena[M]) Marked(addr Addr) bool {
	s := a.slot(addr)
	return s != nil && s.marked
}

// Free releases the slot at addr and returns the value it held.
func (a *Arena[M]) Free(addr Addr) (any, bool) {
	s := a.slot(addr)
	if s == nil {
		return nil, false
	}
	value := s.value
	a.release(addr, s)
	return value, true
}

func (a *Arena[M]) release(addr Addr, s *slot[M]) {
	var zero M
	a.live--
	a.bytes -= uint64(s.size)
	s.value = nil
	s.meta = zero
	s.size = 0
	s.marked = false
	s.valid = false
	s.gen++
	a.freeList = append(a.freeList, addr)
}

// Freed describes a slot released by Sweep.
type Freed[M any] struct {
	Value any
	Meta  M
	Size  uintptr
	Addr  Addr
}

// Sweep frees every unmarked slot and clears the mark bit of every survivor.
// The freed slots are returned in address order.
func (a *Arena[M]) Sweep() []Freed[M] {
	var freed []Freed[M]
	for i := range a.slots {
		s := &a.slots[i]
		if !s.valid {
			continue
		}
		if s.marked {
			s.marked = false
			continue
		}
		addr := Addr(i + 1)
		freed = append(freed, Freed[M]{
			Value: s.value,
			Meta:  s.meta,
			Size:  s.size,
			Addr:  addr,
		})
		a.release(addr, s)
	}
	return freed
}

// Reset frees every slot, as a sweep with nothing marked would.
func (a *Arena[M]) Reset() []Freed[M] {
	for i := range a.slots {
		a.slots[i].marked = false
	}
	return a.Sweep()
}

// Len returns the number of live slots.
func (a *Arena[M]) Len() int {
	return a.live
}

// Bytes returns the aggregate size of live slots.
func (a *Arena[M]) Bytes() uint64 {
	return a.bytes
}

// Each iterates over all live slots in address order.
func (a *Arena[M]) Each(fn func(Addr, any, M) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.valid {
			if !fn(Addr(i+1), s.value, s.meta) {
				break
			}
		}
	}
}
