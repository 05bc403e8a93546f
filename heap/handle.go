package heap

import (
	"runtime"
	"sync/atomic"

	"github.com/wippyai/tracegc/errors"
)

// Ref is a borrow handle: a copyable accessor to a heap object that is only
// valid while the context it was derived from is active. Every dereference
// checks the handle's epoch against the heap's, so a Ref used after its
// context was released or collected fails with errors.KindStaleHandle
// instead of reaching freed state.
//
// The zero Ref is the nil handle.
type Ref[T any] struct {
	h     *Heap
	addr  Addr
	gen   uint32
	epoch uint64
}

// Addr returns the address of the referenced object.
func (r Ref[T]) Addr() Addr {
	return r.addr
}

// IsNil reports whether r is the zero Ref.
func (r Ref[T]) IsNil() bool {
	return r.h == nil
}

// Epoch returns the epoch of the context r was derived from.
func (r Ref[T]) Epoch() uint64 {
	return r.epoch
}

// Valid reports whether r can be dereferenced.
func (r Ref[T]) Valid() bool {
	_, err := r.resolve(errors.PhaseAccess)
	return err == nil
}

// Load returns a copy of the referenced value.
func (r Ref[T]) Load() (T, error) {
	p, err := r.resolve(errors.PhaseAccess)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// MustLoad is like Load but panics on failure.
func (r Ref[T]) MustLoad() T {
	v, err := r.Load()
	if err != nil {
		panic(err)
	}
	return v
}

// UnsafeMut returns a pointer to the referenced value for in-place
// mutation. This is how self-referential and mutually referential
// structures are built: allocate first, then store edges with UnsafeEdge.
//
// The pointer must not be used after the context ends, and any Ptr stored
// through it must refer to an object allocated under the same heap.
func (r Ref[T]) UnsafeMut() (*T, error) {
	return r.resolve(errors.PhaseAccess)
}

func (r Ref[T]) resolve(phase errors.Phase) (*T, error) {
	if r.h == nil {
		return nil, errors.NilHandle(phase, typeName[T]())
	}
	h := r.h
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.Closed(phase)
	}
	if h.active == nil || h.active.epoch != r.epoch {
		return nil, errors.StaleHandle(phase, uint32(r.addr), r.epoch, h.epoch)
	}
	return lookup[T](h, phase, r.addr, r.gen)
}

// lookup fetches the object at addr. Callers must hold h.mu.
func lookup[T any](h *Heap, phase errors.Phase, addr Addr, gen uint32) (*T, error) {
	value, info, ok := h.objects.Get(addr)
	if !ok || !h.objects.Valid(addr, gen) {
		return nil, errors.Dangling(phase, uint32(addr))
	}
	p, ok := value.(*T)
	if !ok {
		got := "unknown"
		if info != nil {
			got = info.name
		}
		return nil, errors.TypeMismatch(phase, uint32(addr), typeName[T](), got)
	}
	return p, nil
}

// Ptr is an owned edge: the form in which one heap object refers to
// another from inside its own storage. It carries no context and is never
// dereferenced directly; Borrow turns it into a Ref under an active
// context.
//
// The zero Ptr is the nil edge. A Ptr is only obtained through Link or
// UnsafeEdge and must be stored at once inside an object allocated on the
// same heap; a Ptr kept anywhere else is not traced and may dangle.
type Ptr[T any] struct {
	addr Addr
	gen  uint32
}

// IsNil reports whether p is the nil edge.
func (p Ptr[T]) IsNil() bool {
	return p.addr == 0
}

// Addr returns the address of the target object.
func (p Ptr[T]) Addr() Addr {
	return p.addr
}

// Trace reports the edge to the collector.
func (p Ptr[T]) Trace(t *Tracer) {
	t.visit(p.addr, p.gen)
}

// Borrow returns a handle to the target object scoped to ctx.
func (p Ptr[T]) Borrow(ctx *Context) (Ref[T], error) {
	if p.addr == 0 {
		return Ref[T]{}, errors.NilHandle(errors.PhaseAccess, typeName[T]())
	}
	if ctx == nil {
		return Ref[T]{}, errors.InvalidInput(errors.PhaseAccess, "nil context")
	}
	h := ctx.h
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.check(errors.PhaseAccess); err != nil {
		return Ref[T]{}, err
	}
	if _, err := lookup[T](h, errors.PhaseAccess, p.addr, p.gen); err != nil {
		return Ref[T]{}, err
	}
	return Ref[T]{h: h, addr: p.addr, gen: p.gen, epoch: ctx.epoch}, nil
}

// Root pins a heap object against collection independently of any
// context. A Root stays valid across collections and can be borrowed under
// any later context of the same heap. Release unpins it; a Root that
// becomes unreachable without being released is unpinned by the Go runtime.
type Root[T any] struct {
	pin     *pin
	cleanup runtime.Cleanup
	gen     uint32
}

type pin struct {
	h        *Heap
	addr     Addr
	released atomic.Bool
}

func (p *pin) release() {
	if p.released.CompareAndSwap(false, true) {
		p.h.unpin(p.addr)
	}
}

// Pin roots the object r refers to. Several roots may pin the same object;
// it stays pinned until all of them are released.
func Pin[T any](r Ref[T]) (*Root[T], error) {
	if r.h == nil {
		return nil, errors.NilHandle(errors.PhaseRoot, typeName[T]())
	}
	h := r.h
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.Closed(errors.PhaseRoot)
	}
	if h.active == nil || h.active.epoch != r.epoch {
		h.mu.Unlock()
		return nil, errors.StaleHandle(errors.PhaseRoot, uint32(r.addr), r.epoch, h.epoch)
	}
	if _, err := lookup[T](h, errors.PhaseRoot, r.addr, r.gen); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	n := h.pin(r.addr)
	h.mu.Unlock()

	h.notify(Event{Type: EventPinned, Addr: r.addr, GoType: typeName[T](), Pins: n})
	return newRoot[T](h, r.addr, r.gen), nil
}

func newRoot[T any](h *Heap, addr Addr, gen uint32) *Root[T] {
	root := &Root[T]{
		pin: &pin{h: h, addr: addr},
		gen: gen,
	}
	root.cleanup = runtime.AddCleanup(root, func(p *pin) {
		p.release()
	}, root.pin)
	return root
}

// Addr returns the address of the pinned object.
func (r *Root[T]) Addr() Addr {
	return r.pin.addr
}

// Released reports whether Release has been called.
func (r *Root[T]) Released() bool {
	return r.pin.released.Load()
}

// Release unpins the object. Release is idempotent.
func (r *Root[T]) Release() {
	r.cleanup.Stop()
	r.pin.release()
}

// Clone returns a second, independently releasable root for the same
// object. It does not need an active context.
func (r *Root[T]) Clone() (*Root[T], error) {
	h := r.pin.h
	h.mu.Lock()
	if r.pin.released.Load() {
		h.mu.Unlock()
		return nil, errors.Released(uint32(r.pin.addr))
	}
	if h.closed {
		h.mu.Unlock()
		return nil, errors.Closed(errors.PhaseRoot)
	}
	n := h.pin(r.pin.addr)
	h.mu.Unlock()

	h.notify(Event{Type: EventPinned, Addr: r.pin.addr, GoType: typeName[T](), Pins: n})
	return newRoot[T](h, r.pin.addr, r.gen), nil
}

// Borrow derives a handle to the pinned object scoped to ctx.
func (r *Root[T]) Borrow(ctx *Context) (Ref[T], error) {
	if r.pin.released.Load() {
		return Ref[T]{}, errors.Released(uint32(r.pin.addr))
	}
	if ctx == nil {
		return Ref[T]{}, errors.InvalidInput(errors.PhaseRoot, "nil context")
	}
	if ctx.h != r.pin.h {
		return Ref[T]{}, errors.ForeignHeap(errors.PhaseRoot, uint32(r.pin.addr))
	}
	h := ctx.h
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.check(errors.PhaseRoot); err != nil {
		return Ref[T]{}, err
	}
	if _, err := lookup[T](h, errors.PhaseRoot, r.pin.addr, r.gen); err != nil {
		return Ref[T]{}, err
	}
	return Ref[T]{h: h, addr: r.pin.addr, gen: r.gen, epoch: ctx.epoch}, nil
}

// MustBorrow is like Borrow but panics on failure.
func (r *Root[T]) MustBorrow(ctx *Context) Ref[T] {
	ref, err := r.Borrow(ctx)
	if err != nil {
		panic(err)
	}
	return ref
}
