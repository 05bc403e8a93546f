package heap

import (
	"github.com/wippyai/tracegc/errors"
)

// Allocate stores value on the heap and returns a handle scoped to ctx.
// The new object is unmarked and unpinned; unless it is rooted or reachable
// from a root, the next collection frees it.
//
// The only failure is using a context that has ended or a closed heap.
func Allocate[T any](ctx *Context, value T) (Ref[T], error) {
	if ctx == nil {
		return Ref[T]{}, errors.InvalidInput(errors.PhaseAllocate, "nil context")
	}
	info := infoFor[T]()
	p := new(T)
	*p = value
	size := sizeOf(p, info)

	h := ctx.h
	h.mu.Lock()
	if err := ctx.check(errors.PhaseAllocate); err != nil {
		h.mu.Unlock()
		return Ref[T]{}, err
	}
	addr := h.objects.Insert(p, info, size)
	gen, _ := h.objects.Gen(addr)
	h.mu.Unlock()

	h.notify(Event{Type: EventAllocated, Addr: addr, GoType: info.name, Value: p})
	return Ref[T]{h: h, addr: addr, gen: gen, epoch: ctx.epoch}, nil
}

// MustAllocate is like Allocate but panics on failure.
func MustAllocate[T any](ctx *Context, value T) Ref[T] {
	r, err := Allocate(ctx, value)
	if err != nil {
		panic(err)
	}
	return r
}

// Builder resolves borrow handles into owned edges while a value is being
// constructed by Build. It is only usable inside the Build callback.
type Builder struct {
	ctx   *Context
	err   error
	links int
}

// Build constructs a value from plain fields and borrow handles and
// allocates it under ctx. Handles are turned into edges with Link inside
// fn; the edges land in the new object before any collection can run,
// which is the precondition UnsafeEdge leaves to the caller.
func Build[T any](ctx *Context, fn func(b *Builder) T) (Ref[T], error) {
	if ctx == nil {
		return Ref[T]{}, errors.InvalidInput(errors.PhaseAllocate, "nil context")
	}
	if fn == nil {
		return Ref[T]{}, errors.InvalidInput(errors.PhaseAllocate, "nil build function")
	}

	b := &Builder{ctx: ctx}
	value := fn(b)
	b.ctx = nil
	if b.err != nil {
		return Ref[T]{}, b.err
	}
	return Allocate(ctx, value)
}

// Link converts r into an edge for the value under construction. A zero
// Ref yields the nil edge. The first failure is remembered and returned by
// Build; later links are skipped.
func Link[T any](b *Builder, r Ref[T]) Ptr[T] {
	if b.err != nil {
		return Ptr[T]{}
	}
	if b.ctx == nil {
		b.err = errors.InvalidInput(errors.PhaseEmbed, "link outside of build")
		return Ptr[T]{}
	}
	if r.h == nil {
		return Ptr[T]{}
	}
	if r.h != b.ctx.h {
		b.err = errors.ForeignHeap(errors.PhaseEmbed, uint32(r.addr))
		return Ptr[T]{}
	}
	p, err := UnsafeEdge(r)
	if err != nil {
		b.err = err
		return Ptr[T]{}
	}
	b.links++
	return p
}

// Links returns how many edges the builder has produced.
func (b *Builder) Links() int {
	return b.links
}

// UnsafeEdge converts a borrow handle into an owned edge.
//
// The result must be stored immediately inside an object allocated under
// the same context, typically through UnsafeMut. An edge kept anywhere else
// is not traced: its target may be freed by the next collection, and the
// collector does not detect edges that outlive their targets other than by
// skipping them.
func UnsafeEdge[T any](r Ref[T]) (Ptr[T], error) {
	if _, err := r.resolve(errors.PhaseEmbed); err != nil {
		return Ptr[T]{}, err
	}
	return Ptr[T]{addr: r.addr, gen: r.gen}, nil
}
