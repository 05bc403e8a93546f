// Package heap implements a tracing, stop-the-world, non-moving
// mark-and-sweep collector over an arena of Go values.
//
// # Handles
//
// Three handle types control where a reference to a heap object may live:
//
//	Ref[T]   - borrow handle, valid while its Context is active
//	Root[T]  - pins an object; survives contexts and collections
//	Ptr[T]   - owned edge stored inside another heap object
//
// # Contexts
//
// A Context is the exclusive ticket for allocation and collection:
//
//	ctx, err := h.Acquire() // errors.KindBusy if one is active
//	a := heap.MustAllocate(ctx, Node{Value: 1})
//	root, _ := heap.Pin(a)
//	ctx.Collect() // ends ctx; a is now stale
//
//	ctx = h.MustAcquire()
//	a = root.MustBorrow(ctx)
//
// Every Ref records the epoch of its context. Dereferencing a Ref whose
// context has ended fails with errors.KindStaleHandle.
//
// # Edges
//
// Heap values refer to each other through Ptr fields, created with Link
// inside Build, or with UnsafeEdge followed by an immediate store through
// UnsafeMut:
//
//	b := heap.MustAllocate(ctx, Node{Value: 2})
//	a, err := heap.Build(ctx, func(bld *heap.Builder) Node {
//	    return Node{Value: 1, Next: heap.Link(bld, b)}
//	})
//
// # Tracing
//
// A type implements Traceable to report its edges:
//
//	func (n Node) Trace(t *heap.Tracer) {
//	    n.Next.Trace(t)
//	}
//
// Types that do not implement it are walked by reflection; types holding no
// edges at all are never traced.
//
// # Roots
//
// Roots are counted per address: pinning the same object twice keeps it
// pinned until both roots are released.
package heap
