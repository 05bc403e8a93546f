// Package tracegc provides an embeddable tracing garbage collector for Go
// programs that need to manage an object graph with explicit lifetimes.
//
// Objects live in a heap arena and are reclaimed by a stop-the-world,
// non-moving mark-and-sweep collector. Access is gated by a context token:
// allocation and collection require the single active context, and every
// borrow handle is stamped with the epoch of the context it came from, so a
// handle used after its context ended is rejected instead of reading freed
// state.
//
// # Architecture Overview
//
//	tracegc/           Root package with Dropper and Sizer lifecycle hooks
//	├── heap/          Heap, Context, Ref, Root, Ptr, Tracer, collector
//	├── errors/        Structured error types for debugging
//	├── examples/      Minimal program building a two-object graph
//	└── cmd/gcrun/     Driver with a small command language and TUI
//
// # Quick Start
//
//	h := heap.New()
//	defer h.Close()
//
//	ctx := h.MustAcquire()
//	b := heap.MustAllocate(ctx, B{I: 42})
//	a, err := heap.Build(ctx, func(bld *heap.Builder) A {
//	    return A{B: heap.Link(bld, b)}
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	root, _ := heap.Pin(a)
//	defer root.Release()
//
//	ctx.Collect() // b survives, reachable through the rooted a
//
//	ctx = h.MustAcquire()
//	ref, _ := root.Borrow(ctx)
//	av := ref.MustLoad()
//	bref, _ := av.B.Borrow(ctx)
//	fmt.Println(bref.MustLoad().I) // 42
//
// # Tracing
//
// Every heap value must report its outgoing edges. Types implement
// heap.Traceable by calling Trace on each heap.Ptr field; types that do not
// are traced through a reflection-derived walker.
//
// # Thread Safety
//
// A Heap is single-threaded by contract. Only one Context may be active at a
// time and Acquire fails immediately with errors.KindBusy instead of waiting.
package tracegc
