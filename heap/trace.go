package heap

import (
	"go.uber.org/zap"

	"github.com/wippyai/tracegc/heap/internal/arena"
)

// Traceable is implemented by heap values that hold edges to other heap
// objects. Trace must report every Ptr the value holds, directly or through
// nested fields; an unreported edge lets the collector free a live object.
//
// Trace runs during collection with the heap locked and must not call
// back into the heap.
type Traceable interface {
	Trace(t *Tracer)
}

// Tracer is passed to Trace during the mark phase.
type Tracer struct {
	objects  *arena.Arena[*typeInfo]
	log      *zap.Logger
	stack    []Addr
	marked   int
	edges    int
	dangling int
}

type traceFunc func(value any, t *Tracer)

// TraceSlice traces every element of items.
func TraceSlice[E Traceable](t *Tracer, items []E) {
	for _, item := range items {
		item.Trace(t)
	}
}

// TraceMap traces every value of m.
func TraceMap[K comparable, V Traceable](t *Tracer, m map[K]V) {
	for _, v := range m {
		v.Trace(t)
	}
}
