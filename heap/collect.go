package heap

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tracegc/heap/internal/arena"
)

type freedObject = arena.Freed[*typeInfo]

// collect runs one mark-and-sweep cycle. Callers must hold h.mu.
//
// Roots are marked up front; the mark phase then pops objects off an
// explicit stack and traces them. The tracer only pushes addresses it marks
// for the first time, so each reachable object is traced exactly once and
// cyclic graphs terminate. The sweep frees every unmarked slot and clears
// the mark of every survivor for the next cycle.
func (h *Heap) collect() (CollectStats, []freedObject) {
	start := time.Now()
	h.cycles++

	t := &Tracer{
		objects: h.objects,
		log:     h.log,
		stack:   make([]Addr, 0, len(h.pins)),
	}
	for addr := range h.pins {
		t.push(addr)
	}
	t.drain()

	freed := h.objects.Sweep()
	var freedBytes uint64
	for _, f := range freed {
		freedBytes += uint64(f.Size)
	}

	return CollectStats{
		Cycle:      h.cycles,
		Roots:      len(h.pins),
		Marked:     t.marked,
		Edges:      t.edges,
		Dangling:   t.dangling,
		Freed:      len(freed),
		FreedBytes: freedBytes,
		Live:       h.objects.Len(),
		Duration:   time.Since(start),
	}, freed
}

// push marks addr and schedules it for tracing unless already marked.
func (t *Tracer) push(addr Addr) {
	if t.objects.Mark(addr) {
		return
	}
	t.marked++
	t.stack = append(t.stack, addr)
}

func (t *Tracer) drain() {
	for len(t.stack) > 0 {
		addr := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]

		value, info, ok := t.objects.Get(addr)
		if !ok || info == nil || info.trace == nil {
			continue
		}
		info.trace(value, t)
	}
}

// visit is called for every edge reported by a trace function.
func (t *Tracer) visit(addr Addr, gen uint32) {
	if addr == 0 {
		return
	}
	t.edges++
	if !t.objects.Valid(addr, gen) {
		t.dangling++
		t.log.Warn("dangling edge skipped",
			zap.Uint32("addr", uint32(addr)),
			zap.Uint32("gen", gen))
		return
	}
	t.push(addr)
}
