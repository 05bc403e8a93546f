package heap

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/tracegc"
	"github.com/wippyai/tracegc/heap/internal/arena"
)

// Addr identifies a heap object. Addr 0 is the nil address.
type Addr = arena.Addr

// Heap owns every allocated object, their mark flags and the set of pinned
// roots. It is the only place lifetime decisions are made.
type Heap struct {
	objects   *arena.Arena[*typeInfo]
	pins      map[Addr]int
	active    *Context
	log       *zap.Logger
	observers []Observer
	pinTotal  int
	epoch     uint64
	cycles    uint64
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// Stats is a point-in-time summary of heap occupancy.
type Stats struct {
	Objects     int
	Roots       int
	Pins        int
	Bytes       uint64
	Collections uint64
	Epoch       uint64
	Active      bool
	Closed      bool
}

// New creates an empty heap.
func New(opts ...Option) *Heap {
	cfg := newConfig(opts)
	return &Heap{
		objects:   arena.New[*typeInfo](cfg.capacity),
		pins:      make(map[Addr]int),
		log:       cfg.logger,
		observers: cfg.observers,
	}
}

var (
	defaultHeap     *Heap
	defaultHeapOnce sync.Once
)

// Default returns the process-wide heap, creating it on first use.
func Default() *Heap {
	defaultHeapOnce.Do(func() {
		defaultHeap = New()
	})
	return defaultHeap
}

// Stats returns counts describing the heap. It has no side effects.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Objects:     h.objects.Len(),
		Roots:       len(h.pins),
		Pins:        h.pinTotal,
		Bytes:       h.objects.Bytes(),
		Collections: h.cycles,
		Epoch:       h.epoch,
		Active:      h.active != nil,
		Closed:      h.closed,
	}
}

// Close frees every object and invalidates every handle.
// Acquire fails with errors.KindClosed afterwards. Close is idempotent.
func (h *Heap) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.active = nil
	freed := h.objects.Reset()
	clear(h.pins)
	h.pinTotal = 0
	h.mu.Unlock()

	h.log.Debug("heap closed", zap.Int("freed", len(freed)))
	h.finalize(freed)
	return nil
}

// pin increments the pin count of addr.
func (h *Heap) pin(addr Addr) int {
	h.pins[addr]++
	h.pinTotal++
	return h.pins[addr]
}

// unpin decrements the pin count of addr, dropping it from the root set
// when the count reaches zero.
func (h *Heap) unpin(addr Addr) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	n, ok := h.pins[addr]
	if !ok {
		h.mu.Unlock()
		return
	}
	n--
	h.pinTotal--
	if n == 0 {
		delete(h.pins, addr)
	} else {
		h.pins[addr] = n
	}
	h.mu.Unlock()

	h.notify(Event{Type: EventUnpinned, Addr: addr, Pins: n})
}

// pinCount returns how many live roots pin addr.
func (h *Heap) pinCount(addr Addr) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pins[addr]
}

// finalize runs Dropper hooks and publishes free events. It must be called
// without holding h.mu.
func (h *Heap) finalize(freed []arena.Freed[*typeInfo]) {
	if len(freed) == 0 {
		return
	}
	events := make([]Event, 0, len(freed))
	for _, f := range freed {
		if d, ok := f.Value.(tracegc.Dropper); ok {
			h.drop(f.Addr, d)
		}
		var goType string
		if f.Meta != nil {
			goType = f.Meta.name
		}
		events = append(events, Event{
			Type:   EventFreed,
			Addr:   f.Addr,
			GoType: goType,
			Value:  f.Value,
		})
	}
	h.notify(events...)
}

func (h *Heap) drop(addr Addr, d tracegc.Dropper) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("drop panicked",
				zap.Uint32("addr", uint32(addr)),
				zap.Any("panic", r))
		}
	}()
	d.Drop()
}

// typeInfo is shared by every object of one Go type.
type typeInfo struct {
	typ   reflect.Type
	trace traceFunc
	name  string
	sized bool
}

var typeInfos sync.Map // reflect.Type -> *typeInfo

func infoFor[T any]() *typeInfo {
	typ := reflect.TypeFor[T]()
	if v, ok := typeInfos.Load(typ); ok {
		return v.(*typeInfo)
	}

	info := &typeInfo{
		typ:   typ,
		name:  typ.String(),
		trace: traceFuncFor[T](typ),
		sized: reflect.PointerTo(typ).Implements(sizerType),
	}
	actual, _ := typeInfos.LoadOrStore(typ, info)
	return actual.(*typeInfo)
}

var sizerType = reflect.TypeFor[tracegc.Sizer]()

func sizeOf[T any](p *T, info *typeInfo) uintptr {
	if info.sized {
		return any(p).(tracegc.Sizer).HeapSize()
	}
	return info.typ.Size()
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
