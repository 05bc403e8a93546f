package tracegc

// Dropper is optionally implemented by heap values that need cleanup when
// the collector frees them. Drop runs once, after the sweep that freed the
// value, outside the heap lock.
type Dropper interface {
	Drop()
}

// Sizer is optionally implemented by heap values that know their own
// footprint. Values without it are sized by their static Go type.
type Sizer interface {
	HeapSize() uintptr
}
