package heap

import (
	"reflect"
	"sync"
	"unsafe"
)

var traceableType = reflect.TypeFor[Traceable]()

// traceFuncFor picks the trace function for objects of type T: the type's
// own Trace method when it has one, a reflection walk when the type can
// transitively hold a Traceable, and nil for leaf types.
func traceFuncFor[T any](typ reflect.Type) traceFunc {
	if reflect.PointerTo(typ).Implements(traceableType) {
		return func(value any, t *Tracer) {
			any(value.(*T)).(Traceable).Trace(t)
		}
	}
	if !needsTrace(typ) {
		return nil
	}
	return func(value any, t *Tracer) {
		w := walker{t: t}
		w.walk(reflect.ValueOf(value).Elem())
	}
}

var needsTraceCache sync.Map // reflect.Type -> bool

// needsTrace reports whether a value of typ can hold a Traceable.
func needsTrace(typ reflect.Type) bool {
	return needsTraceIn(typ, make(map[reflect.Type]bool))
}

// needsTraceIn answers true for types already being inspected. This is
// conservative for recursive types: at worst a leaf gets walked.
func needsTraceIn(typ reflect.Type, inProgress map[reflect.Type]bool) bool {
	if v, ok := needsTraceCache.Load(typ); ok {
		return v.(bool)
	}
	if typ.Implements(traceableType) || reflect.PointerTo(typ).Implements(traceableType) {
		needsTraceCache.Store(typ, true)
		return true
	}
	if inProgress[typ] {
		return true
	}
	inProgress[typ] = true
	defer delete(inProgress, typ)

	var result bool
	switch typ.Kind() {
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if needsTraceIn(typ.Field(i).Type, inProgress) {
				result = true
				break
			}
		}
	case reflect.Array:
		result = typ.Len() > 0 && needsTraceIn(typ.Elem(), inProgress)
	case reflect.Slice, reflect.Pointer:
		result = needsTraceIn(typ.Elem(), inProgress)
	case reflect.Map:
		result = needsTraceIn(typ.Key(), inProgress) || needsTraceIn(typ.Elem(), inProgress)
	case reflect.Interface:
		result = true
	}

	needsTraceCache.Store(typ, result)
	return result
}

// walker reports the edges found in one object by reflection.
type walker struct {
	t    *Tracer
	seen map[uintptr]struct{}
}

func (w *walker) walk(v reflect.Value) {
	if !v.IsValid() || !needsTrace(v.Type()) {
		return
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return
		}
	}

	v = exposed(v)
	if tr, ok := asTraceable(v); ok {
		tr.Trace(w.t)
		return
	}

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i))
		}
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			w.walk(addressable(iter.Key()))
			w.walk(addressable(iter.Value()))
		}
	case reflect.Pointer:
		if !w.enter(v.Pointer()) {
			return
		}
		w.walk(v.Elem())
	case reflect.Interface:
		w.walk(addressable(v.Elem()))
	}
}

// enter records a Go pointer so cyclic plain pointers are walked once.
func (w *walker) enter(p uintptr) bool {
	if w.seen == nil {
		w.seen = make(map[uintptr]struct{})
	}
	if _, ok := w.seen[p]; ok {
		return false
	}
	w.seen[p] = struct{}{}
	return true
}

func asTraceable(v reflect.Value) (Traceable, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	if v.Type().Implements(traceableType) {
		tr, ok := v.Interface().(Traceable)
		return tr, ok
	}
	if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(traceableType) {
		tr, ok := v.Addr().Interface().(Traceable)
		return tr, ok
	}
	return nil, false
}

// exposed makes a value read through an unexported field usable with
// Interface. Edges are commonly stored in unexported fields.
func exposed(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// addressable copies map entries and interface contents so that their
// unexported fields can be exposed in turn.
func addressable(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.CanAddr() || !v.CanInterface() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}
