package heap

import (
	"reflect"
	"testing"
)

type leaf struct {
	Name  string
	Count int
	Tags  []string
}

// container has no Trace method; its edges are found by reflection.
type container struct {
	first   Ptr[leaf]
	list    []Ptr[leaf]
	byName  map[string]Ptr[leaf]
	nested  *inner
	boxed   any
	fixed   [2]Ptr[leaf]
	missing Ptr[leaf]
}

type inner struct {
	edge Ptr[leaf]
}

// tracedByMethod holds an edge behind a field with its own Trace method.
type tracedByMethod struct {
	Child node
}

type goCycle struct {
	next *goCycle
	edge Ptr[leaf]
}

type keyed struct {
	edge Ptr[leaf]
}

type mapByKey struct {
	byKey map[keyed]int
}

func TestInfoFor_LeafTypesHaveNoTrace(t *testing.T) {
	if infoFor[int]().trace != nil {
		t.Error("int should not be traced")
	}
	if infoFor[leaf]().trace != nil {
		t.Error("leaf struct should not be traced")
	}
	if infoFor[[]string]().trace != nil {
		t.Error("[]string should not be traced")
	}
	if infoFor[node]().trace == nil {
		t.Error("Traceable type should use its Trace method")
	}
	if infoFor[container]().trace == nil {
		t.Error("container should get a derived trace")
	}
}

func TestInfoFor_Cached(t *testing.T) {
	if infoFor[container]() != infoFor[container]() {
		t.Fatal("typeInfo should be cached per type")
	}
}

func TestNeedsTrace(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want bool
	}{
		{"int", 0, false},
		{"string slice", []string{}, false},
		{"ptr", Ptr[leaf]{}, true},
		{"slice of ptr", []Ptr[leaf]{}, true},
		{"map of ptr", map[string]Ptr[leaf]{}, true},
		{"empty array", [0]Ptr[leaf]{}, false},
		{"pointer to inner", &inner{}, true},
		{"interface holder", struct{ V any }{}, true},
		{"traceable struct", node{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsTrace(reflect.TypeOf(tt.val)); got != tt.want {
				t.Errorf("needsTrace = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerive_FindsEveryEdge(t *testing.T) {
	h := New()
	ctx := mustAcquire(t, h)

	leaves := make([]Ref[leaf], 7)
	for i := range leaves {
		leaves[i] = MustAllocate(ctx, leaf{Count: i})
	}
	orphan := MustAllocate(ctx, leaf{Name: "orphan"})

	edge := func(i int) Ptr[leaf] {
		p, err := UnsafeEdge(leaves[i])
		if err != nil {
			t.Fatalf("UnsafeEdge failed: %v", err)
		}
		return p
	}

	c := container{
		first:  edge(0),
		list:   []Ptr[leaf]{edge(1), edge(2)},
		byName: map[string]Ptr[leaf]{"three": edge(3)},
		nested: &inner{edge: edge(4)},
		boxed:  edge(5),
		fixed:  [2]Ptr[leaf]{edge(6)},
	}
	ref := MustAllocate(ctx, c)
	root, _ := Pin(ref)
	defer root.Release()

	stats := ctx.Collect()
	if stats.Freed != 1 {
		t.Fatalf("Freed = %d, want only the orphan", stats.Freed)
	}
	for i, l := range leaves {
		if !live(h, l.Addr()) {
			t.Errorf("leaf %d was freed", i)
		}
	}
	if live(h, orphan.Addr()) {
		t.Error("orphan survived")
	}
	if stats.Edges != 7 {
		t.Errorf("Edges = %d, want 7", stats.Edges)
	}
}

func TestDerive_DelegatesToTraceMethod(t *testing.T) {
	h := New()
	ctx := mustAcquire(t, h)

	target := MustAllocate(ctx, node{Value: 1})
	p, _ := UnsafeEdge(target)
	holder := MustAllocate(ctx, tracedByMethod{Child: node{Next: p}})
	root, _ := Pin(holder)
	defer root.Release()

	if stats := ctx.Collect(); stats.Freed != 0 {
		t.Fatalf("Freed = %d, want 0", stats.Freed)
	}
}

func TestDerive_GoPointerCycleTerminates(t *testing.T) {
	h := New()
	ctx := mustAcquire(t, h)

	target := MustAllocate(ctx, leaf{})
	p, _ := UnsafeEdge(target)
	g := &goCycle{edge: p}
	g.next = g
	holder := MustAllocate(ctx, goCycle{next: g})
	root, _ := Pin(holder)
	defer root.Release()

	if stats := ctx.Collect(); stats.Freed != 0 {
		t.Fatalf("Freed = %d, want 0", stats.Freed)
	}
}

func TestDerive_MapKeys(t *testing.T) {
	h := New()
	ctx := mustAcquire(t, h)

	target := MustAllocate(ctx, leaf{})
	p, _ := UnsafeEdge(target)
	holder := MustAllocate(ctx, mapByKey{byKey: map[keyed]int{{edge: p}: 1}})
	root, _ := Pin(holder)
	defer root.Release()

	if stats := ctx.Collect(); stats.Freed != 0 || !live(h, target.Addr()) {
		t.Fatalf("Edge in map key was not traced: %+v", stats)
	}
}

type registry struct {
	items map[string]Ptr[leaf]
}

func (r registry) Trace(t *Tracer) {
	TraceMap(t, r.items)
}

func TestTraceMap(t *testing.T) {
	h := New()
	ctx := mustAcquire(t, h)

	a := MustAllocate(ctx, leaf{Name: "a"})
	b := MustAllocate(ctx, leaf{Name: "b"})
	pa, _ := UnsafeEdge(a)
	pb, _ := UnsafeEdge(b)
	reg := MustAllocate(ctx, registry{items: map[string]Ptr[leaf]{"a": pa, "b": pb}})
	root, _ := Pin(reg)
	defer root.Release()

	if stats := ctx.Collect(); stats.Marked != 3 {
		t.Fatalf("Marked = %d, want 3", stats.Marked)
	}
}
