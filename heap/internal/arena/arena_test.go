package arena

import (
	"testing"
)

func TestArena_Basic(t *testing.T) {
	a := New[string](4)

	addr := a.Insert("value", "meta", 8)
	if addr == 0 {
		t.Fatal("Expected non-zero address")
	}

	val, meta, ok := a.Get(addr)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "value" || meta != "meta" {
		t.Fatalf("Get = (%v, %v), want (value, meta)", val, meta)
	}
	if a.Len() != 1 || a.Bytes() != 8 {
		t.Fatalf("Len=%d Bytes=%d, want 1 and 8", a.Len(), a.Bytes())
	}

	val, ok = a.Free(addr)
	if !ok || val != "value" {
		t.Fatalf("Free = (%v, %v)", val, ok)
	}

	if _, _, ok := a.Get(addr); ok {
		t.Fatal("Expected Get to fail after Free")
	}
	if _, ok := a.Free(addr); ok {
		t.Fatal("Expected double Free to fail")
	}
	if a.Len() != 0 || a.Bytes() != 0 {
		t.Fatalf("Len=%d Bytes=%d after Free", a.Len(), a.Bytes())
	}
}

func TestArena_InvalidAddr(t *testing.T) {
	a := New[int](0)

	if _, _, ok := a.Get(0); ok {
		t.Error("Address 0 should be invalid")
	}
	if _, _, ok := a.Get(99); ok {
		t.Error("Out of range address should be invalid")
	}
	if !a.Mark(99) {
		t.Error("Mark on invalid address should report already marked")
	}
	if a.Marked(99) {
		t.Error("Marked on invalid address should be false")
	}
}

func TestArena_ReuseBumpsGeneration(t *testing.T) {
	a := New[int](0)

	first := a.Insert(1, 0, 0)
	gen, ok := a.Gen(first)
	if !ok {
		t.Fatal("Gen failed")
	}

	a.Free(first)
	second := a.Insert(2, 0, 0)
	if second != first {
		t.Fatalf("Expected slot reuse, got %d want %d", second, first)
	}

	if a.Valid(first, gen) {
		t.Error("Old generation should no longer be valid")
	}
	newGen, _ := a.Gen(second)
	if newGen != gen+1 {
		t.Errorf("Gen = %d, want %d", newGen, gen+1)
	}
	if !a.Valid(second, newGen) {
		t.Error("New generation should be valid")
	}
}

func TestArena_MarkAndSweep(t *testing.T) {
	a := New[int](0)

	keep := a.Insert("keep", 1, 4)
	drop := a.Insert("drop", 2, 6)

	if a.Mark(keep) {
		t.Fatal("First Mark should report unmarked")
	}
	if !a.Mark(keep) {
		t.Fatal("Second Mark should report marked")
	}

	freed := a.Sweep()
	if len(freed) != 1 {
		t.Fatalf("Expected 1 freed slot, got %d", len(freed))
	}
	if freed[0].Addr != drop || freed[0].Value != "drop" || freed[0].Meta != 2 || freed[0].Size != 6 {
		t.Fatalf("Unexpected freed entry %+v", freed[0])
	}

	if a.Marked(keep) {
		t.Error("Survivor mark should be cleared by Sweep")
	}
	if a.Len() != 1 || a.Bytes() != 4 {
		t.Errorf("Len=%d Bytes=%d, want 1 and 4", a.Len(), a.Bytes())
	}

	// Nothing marked: the survivor goes next.
	freed = a.Sweep()
	if len(freed) != 1 || freed[0].Addr != keep {
		t.Fatalf("Expected survivor to be freed, got %+v", freed)
	}
}

func TestArena_Reset(t *testing.T) {
	a := New[int](0)
	for i := 0; i < 5; i++ {
		addr := a.Insert(i, i, 1)
		a.Mark(addr)
	}

	freed := a.Reset()
	if len(freed) != 5 {
		t.Fatalf("Expected 5 freed, got %d", len(freed))
	}
	if a.Len() != 0 {
		t.Fatalf("Len = %d after Reset", a.Len())
	}
}

func TestArena_Each(t *testing.T) {
	a := New[int](0)
	a.Insert("a", 0, 0)
	b := a.Insert("b", 0, 0)
	a.Insert("c", 0, 0)
	a.Free(b)

	var seen []any
	a.Each(func(_ Addr, v any, _ int) bool {
		seen = append(seen, v)
		return true
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "c" {
		t.Fatalf("Each visited %v", seen)
	}

	count := 0
	a.Each(func(Addr, any, int) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Each should stop early, visited %d", count)
	}
}
