package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wippyai/tracegc/heap"
)

func newTestSession(t *testing.T) (*heap.Heap, *session) {
	t.Helper()
	h := heap.New()
	s, err := newSession(h)
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	t.Cleanup(func() {
		s.close()
		h.Close()
	})
	return h, s
}

func mustExec(t *testing.T, s *session, line string) string {
	t.Helper()
	out, err := s.exec(line)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return out
}

func TestSplitScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "", nil},
		{"semicolons", "alloc a 1; root a;collect", []string{"alloc a 1", "root a", "collect"}},
		{"newlines", "alloc a 1\n\n  root a  \n", []string{"alloc a 1", "root a"}},
		{"comments", "# setup\nalloc a 1 # first\n#done", []string{"alloc a 1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitScript(tt.script)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("splitScript = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_Scenario(t *testing.T) {
	h, s := newTestSession(t)

	mustExec(t, s, "alloc b 2")
	mustExec(t, s, "alloc a 1")
	mustExec(t, s, "link a b")
	mustExec(t, s, "root a")

	out := mustExec(t, s, "collect")
	if !strings.Contains(out, "marked 2, freed 0") {
		t.Errorf("first collect: %s", out)
	}
	if out := mustExec(t, s, "show a"); !strings.Contains(out, "a = 1") || !strings.Contains(out, "-> b") {
		t.Errorf("show a: %s", out)
	}

	mustExec(t, s, "link b a")
	out = mustExec(t, s, "collect")
	if !strings.Contains(out, "freed 0") {
		t.Errorf("cycle collect: %s", out)
	}

	mustExec(t, s, "unroot a")
	out = mustExec(t, s, "collect")
	if !strings.Contains(out, "freed 2") {
		t.Errorf("unrooted collect: %s", out)
	}
	if st := h.Stats(); st.Objects != 0 || st.Roots != 0 {
		t.Errorf("Stats = %+v, want empty heap", st)
	}
}

func TestSession_UnreachableNamesForgotten(t *testing.T) {
	_, s := newTestSession(t)

	mustExec(t, s, "alloc kept 1")
	mustExec(t, s, "alloc lost 2")
	mustExec(t, s, "root kept")
	mustExec(t, s, "collect")

	if got := mustExec(t, s, "list"); got != "kept" {
		t.Errorf("list = %q, want kept", got)
	}
	if _, err := s.exec("show lost"); err == nil {
		t.Error("collected object should be forgotten")
	}
	// the name can be reused once its object is gone
	mustExec(t, s, "alloc lost 3")
}

func TestSession_PinCounts(t *testing.T) {
	h, s := newTestSession(t)

	mustExec(t, s, "alloc a 1")
	mustExec(t, s, "root a")
	if out := mustExec(t, s, "root a"); !strings.Contains(out, "2 pins") {
		t.Errorf("second root: %s", out)
	}
	if st := h.Stats(); st.Roots != 1 || st.Pins != 2 {
		t.Errorf("Stats = %+v, want 1 root with 2 pins", st)
	}

	mustExec(t, s, "unroot a")
	mustExec(t, s, "collect")
	if got := mustExec(t, s, "list"); got != "a" {
		t.Errorf("object with one remaining pin was freed, list = %q", got)
	}

	mustExec(t, s, "unroot a")
	mustExec(t, s, "collect")
	if got := mustExec(t, s, "list"); got != "" {
		t.Errorf("list = %q, want empty", got)
	}
}

func TestSession_SetAndUnlink(t *testing.T) {
	_, s := newTestSession(t)

	mustExec(t, s, "alloc a 1")
	mustExec(t, s, "alloc b 2")
	mustExec(t, s, "link a b")
	mustExec(t, s, "link a b")
	mustExec(t, s, "root a")
	mustExec(t, s, "set a 10")

	if out := mustExec(t, s, "unlink a b"); !strings.Contains(out, "2 removed") {
		t.Errorf("unlink: %s", out)
	}
	mustExec(t, s, "collect")

	if out := mustExec(t, s, "show a"); !strings.HasPrefix(out, "a = 10") || strings.Contains(out, "->") {
		t.Errorf("show a: %s", out)
	}
	if got := mustExec(t, s, "list"); got != "a" {
		t.Errorf("list = %q, want a", got)
	}
}

func TestSession_Errors(t *testing.T) {
	_, s := newTestSession(t)
	mustExec(t, s, "alloc a 1")

	tests := []struct {
		name string
		line string
		want string
	}{
		{"unknown command", "frob", "unknown command"},
		{"missing args", "alloc x", "usage: alloc"},
		{"bad value", "alloc x y", "parse value"},
		{"duplicate", "alloc a 2", "already exists"},
		{"unknown object", "show nope", "unknown object"},
		{"link unknown", "link a nope", "unknown object"},
		{"unroot unrooted", "unroot a", "not rooted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.exec(tt.line)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestRun_Scenario(t *testing.T) {
	h := heap.New()
	defer h.Close()

	var buf bytes.Buffer
	if err := run(h, scenario, &buf, false); err != nil {
		t.Fatalf("run failed: %v\n%s", err, buf.String())
	}

	out := buf.String()
	for _, want := range []string{"> alloc b 2", "a = 1 @2 -> b", "b = 2 @1 -> a", "freed 2", "objects 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_StopsAtFirstError(t *testing.T) {
	h := heap.New()
	defer h.Close()

	var buf bytes.Buffer
	err := run(h, "alloc a 1; show b; alloc c 3", &buf, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(buf.String(), "alloc c") {
		t.Error("commands after the failure should not run")
	}
}
