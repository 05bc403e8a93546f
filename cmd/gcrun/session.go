package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/tracegc/heap"
)

// node is the only heap type the command language manipulates.
// It has no Trace method; the heap derives one from the Edges field.
type node struct {
	Name  string
	Edges []heap.Ptr[node]
	Value int64
}

// session drives a heap through text commands. It always holds an active
// context; collect consumes it and a fresh one is acquired right away.
type session struct {
	heap  *heap.Heap
	ctx   *heap.Context
	refs  map[string]heap.Ref[node]
	roots map[string][]*heap.Root[node]
}

func newSession(h *heap.Heap) (*session, error) {
	s := &session{
		heap:  h,
		refs:  make(map[string]heap.Ref[node]),
		roots: make(map[string][]*heap.Root[node]),
	}
	if err := s.renew(); err != nil {
		return nil, err
	}
	return s, nil
}

// renew acquires a new context and re-derives a handle for every object
// reachable from the roots. Names of unreachable objects are forgotten.
func (s *session) renew() error {
	ctx, err := s.heap.Acquire()
	if err != nil {
		return fmt.Errorf("acquire context: %w", err)
	}
	s.ctx = ctx
	s.refs = make(map[string]heap.Ref[node])

	names := make([]string, 0, len(s.roots))
	for name := range s.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, err := s.roots[name][0].Borrow(ctx)
		if err != nil {
			return fmt.Errorf("borrow root %s: %w", name, err)
		}
		if err := s.discover(ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) discover(ref heap.Ref[node]) error {
	n, err := ref.Load()
	if err != nil {
		return err
	}
	if _, seen := s.refs[n.Name]; seen {
		return nil
	}
	s.refs[n.Name] = ref
	for _, e := range n.Edges {
		child, err := e.Borrow(s.ctx)
		if err != nil {
			return fmt.Errorf("follow edge of %s: %w", n.Name, err)
		}
		if err := s.discover(child); err != nil {
			return err
		}
	}
	return nil
}

// close releases every root and the active context.
func (s *session) close() {
	for _, roots := range s.roots {
		for _, r := range roots {
			r.Release()
		}
	}
	s.roots = nil
	if s.ctx != nil {
		s.ctx.Release()
	}
}

func (s *session) lookup(name string) (heap.Ref[node], error) {
	ref, ok := s.refs[name]
	if !ok {
		return heap.Ref[node]{}, fmt.Errorf("unknown object %q", name)
	}
	return ref, nil
}

// splitScript breaks a script into commands on newlines and semicolons,
// dropping blank lines and # comments.
func splitScript(script string) []string {
	var cmds []string
	for _, line := range strings.Split(script, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, cmd := range strings.Split(line, ";") {
			if cmd = strings.TrimSpace(cmd); cmd != "" {
				cmds = append(cmds, cmd)
			}
		}
	}
	return cmds
}

// exec runs a single command and returns its output.
func (s *session) exec(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "alloc":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: alloc NAME VALUE")
		}
		return s.alloc(args[0], args[1])
	case "set":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: set NAME VALUE")
		}
		return s.set(args[0], args[1])
	case "link":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: link FROM TO")
		}
		return s.link(args[0], args[1])
	case "unlink":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: unlink FROM TO")
		}
		return s.unlink(args[0], args[1])
	case "root":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: root NAME")
		}
		return s.root(args[0])
	case "unroot":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: unroot NAME")
		}
		return s.unroot(args[0])
	case "show":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: show NAME")
		}
		return s.show(args[0])
	case "list":
		return s.list(), nil
	case "collect":
		return s.collect()
	case "stats":
		return s.stats(), nil
	case "help":
		return helpText, nil
	default:
		return "", fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

const helpText = `commands:
  alloc NAME VALUE   allocate an object
  set NAME VALUE     change an object's value
  link FROM TO       add an edge FROM -> TO
  unlink FROM TO     remove edges FROM -> TO
  root NAME          pin an object (may be repeated)
  unroot NAME        release one pin
  show NAME          print an object and its edges
  list               list reachable names
  collect            run mark and sweep
  stats              print heap statistics`

func (s *session) alloc(name, value string) (string, error) {
	if _, exists := s.refs[name]; exists {
		return "", fmt.Errorf("object %q already exists", name)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse value: %w", err)
	}
	ref, err := heap.Allocate(s.ctx, node{Name: name, Value: v})
	if err != nil {
		return "", err
	}
	s.refs[name] = ref
	return fmt.Sprintf("%s = %d @%d", name, v, ref.Addr()), nil
}

func (s *session) set(name, value string) (string, error) {
	ref, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse value: %w", err)
	}
	n, err := ref.UnsafeMut()
	if err != nil {
		return "", err
	}
	n.Value = v
	return fmt.Sprintf("%s = %d", name, v), nil
}

func (s *session) link(from, to string) (string, error) {
	src, err := s.lookup(from)
	if err != nil {
		return "", err
	}
	dst, err := s.lookup(to)
	if err != nil {
		return "", err
	}
	n, err := src.UnsafeMut()
	if err != nil {
		return "", err
	}
	edge, err := heap.UnsafeEdge(dst)
	if err != nil {
		return "", err
	}
	n.Edges = append(n.Edges, edge)
	return fmt.Sprintf("%s -> %s", from, to), nil
}

func (s *session) unlink(from, to string) (string, error) {
	src, err := s.lookup(from)
	if err != nil {
		return "", err
	}
	dst, err := s.lookup(to)
	if err != nil {
		return "", err
	}
	n, err := src.UnsafeMut()
	if err != nil {
		return "", err
	}
	kept := n.Edges[:0]
	removed := 0
	for _, e := range n.Edges {
		if e.Addr() == dst.Addr() {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	n.Edges = kept
	return fmt.Sprintf("%s -/-> %s (%d removed)", from, to, removed), nil
}

func (s *session) root(name string) (string, error) {
	ref, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	r, err := heap.Pin(ref)
	if err != nil {
		return "", err
	}
	s.roots[name] = append(s.roots[name], r)
	return fmt.Sprintf("rooted %s (%d pins)", name, len(s.roots[name])), nil
}

func (s *session) unroot(name string) (string, error) {
	roots := s.roots[name]
	if len(roots) == 0 {
		return "", fmt.Errorf("%q is not rooted", name)
	}
	last := roots[len(roots)-1]
	last.Release()
	roots = roots[:len(roots)-1]
	if len(roots) == 0 {
		delete(s.roots, name)
	} else {
		s.roots[name] = roots
	}
	return fmt.Sprintf("unrooted %s (%d pins)", name, len(roots)), nil
}

func (s *session) show(name string) (string, error) {
	ref, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	n, err := ref.Load()
	if err != nil {
		return "", err
	}
	targets := make([]string, 0, len(n.Edges))
	for _, e := range n.Edges {
		child, err := e.Borrow(s.ctx)
		if err != nil {
			targets = append(targets, fmt.Sprintf("@%d(%v)", e.Addr(), err))
			continue
		}
		targets = append(targets, child.MustLoad().Name)
	}
	out := fmt.Sprintf("%s = %d @%d", n.Name, n.Value, ref.Addr())
	if len(targets) > 0 {
		out += " -> " + strings.Join(targets, ", ")
	}
	if pins := len(s.roots[name]); pins > 0 {
		out += fmt.Sprintf(" [rooted x%d]", pins)
	}
	return out, nil
}

func (s *session) list() string {
	names := make([]string, 0, len(s.refs))
	for name := range s.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

func (s *session) collect() (string, error) {
	stats := s.ctx.Collect()
	if err := s.renew(); err != nil {
		return "", err
	}
	return fmt.Sprintf("cycle %d: marked %d, freed %d (%d bytes), live %d, %s",
		stats.Cycle, stats.Marked, stats.Freed, stats.FreedBytes, stats.Live, stats.Duration), nil
}

func (s *session) stats() string {
	st := s.heap.Stats()
	return fmt.Sprintf("objects %d, roots %d, pins %d, bytes %d, collections %d, epoch %d",
		st.Objects, st.Roots, st.Pins, st.Bytes, st.Collections, st.Epoch)
}
