package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/tracegc/heap"
)

// scenario builds A -> B, closes the cycle A -> B -> A, then drops the root.
const scenario = `
alloc b 2
alloc a 1
link a b
root a
collect
show a
link b a
collect
show b
unroot a
collect
stats
`

var (
	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	outStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

func main() {
	var (
		expr        = flag.String("e", "", "Commands to run, separated by ';'")
		scriptFile  = flag.String("script", "", "Path to a command script")
		runScenario = flag.Bool("scenario", false, "Run the built-in example scenario")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log collector activity")
		capacity    = flag.Int("capacity", 64, "Initial object table capacity")
	)
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = l
		defer log.Sync()
	}
	heap.SetLogger(log)

	h := heap.New(heap.WithLogger(log), heap.WithInitialCapacity(*capacity))
	defer h.Close()

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(h); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var script string
	switch {
	case *runScenario:
		script = scenario
	case *scriptFile != "":
		data, err := os.ReadFile(*scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read script: %v\n", err)
			os.Exit(1)
		}
		script = string(data)
	case *expr != "":
		script = *expr
	default:
		fmt.Fprintln(os.Stderr, "Usage: gcrun -e 'alloc a 1; root a; collect'")
		fmt.Fprintln(os.Stderr, "       gcrun -script <file>")
		fmt.Fprintln(os.Stderr, "       gcrun -scenario")
		fmt.Fprintln(os.Stderr, "       gcrun -i  (interactive mode)")
		os.Exit(1)
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(h, script, os.Stdout, styled); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes every command of script, echoing each command and its
// output. It stops at the first failing command.
func run(h *heap.Heap, script string, w io.Writer, styled bool) error {
	s, err := newSession(h)
	if err != nil {
		return err
	}
	defer s.close()

	render := func(st lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return st.Render(text)
	}

	for _, cmd := range splitScript(script) {
		fmt.Fprintln(w, render(cmdStyle, "> "+cmd))
		out, err := s.exec(cmd)
		if err != nil {
			fmt.Fprintln(w, render(errStyle, "error: "+err.Error()))
			return fmt.Errorf("%s: %w", cmd, err)
		}
		if out != "" {
			fmt.Fprintln(w, render(outStyle, out))
		}
	}
	return nil
}
