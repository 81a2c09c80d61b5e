package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/pkmeter/pkg/qtemplate"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/filters"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

const prompt = "qt> "

var errQuit = errors.New("quit")

// session evaluates expressions against one store. The last built tree
// stays bound, so :set shows its widgets updating.
type session struct {
	store  *store.Store
	prefix string
	tree   *qtemplate.Tree
}

func newSession(s *store.Store, prefix string) *session {
	return &session{store: s, prefix: prefix}
}

func (s *session) context() expr.Context {
	ctx := expr.Context(widget.Constants())
	if name := strings.TrimSuffix(s.prefix, "."); name != "" {
		ctx[name] = s.store
	}
	if s.tree != nil {
		ctx = s.tree.Context()
	}
	return ctx
}

func (s *session) eval(w io.Writer, src string) error {
	v, err := expr.Evaluate(src, s.context(), expr.WithCall())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%s)\n", expr.ToString(v), expr.TypeName(v))
	return nil
}

func (s *session) deps(w io.Writer, src string) error {
	for _, token := range expr.Dependencies(src, s.prefix) {
		fmt.Fprintln(w, token)
	}
	return nil
}

func (s *session) build(w io.Writer, path string) error {
	if s.tree != nil {
		s.tree.Close()
	}
	root := widget.NewBase("Widget")
	tree := qtemplate.New(root.Bind(root), qtemplate.WithStore(s.store), qtemplate.WithPrefix(s.prefix))
	if _, err := tree.Load(path, nil); err != nil {
		return err
	}
	s.tree = tree
	return widget.Dump(w, tree.Root())
}

// set evaluates src and stores the result at path, re-applying bindings.
func (s *session) set(w io.Writer, path, src string) error {
	v, err := expr.Evaluate(src, s.context(), expr.WithCall())
	if err != nil {
		return err
	}
	if err := s.store.SetValue(path, v); err != nil {
		return err
	}
	if s.tree != nil {
		return widget.Dump(w, s.tree.Root())
	}
	return nil
}

// command runs one session line. Lines starting with ':' are commands,
// anything else is an expression.
func (s *session) command(w io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if !strings.HasPrefix(line, ":") {
		return s.eval(w, line)
	}
	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "q", "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprint(w, sessionHelp)
		return nil
	case "set":
		path, src, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: :set PATH EXPR")
		}
		return s.set(w, path, strings.TrimSpace(src))
	case "data":
		out, err := yaml.Marshal(s.store.Snapshot())
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "load":
		return loadData(s.store, rest)
	case "deps":
		return s.deps(w, rest)
	case "build":
		return s.build(w, rest)
	case "dump":
		if s.tree == nil {
			return fmt.Errorf("nothing built")
		}
		return widget.Dump(w, s.tree.Root())
	case "ids":
		if s.tree == nil {
			return fmt.Errorf("nothing built")
		}
		ids := make(map[string]any, len(s.tree.IDs))
		for k, v := range s.tree.IDs {
			ids[k] = v
		}
		for _, id := range sortedKeys(ids) {
			fmt.Fprintf(w, "%s %s\n", id, s.tree.IDs[id].Core().Kind())
		}
		return nil
	case "filters":
		fmt.Fprintln(w, strings.Join(filters.Names(), " "))
		return nil
	}
	return fmt.Errorf("unknown command :%s (try :help)", cmd)
}

// script runs session lines from r, stopping at the first error.
func (s *session) script(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		if err := s.command(w, sc.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

func (s *session) repl(w io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	historyFile := filepath.Join(os.TempDir(), ".qtmpl_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(w, "qtmpl %s\nType :help for commands, Ctrl+D to quit\n", Version)
	for {
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if err := s.command(w, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
}

// complete offers context names, then dotted children of the path typed
// so far.
func (s *session) complete(line string) []string {
	start := strings.LastIndexAny(line, " ([,|&+") + 1
	head, word := line[:start], line[start:]
	ctx := s.context()

	var candidates []string
	if i := strings.LastIndex(word, "."); i >= 0 {
		v, err := expr.Resolve(ctx, word[:i])
		if err != nil {
			return nil
		}
		for _, k := range expr.Keys(v) {
			candidates = append(candidates, word[:i+1]+k)
		}
	} else {
		for k := range ctx {
			candidates = append(candidates, k)
		}
	}
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, word) {
			out = append(out, head+c)
		}
	}
	return out
}

const sessionHelp = `Enter an expression to evaluate it, or a command:
  :set PATH EXPR   store the value of EXPR at PATH
  :load FILE       load a YAML file into the store
  :data            print the store as YAML
  :deps EXPR       list the store paths EXPR depends on
  :build FILE      build a markup file and print its widget tree
  :dump            print the built tree again
  :ids             list the built tree's ids
  :filters         list placeholder filters
  :quit            leave
`
