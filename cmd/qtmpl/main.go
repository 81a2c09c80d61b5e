// Command qtmpl evaluates widget markup expressions and builds markup
// files outside the desktop shell.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/pkmeter/pkg/qtemplate"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/filters"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// Version is set at compile time via -ldflags
var Version = "0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("qtmpl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		dataFile    = flags.String("data", "", "YAML file loaded into the store")
		prefix      = flags.String("prefix", expr.DefaultPrefix, "Dependency prefix")
		locale      = flags.String("locale", "", "Locale for date filters")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "qtmpl version %s\n", Version)
		return nil
	}
	if *locale != "" {
		if err := filters.SetLocale(*locale); err != nil {
			return err
		}
	}

	s := store.New()
	if *dataFile != "" {
		if err := loadData(s, *dataFile); err != nil {
			return err
		}
	}
	sess := newSession(s, *prefix)

	rest := flags.Args()
	if len(rest) == 0 {
		return sess.repl(stdout)
	}
	switch cmd, operands := rest[0], rest[1:]; cmd {
	case "eval":
		if len(operands) == 0 {
			return fmt.Errorf("eval needs an expression")
		}
		return sess.eval(stdout, strings.Join(operands, " "))
	case "deps":
		if len(operands) == 0 {
			return fmt.Errorf("deps needs an expression")
		}
		return sess.deps(stdout, strings.Join(operands, " "))
	case "build":
		if len(operands) != 1 {
			return fmt.Errorf("build needs one markup file")
		}
		return sess.build(stdout, operands[0])
	case "check":
		if len(operands) == 0 {
			return fmt.Errorf("check needs at least one markup file")
		}
		return check(stdout, s, *prefix, operands)
	case "filters":
		fmt.Fprintln(stdout, strings.Join(filters.Names(), "\n"))
		return nil
	case "tags":
		fmt.Fprintln(stdout, strings.Join(qtemplate.DefaultTags().Names(), "\n"))
		return nil
	case "-":
		return sess.script(stdin, stdout)
	}
	return fmt.Errorf("unknown command %q (try --help)", rest[0])
}

// loadData reads a YAML mapping into the store.
func loadData(s *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return s.Load(normalize(values).(map[string]any))
}

// normalize converts the map[any]any values nested YAML can produce.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
	}
	return v
}

// check builds every file against its own tree and reports each failure.
func check(w io.Writer, s *store.Store, prefix string, files []string) error {
	failed := 0
	for _, f := range files {
		root := widget.NewBase("Widget")
		tree := qtemplate.New(root.Bind(root), qtemplate.WithStore(s), qtemplate.WithPrefix(prefix))
		if _, err := tree.Load(f, nil); err != nil {
			fmt.Fprintf(w, "%s: %v\n", f, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: ok (%d widgets)\n", f, tree.Len())
		tree.Close()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `qtmpl - widget markup tool

Usage:
  qtmpl [options]                   Start an interactive session
  qtmpl [options] eval EXPR         Evaluate an attribute expression
  qtmpl [options] deps EXPR         List the store paths EXPR depends on
  qtmpl [options] build FILE        Build a markup file and print its widget tree
  qtmpl [options] check FILE...     Build markup files and report errors
  qtmpl [options] -                 Run session commands from stdin
  qtmpl filters                     List placeholder filters
  qtmpl tags                        List markup tags

Options:
  --data FILE      YAML file loaded into the store
  --prefix PREFIX  Dependency prefix (default: data.)
  --locale NAME    Locale for date filters
  --version        Show version
  --help           Show this help

Examples:
  qtmpl --data cpu.yaml eval "'CPU {{ data.cpu.percent|round:0 }}%%'"
  qtmpl deps "data.cpu.percent + data.cpu.count"
  qtmpl --data cpu.yaml build plugins/Default/system.tmpl

`)
}
