package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/sambeau/pkmeter/app"
	"github.com/sambeau/pkmeter/config"
	"github.com/sambeau/pkmeter/pkg/plugin"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("pkmeter", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		profile     = flags.String("profile", "", "Apply a named config profile")
		logLevel    = flags.String("log-level", "", "Override the log level")
		watch       = flags.Bool("watch", false, "Reload plugins when their files change")
		dump        = flags.Bool("dump", false, "Build every widget, print the widget trees and exit")
		list        = flags.Bool("plugins", false, "List discovered plugins and exit")
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
		fmt.Fprintf(stdout, "pkmeter version %s\n", Version)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if *profile != "" {
		if err := config.ApplyProfile(cfg, *profile); err != nil {
			return err
		}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *watch {
		cfg.Dev.Watch = true
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for _, w := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	if *list {
		return listPlugins(stdout, cfg)
	}

	a, err := app.New(cfg, stdout, stderr, app.WithConfigPath(configFile))
	if err != nil {
		return fmt.Errorf("starting pkmeter: %w", err)
	}
	defer a.Close()

	if *dump {
		return dumpWidgets(ctx, a, stdout)
	}
	return a.Run(ctx)
}

// dumpWidgets runs the application until every widget is built, writes
// their trees and quits.
func dumpWidgets(ctx context.Context, a *app.App, stdout io.Writer) error {
	var dumpErr error
	go func() {
		select {
		case <-a.Ready():
			a.Loop().Post(func() {
				dumpErr = a.Dump(stdout)
				a.Quit()
			})
		case <-ctx.Done():
		}
	}()
	if err := a.Run(ctx); err != nil {
		return err
	}
	return dumpErr
}

func listPlugins(w io.Writer, cfg *config.Config) error {
	reg := plugin.NewRegistry(app.DefaultCatalog(cfg.Monitor), &plugin.Env{})
	plugins := reg.Discover(cfg.PluginDirs)
	if len(plugins) == 0 {
		fmt.Fprintln(w, "no plugins found")
		return nil
	}
	groups := plugin.ByAuthor(plugins)
	authors := make([]string, 0, len(groups))
	for author := range groups {
		authors = append(authors, author)
	}
	sort.Strings(authors)
	for _, author := range authors {
		if author == "" {
			fmt.Fprintln(w, "Unknown author:")
		} else {
			fmt.Fprintf(w, "%s:\n", author)
		}
		for _, p := range groups[author] {
			fmt.Fprintf(w, "  %s %s (%s)\n", p.ID, p.Version, p.RootDir)
			for _, c := range p.Components {
				fmt.Fprintf(w, "    %s", c.FullID)
				for _, kind := range []string{plugin.KindDataSource, plugin.KindWidget, plugin.KindSettings} {
					if ref := c.Ref(kind); ref != "" {
						fmt.Fprintf(w, " %s=%s", kind, ref)
					}
				}
				fmt.Fprintln(w)
			}
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `pkmeter - Desktop meters built from plugin markup

Usage:
  pkmeter [options]

Options:
  --config PATH      Path to config file (default: auto-detect)
  --profile NAME     Apply a named profile from the config
  --log-level LEVEL  Override the log level (debug, info, warn, error)
  --watch            Reload plugins when their files change
  --dump             Build every widget, print the widget trees and exit
  --plugins          List discovered plugins and exit
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. PKMETER_CONFIG environment variable
  3. ./pkmeter.yaml
  4. ~/.config/pkmeter/pkmeter.yaml

Examples:
  pkmeter                        Start with auto-detected config
  pkmeter --watch                Reload widgets while editing markup
  pkmeter --config desk.yaml     Use specific config file
  pkmeter --dump --profile dev   Print the widget trees of the dev profile

`)
}
