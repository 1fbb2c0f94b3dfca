package mux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

const helpHint = "Use 'mux help' to view the full list of all the commands"

// app holds everything a subcommand needs, built once per invocation.
type app struct {
	cfg      *Config
	cfgPath  string
	table    *BackendTable
	probe    *Prober
	dispatch *Dispatcher
	interp   *Interpreter
	lang     *PipInstaller
}

func newApp(cfgPath string) (*app, error) {
	raw, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	applyColors(raw.Colors)
	if raw.General.Debug {
		Debug = true
	}
	setupLogging(Debug)

	cfg := raw.withDefaults()
	table, err := NewBackendTable(cfg.Backends)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgPath, err)
	}
	debugf("loaded %d backends from %s", table.Len(), cfgPath)

	ex := NewExecutor(cfg.General.Elevate)
	probe := NewProber(table, ex)
	lang := &PipInstaller{Runner: ex, Python: cfg.Language.Python, Pip: cfg.Language.Pip}
	gate := &TrustGate{Menu: NewTerminalMenu(), ShowWarning: cfg.General.ShowWarning}
	gh := NewGitHubClient(cfg.General.GithubAPI)

	return &app{
		cfg:      cfg,
		cfgPath:  cfgPath,
		table:    table,
		probe:    probe,
		dispatch: &Dispatcher{Table: table, Probe: probe, Runner: ex},
		lang:     lang,
		interp: &Interpreter{
			Table:   table,
			Probe:   probe,
			Runner:  ex,
			Lang:    lang,
			Fetch:   gh.Fetch,
			Scripts: NewInterpRunner(cfg.General.CacheDir),
			Confirm: gate.Confirm,
			Token:   cfg.General.GithubToken,
			Ref:     cfg.General.Ref,
		},
	}, nil
}

// usageError marks a bad command line; it exits 1 with the help hint.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func needArg(what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return &usageError{fmt.Sprintf("'mux %s' requires exactly one %s", cmd.Name(), what)}
		}
		return nil
	}
}

func optionalArg(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return &usageError{fmt.Sprintf("'mux %s' takes at most one argument", cmd.Name())}
	}
	return nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{fmt.Sprintf("'mux %s' takes no arguments", cmd.Name())}
	}
	return nil
}

// newRootCmd builds the command tree. The app is created lazily so that help
// and version work with a broken config file.
func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		debug   bool
		a       *app
	)

	root := &cobra.Command{
		Use:           "mux",
		Short:         "One front-end for pacman, AUR helpers and flatpak",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			if debug {
				Debug = true
			}
			path := cfgFile
			if path == "" {
				p, err := defaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			var err error
			a, err = newApp(path)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return &usageError{"no command given"}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/mux/mux.toml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err.Error()}
	})
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		if cmd == root {
			printHelp()
			return
		}
		fmt.Print(cmd.UsageString())
	})

	action := func(act Action) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			pkg := ""
			if len(args) == 1 {
				pkg = args[0]
			}
			return a.runAction(cmd.Context(), act, pkg)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:     "install <package>",
			Aliases: []string{"i"},
			Short:   "Install a package with the first backend that succeeds",
			Args:    needArg("package"),
			RunE:    action(ActionInstall),
		},
		&cobra.Command{
			Use:     "remove <package>",
			Aliases: []string{"r", "uninstall"},
			Short:   "Remove a package",
			Args:    needArg("package"),
			RunE:    action(ActionRemove),
		},
		&cobra.Command{
			Use:     "update [package]",
			Aliases: []string{"u"},
			Short:   "Update one package, or the whole system",
			Args:    optionalArg,
			RunE:    action(ActionUpdate),
		},
		&cobra.Command{
			Use:     "search <query>",
			Aliases: []string{"find", "s", "f"},
			Short:   "Search the first available backend",
			Args:    needArg("query"),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runSearch(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:     "build [muxFile]",
			Aliases: []string{"b"},
			Short:   "Install everything declared in a muxFile",
			Args:    optionalArg,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "muxFile"
				if len(args) == 1 {
					path = args[0]
				}
				return a.runBuild(cmd.Context(), path)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Open the configuration file in your editor",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return editConfig(a.cfgPath, a.cfg)
			},
		},
		&cobra.Command{
			Use:     "download <script.py>",
			Aliases: []string{"d"},
			Short:   "Install the modules a Python script imports",
			Args:    needArg("script"),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runDownload(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Version information",
			Args:  noArgs,
			Run: func(cmd *cobra.Command, args []string) {
				colSuccess.Printf("mux %s (built %s)\n", version, buildDate)
			},
		},
	)
	return root
}

func (a *app) runAction(ctx context.Context, act Action, pkg string) error {
	res, err := a.dispatch.Perform(ctx, act, pkg)
	if err != nil {
		if errors.Is(err, ErrBackendsExhausted) {
			if a.table.Len() == 0 {
				colWarn.Printf("No backends configured in %s, run 'mux config'\n", a.cfgPath)
			}
			return &exitError{code: 1}
		}
		return err
	}
	debugf("%s %s: backend=%s state=%s noop=%v", act, pkg, res.Backend.Name, res.State, res.NoOp)
	return nil
}

func (a *app) runSearch(ctx context.Context, query string) error {
	b, err := a.probe.Searcher()
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	var lines []string
	for line, err := range a.probe.Search(ctx, b, query) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			debugf("%v", err)
			break
		}
		if line.Match {
			lines = append(lines, highlight.Sprint(line.Text))
			continue
		}
		lines = append(lines, line.Text)
	}
	if len(lines) == 0 {
		colWarn.Printf("No results for %s in %s\n", query, b.Name)
		return &exitError{code: 1}
	}
	return RunPager(os.Stdout, fmt.Sprintf("%s: %s", b.Name, query), lines)
}

func (a *app) runBuild(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		colError.Printf("No muxFile found at %s\n", path)
		return &exitError{code: 1}
	}
	report, err := a.interp.Apply(ctx, path)
	if err != nil {
		var me *ManifestError
		if errors.As(err, &me) {
			return &exitError{code: 1, err: fmt.Errorf("invalid muxFile: %w", err)}
		}
		return err
	}
	if report.Aborted {
		return nil
	}
	if report.Count(OutcomeFailed) > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func (a *app) runDownload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer f.Close()
	mods, err := scanImports(f)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to read %s: %w", path, err)}
	}
	if len(mods) == 0 {
		colNote.Printf("%s imports nothing\n", path)
		return nil
	}
	if _, err := ensureModules(ctx, a.lang, mods); err != nil {
		return &exitError{code: 1, err: err}
	}
	return nil
}

func printHelp() {
	colSuccess.Println("Usage: mux <command> [argument]")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"install, i", "<pkg>", "Install a package with the first backend that succeeds"},
		{"remove, r", "<pkg>", "Remove a package"},
		{"update, u", "[pkg]", "Update a package, or the whole system when omitted"},
		{"search, find", "<query>", "Search the first available backend"},
		{"build, b", "[muxFile]", "Install everything declared in a muxFile (default ./muxFile)"},
		{"download, d", "<script.py>", "Install the modules a Python script imports"},
		{"config", "", "Open the configuration file in your editor"},
		{"version", "", "Version information"},
		{"help", "", "Show this help"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		usage := c.Cmd
		if c.Args != "" {
			usage += " " + c.Args
		}
		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}
		fmt.Print(strings.Repeat(" ", max(1, columnWidth-len(usage))))
		fmt.Println(c.Desc)
	}
	fmt.Println()
	colNote.Println("Global flags: --config <file>, --debug")
}

// exitCode maps the error returned by the command tree to a process status.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	if ctx.Err() != nil || errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
		colError.Println("Interrupted")
		return 130
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			colError.Printf("Error: %v\n", ee.err)
		}
		return ee.code
	}
	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		colError.Printf("Error: %v\n", err)
		colNote.Println(helpHint)
		return 1
	}
	colError.Printf("Error: %v\n", err)
	return 1
}

func run(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	return exitCode(ctx, root.ExecuteContext(ctx))
}

// Main is the mux entry point.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			restoreTerminal()
			colArrow.Print("\n-> ")
			colError.Printf("Received %v. Aborting\n", sig)
			cancel()

			select {
			case <-sigs:
				colError.Println("Second interrupt received. Forcing immediate exit.")
			case <-time.After(3 * time.Second):
				colError.Println("Shutdown timeout. Exiting.")
			}
			os.Exit(130)
		case <-ctx.Done():
		}
	}()

	code := run(ctx, os.Args[1:])
	if ctx.Err() != nil {
		code = 130
	}
	logger.Sync()
	os.Exit(code)
}
