package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/productdevbook/whichport/internal/config"
	"github.com/productdevbook/whichport/internal/logger"
	"github.com/productdevbook/whichport/internal/output"
	"github.com/productdevbook/whichport/internal/query"
	"github.com/productdevbook/whichport/internal/role"
	"github.com/productdevbook/whichport/internal/scanner"
	"github.com/productdevbook/whichport/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// newCollector is swapped out in tests
var newCollector = func(log logrus.FieldLogger) query.Collector {
	return scanner.NewPlatform(log)
}

type options struct {
	cfgFile     string
	logLevel    string
	all         bool
	json        bool
	verbose     bool
	interactive bool
	force       bool
}

// app is everything a command needs once flags and config are resolved
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	engine *query.Engine
}

func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root, helpShown := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	if *helpShown {
		return exitUsage
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case query.IsValidation(err):
		return exitUsage
	default:
		return exitFailure
	}
}

func newRootCmd() (*cobra.Command, *bool) {
	opts := &options{}
	helpShown := false

	rootCmd := &cobra.Command{
		Use:   "whichport [port...]",
		Short: "Show what is listening on local TCP ports",
		Long: `whichport lists TCP sockets in LISTEN state, the process that owns each one
and a guess at what the process is for.

Examples:
  whichport 5432 8080
  whichport --all --json
  whichport list -i`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "Config file (default ~/.whichport/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.json, "json", false, "Output in JSON format")
	flags.BoolVar(&opts.verbose, "verbose", false, "Include collection metadata in text output")
	rootCmd.Flags().BoolVar(&opts.all, "all", false, "Query all listening ports")
	rootCmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Browse results in an interactive table")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &query.ValidationError{Reason: err.Error()}
	})

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpShown = true
		defaultHelp(cmd, args)
	})

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newKillCmd(opts))

	return rootCmd, &helpShown
}

func parsePorts(args []string) ([]int, error) {
	ports := make([]int, 0, len(args))
	for _, arg := range args {
		port, err := query.ParsePort(arg)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func runQuery(cmd *cobra.Command, opts *options, args []string) error {
	ports, err := parsePorts(args)
	if err != nil {
		return err
	}

	req := query.Request{Ports: ports, All: opts.all}
	if err := req.Validate(); err != nil {
		if errors.Is(err, query.ErrNoPorts) {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		}
		return err
	}

	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}

	res, err := a.engine.Query(req)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"mode":   res.Mode,
		"source": res.Meta.Source,
		"errors": len(res.Meta.Errors),
	}).Debug("query finished")

	return a.render(cmd.OutOrStdout(), opts, res)
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	loader := config.NewLoader(opts.cfgFile)
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if opts.json {
		cfg.Output.Format = config.FormatJSON
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	if used := loader.Used(); used != "" {
		log.WithField("file", used).Debug("loaded config")
	}

	roles := role.Default().Extend(cfg.RoleTable())
	return &app{
		cfg:    cfg,
		log:    log,
		engine: query.New(newCollector(log), roles),
	}, nil
}

func (a *app) render(w io.Writer, opts *options, res *query.Result) error {
	if opts.interactive {
		if !isTerminal(os.Stdout) {
			return errors.New("interactive mode needs a terminal")
		}
		return tui.Run(res)
	}

	if a.cfg.JSON() {
		return output.Printer{W: w}.JSON(res)
	}

	if f, ok := w.(*os.File); ok && isTerminal(f) {
		w = output.SafeWriter{W: w}
	}
	return output.Printer{W: w, Verbose: a.cfg.Output.Verbose}.Text(res)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func portArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &query.ValidationError{Reason: "expected exactly one port, got " + strconv.Itoa(len(args))}
	}
	return nil
}
