package cmds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cosiner/argv"
	"github.com/invopop/jsonschema"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/insdump/pkg/config"
	"github.com/go-delve/insdump/pkg/logflags"
	"github.com/go-delve/insdump/pkg/proc"
	"github.com/go-delve/insdump/pkg/proc/native"
	"github.com/go-delve/insdump/pkg/terminal/colorize"
	"github.com/go-delve/insdump/pkg/tracer"
	"github.com/go-delve/insdump/pkg/version"
)

var _ tracer.Target = (*native.Process)(nil)

// errUsage marks errors caused by a malformed command line.
var errUsage = errors.New("usage error")

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() []error {
	return []error{e.err, errUsage}
}

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{fmt.Errorf(format, args...)}
}

// enumFlag is a string flag restricted to a fixed set of values.
type enumFlag struct {
	value   *string
	allowed []string
}

var _ pflag.Value = (*enumFlag)(nil)

func newEnumFlag(p *string, def string, allowed ...string) *enumFlag {
	*p = def
	return &enumFlag{value: p, allowed: allowed}
}

func (e *enumFlag) String() string { return *e.value }

func (e *enumFlag) Set(s string) error {
	for _, v := range e.allowed {
		if s == v {
			*e.value = s
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(e.allowed, ", "))
}

func (e *enumFlag) Type() string { return "string" }

const insdumpCommandLongDesc = `insdump runs a program and prints every machine instruction it executes.

The program is single-stepped with ptrace from its very first instruction,
including the dynamic loader, until it exits. For each instruction one line
is printed on standard output, in the layout of objdump:

     7f09959621f0:	41 89 f8             	mov    %edi,%r8d

Flags are only recognized before COMMAND; everything after it is passed to
the traced program unchanged. The exit status of insdump is 0 once the
program has exited, whatever its own exit status, and 1 if tracing failed.`

// options holds the values of the command line flags.
type options struct {
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	syntax       string
	color        string
	lineCapacity int
	decodeCache  int
	decodeErrors bool
	fromEntry    bool
	// workingDir is the working directory for running the program.
	workingDir string
	// command is a whole command line given with -c.
	command    string
	configPath string

	versionVerbose bool

	stdout *os.File
	stderr *os.File
}

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	return newCommand(os.Stdout, os.Stderr)
}

func newCommand(stdout, stderr *os.File) *cobra.Command {
	return newCommandWithOptions(&options{stdout: stdout, stderr: stderr})
}

func newCommandWithOptions(o *options) *cobra.Command {
	stdout, stderr := o.stdout, o.stderr

	rootCommand := &cobra.Command{
		Use:   "insdump [flags] COMMAND [ARGS...]",
		Short: "insdump prints every instruction a program executes.",
		Long:  insdumpCommandLongDesc,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return traceCmd(cmd, o, args)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCommand.SetOut(stdout)
	rootCommand.SetErr(stderr)
	rootCommand.CompletionOptions.DisableDefaultCmd = true
	rootCommand.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCommand.PersistentFlags().BoolVarP(&o.log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&o.logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output: tracer, native, disasm.")
	rootCommand.PersistentFlags().StringVarP(&o.logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")

	flags := rootCommand.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&o.command, "command", "c", "", "Command line of the program to trace, split like a shell would.")
	flags.Var(newEnumFlag(&o.syntax, "gnu", "gnu", "att", "intel", "go"), "syntax", "Assembly syntax: gnu, intel or go.")
	flags.Var(newEnumFlag(&o.color, "auto", "auto", "always", "never"), "color", "Syntax highlight instructions: auto, always or never.")
	flags.IntVar(&o.lineCapacity, "line-capacity", proc.DefaultLineCapacity, "Maximum length of the text of one instruction.")
	flags.IntVar(&o.decodeCache, "decode-cache", proc.DefaultDecodeCacheSize, "Number of decoded instructions to remember, 0 disables the cache.")
	flags.BoolVar(&o.decodeErrors, "decode-errors", false, "Report instructions that cannot be decoded on standard error.")
	flags.BoolVar(&o.fromEntry, "from-entry", false, "Start printing at the program entry point, skipping the dynamic loader.")
	flags.StringVar(&o.workingDir, "wd", "", "Working directory for running the program.")
	flags.StringVar(&o.configPath, "config", "", "Read default flag values from this YAML file.")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insdump\n%s\n", version.InsdumpVersion)
			if o.versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Build Details: %s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&o.versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	// 'schema' subcommand.
	schemaCommand := &cobra.Command{
		Use:    "schema",
		Short:  "Prints the JSON schema of the configuration file.",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reflector := new(jsonschema.Reflector)
			bts, err := json.MarshalIndent(reflector.Reflect(&config.Config{}), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return nil
		},
	}
	rootCommand.AddCommand(schemaCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Prints an example configuration file.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.DefaultConfigText)
		},
	}
	rootCommand.AddCommand(configCommand)

	// 'log' help topic.
	logCommand := &cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	tracer	Log the progress of a trace and a summary at the end (default)
	native	Log ptrace requests and the wait status of the traced program
	disasm	Log the decode cache

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	}
	rootCommand.AddCommand(logCommand)

	return rootCommand
}

// Execute runs insdump with args and returns the exit status of the
// process: 0 when the traced program ran to completion, 1 otherwise.
func Execute(args []string) int {
	return execute(newCommand(os.Stdout, os.Stderr), args)
}

func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	stderr := root.ErrOrStderr()
	fmt.Fprintf(stderr, "%s: %v\n", progName(), err)
	if errors.Is(err, errUsage) {
		fmt.Fprint(stderr, root.UsageString())
	}
	return 1
}

func progName() string {
	return filepath.Base(os.Args[0])
}

func traceCmd(cmd *cobra.Command, o *options, args []string) error {
	if err := logflags.Setup(o.log, o.logOutput, o.logDest); err != nil {
		return err
	}
	defer logflags.Close()

	if err := o.applyConfig(cmd); err != nil {
		return err
	}

	target, err := o.targetCommand(args)
	if err != nil {
		return err
	}

	flavour, err := proc.ParseAssemblyFlavour(o.syntax)
	if err != nil {
		return &usageError{err}
	}
	colorMode, err := colorize.ParseMode(o.color)
	if err != nil {
		return &usageError{err}
	}
	if o.lineCapacity < proc.MinLineCapacity {
		return usageErrorf("--line-capacity must be at least %d, got %d", proc.MinLineCapacity, o.lineCapacity)
	}
	if o.decodeCache < 0 {
		return usageErrorf("--decode-cache must not be negative, got %d", o.decodeCache)
	}

	arch, err := proc.NativeArch()
	if err != nil {
		return err
	}
	disasm, err := proc.NewCachedDisassembler(proc.NewDisassembler(arch, flavour), o.decodeCache)
	if err != nil {
		return err
	}

	var out io.Writer = o.stdout
	var style proc.LineStyle
	if colorize.Enabled(colorMode, o.stdout) {
		out = colorize.Writer(o.stdout)
		style = colorize.NewHighlighter(flavour, colorize.DefaultStyle)
	}

	p, err := native.Launch(native.LaunchConfig{
		Cmd:    target,
		Wd:     o.workingDir,
		Arch:   arch,
		Stdin:  os.Stdin,
		Stdout: o.stdout,
		Stderr: o.stderr,
		Name:   progName(),
	})
	if err != nil {
		return err
	}

	var decodeErrors io.Writer
	if o.decodeErrors {
		decodeErrors = o.stderr
	}
	t, err := tracer.New(p, tracer.Config{
		Arch:          arch,
		Disassembler:  disasm,
		LineCapacity:  o.lineCapacity,
		Out:           out,
		FlushEachLine: isatty.IsTerminal(o.stdout.Fd()),
		Style:         style,
		DecodeErrors:  decodeErrors,
		Name:          progName(),
		FromEntry:     o.fromEntry,
	})
	if err != nil {
		killTarget(p)
		return err
	}
	if _, err := t.Run(); err != nil {
		killTarget(p)
		return err
	}
	logflags.TracerLogger().WithField("pid", p.Pid()).Debugf("target exited with status %d", p.ExitStatus())
	return nil
}

// killTarget terminates the child after a trace failure.
func killTarget(p *native.Process) {
	if err := p.Kill(); err != nil {
		logflags.NativeLogger().WithField("pid", p.Pid()).Debugf("could not kill target: %v", err)
	}
}

// applyConfig fills in the flags that were not given on the command line
// from the configuration file.
func (o *options) applyConfig(cmd *cobra.Command) error {
	conf, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if conf.Syntax != "" && !flags.Changed("syntax") {
		o.syntax = conf.Syntax
	}
	if conf.Color != "" && !flags.Changed("color") {
		o.color = conf.Color
	}
	if conf.LineCapacity != nil && !flags.Changed("line-capacity") {
		o.lineCapacity = *conf.LineCapacity
	}
	if conf.DecodeCache != nil && !flags.Changed("decode-cache") {
		o.decodeCache = *conf.DecodeCache
	}
	if conf.DecodeErrors && !flags.Changed("decode-errors") {
		o.decodeErrors = true
	}
	if conf.FromEntry && !flags.Changed("from-entry") {
		o.fromEntry = true
	}
	return nil
}

// targetCommand returns the command line of the program to trace.
func (o *options) targetCommand(args []string) ([]string, error) {
	if o.command == "" {
		if len(args) == 0 {
			return nil, usageErrorf("missing command")
		}
		return args, nil
	}
	if len(args) > 0 {
		return nil, usageErrorf("cannot use both --command and a COMMAND argument")
	}
	v, err := argv.Argv(o.command,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, usageErrorf("malformed --command: %v", err)
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, usageErrorf("--command must be a single command without pipes")
	}
	return v[0], nil
}
