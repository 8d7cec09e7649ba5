// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - Root command, global flags and process entry point.

package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Option customizes the command tree, mainly for tests.
type Option func(*options)

type options struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
	lines   LineReader
	version string
}

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
		o.errOut = errOut
	}
}

// WithClock replaces the clock used for sessions, usage and exports.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLineReader feeds the chat REPL from r instead of the terminal.
func WithLineReader(r LineReader) Option {
	return func(o *options) { o.lines = r }
}

// WithVersion sets the string printed by the version command.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

func defaultOptions() options {
	return options{
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		now:     time.Now,
		version: "dev",
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the tauros command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	root, _ := newRoot(opts...)
	return root
}

func newRoot(opts ...Option) (*cobra.Command, *app) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetEnvPrefix("TAUROS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	a := newApp(o, v)

	root := &cobra.Command{
		Use:   "tauros",
		Short: "Terminal chat client for Mistral with templates and personas",
		Long: `tauros talks to the Mistral chat completions API.

Messages can be shaped by templates (email, social posts, bug reports) and
answered in the voice of a persona and tone. The conversation, the API key
and usage counters are kept in local storage between runs.

Run without a subcommand to start the interactive chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context(), chatOptions{})
		},
	}
	root.SetIn(o.in)
	root.SetOut(o.out)
	root.SetErr(o.errOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default $XDG_CONFIG_HOME/tauros/config.toml)")
	pf.Bool("offline", false, "answer from the local simulator, no request leaves the machine")
	pf.Bool("ephemeral", false, "keep conversation, key and usage in memory only")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	for _, name := range []string{"config", "offline", "ephemeral", "log-level", "log-format"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		newChatCmd(a),
		newSendCmd(a),
		newRenderCmd(a),
		newTemplatesCmd(a),
		newPersonasCmd(a),
		newModelsCmd(a),
		newTestCmd(a),
		newUsageCmd(a),
		newKeyCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Run executes the command line args and returns the process exit code.
// Errors are displayed once, on the error writer.
func Run(ctx context.Context, args []string, opts ...Option) int {
	root, a := newRoot(opts...)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		DisplayError(a.opts.errOut, err, a.jsonOut)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Execute runs tauros with the process arguments.
func Execute(version string) int {
	return Run(context.Background(), os.Args[1:], WithVersion(version))
}
