// Package main provides the frames CLI for inspecting, verifying and
// importing envelopes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/frames/internal/log"
	"github.com/born-ml/frames/internal/serialization"
)

const version = "v0.1.0-dev"

// options are the flags shared by all subcommands.
type options struct {
	logLevel     string
	skipChecksum bool
	validation   string
	device       string
}

func (o *options) readerOptions() (serialization.ReaderOptions, error) {
	level, err := serialization.ParseValidationLevel(o.validation)
	if err != nil {
		return serialization.ReaderOptions{}, err
	}
	return serialization.ReaderOptions{
		SkipChecksumValidation: o.skipChecksum,
		ValidationLevel:        level,
	}, nil
}

func (o *options) logger() (log.Log, error) {
	level, ok := log.ParseLevel(o.logLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", o.logLevel)
	}
	l, err := log.New(level)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "frames",
		Short:         "Inspect and verify serialized frame envelopes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "none", "log level (debug, info, warn, error, none)")
	flags.BoolVar(&opts.skipChecksum, "skip-checksum", false, "skip SHA-256 validation of the envelope header and frame data")
	flags.StringVar(&opts.validation, "validation", serialization.ValidationStrict.String(), "envelope validation (strict, normal, none)")

	root.AddCommand(
		newVersionCmd(),
		newInspectCmd(opts),
		newVerifyCmd(opts),
		newImportCmd(opts),
		newTypesCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "frames %s (envelope format v%d)\n", version, serialization.FormatVersion)
		},
	}
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
