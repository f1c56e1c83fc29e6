package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/born-ml/frames/internal/metrics"
	"github.com/born-ml/frames/internal/serialize"
)

func newVerifyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Decode an envelope and rebuild its object",
		Long: `Decode an envelope, validate it and rebuild the object through the
registered deserializer. Device frames are copied to the selected allocator.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readerOpts, err := opts.readerOptions()
			if err != nil {
				return err
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			alloc, closeAlloc, err := newAllocator(opts.device)
			if err != nil {
				return err
			}
			defer closeAlloc()

			collector := metrics.New("frames")
			if err := collector.Register(prometheus.NewRegistry()); err != nil {
				return err
			}

			codec := serialize.New(
				serialize.WithAllocator(alloc),
				serialize.WithLogger(logger),
				serialize.WithMetrics(collector),
				serialize.WithReaderOptions(readerOpts),
			)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			obj, err := codec.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if r, ok := obj.(serialize.Releaser); ok {
				defer r.Release()
			}

			moved := collector.Totals(metrics.DirectionToDevice)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%s: %d frames, %d bytes to device)\n",
				obj.TypeName(), alloc.Device(), moved.Frames, moved.Bytes)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.device, "device", "emulated", "allocator for device frames (emulated, webgpu)")
	return cmd
}
