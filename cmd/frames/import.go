package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/frames/internal/serialize"
	"github.com/born-ml/frames/internal/tensor"
)

func newImportCmd(opts *options) *cobra.Command {
	var toDevice bool

	cmd := &cobra.Command{
		Use:   "import <in.safetensors> <out>",
		Short: "Convert a safetensors file into a state dict envelope",
		Long: `Read a safetensors file and write it as an envelope holding a state dict.
With --to-device every tensor is staged in device memory first, so the
envelope records device placement and verify copies the frames back.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			alloc, closeAlloc, err := newAllocator(opts.device)
			if err != nil {
				return err
			}
			defer closeAlloc()

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			sd, err := tensor.ReadSafetensors(in)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if toDevice {
				if sd, err = sd.ToDevice(alloc); err != nil {
					return err
				}
				defer sd.Release()
			}

			codec := serialize.New(serialize.WithAllocator(alloc), serialize.WithLogger(logger))
			data, err := codec.Marshal(sd)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil { //nolint:gosec // G306: envelopes are not secrets
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d tensors, %d bytes\n", args[1], sd.Len(), len(data))
			return err
		},
	}
	cmd.Flags().BoolVar(&toDevice, "to-device", false, "stage tensors in device memory before encoding")
	cmd.Flags().StringVar(&opts.device, "device", "emulated", "allocator for device frames (emulated, webgpu)")
	return cmd
}
