package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/frames/internal/serialization"
	"github.com/born-ml/frames/internal/serialize"
)

// report is the YAML view of an envelope.
type report struct {
	ID            string            `yaml:"id"`
	CreatedAt     time.Time         `yaml:"created_at"`
	FormatVersion int               `yaml:"format_version"`
	Flags         []string          `yaml:"flags,omitempty"`
	Checksum      string            `yaml:"checksum"`
	Type          typeReport        `yaml:"type"`
	Frames        []frameReport     `yaml:"frames"`
	Keys          map[string]any    `yaml:"keys,omitempty"`
	Metadata      map[string]string `yaml:"metadata,omitempty"`
}

type typeReport struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type frameReport struct {
	Index  int   `yaml:"index"`
	Offset int64 `yaml:"offset"`
	Size   int64 `yaml:"size"`
	Device bool  `yaml:"device"`
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the envelope and object header as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readerOpts, err := opts.readerOptions()
			if err != nil {
				return err
			}
			env, err := readEnvelope(args[0], readerOpts)
			if err != nil {
				return err
			}
			r, err := newReport(env)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return enc.Close()
		},
	}
}

func readEnvelope(path string, opts serialization.ReaderOptions) (*serialization.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	env, err := serialization.Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

func newReport(env *serialization.Envelope) (*report, error) {
	var h serialize.Header
	if err := json.Unmarshal(env.Header.Object, &h); err != nil {
		return nil, fmt.Errorf("object header: %w", err)
	}
	if err := h.Validate(len(env.Payloads)); err != nil {
		return nil, fmt.Errorf("object header: %w", err)
	}

	r := &report{
		ID:            env.Header.ID.String(),
		CreatedAt:     env.Header.CreatedAt,
		FormatVersion: env.Header.FormatVersion,
		Checksum:      fmt.Sprintf("%x", env.Checksum),
		Type:          typeReport{Name: h.Type.Name, Code: fmt.Sprintf("0x%016x", h.Type.Code)},
		Frames:        make([]frameReport, len(env.Header.Frames)),
		Metadata:      env.Header.Metadata,
	}
	if env.HasFlag(serialization.FlagHasDeviceFrames) {
		r.Flags = append(r.Flags, "device_frames")
	}
	if env.HasFlag(serialization.FlagHasMetadata) {
		r.Flags = append(r.Flags, "metadata")
	}
	for i, f := range env.Header.Frames {
		r.Frames[i] = frameReport{Index: i, Offset: f.Offset, Size: f.Size, Device: h.IsDevice[i]}
	}

	if keys := h.Keys(); len(keys) > 0 {
		r.Keys = make(map[string]any, len(keys))
		for _, k := range keys {
			var v any
			if err := h.Get(k, &v); err != nil {
				return nil, err
			}
			r.Keys[k] = v
		}
	}
	return r, nil
}
