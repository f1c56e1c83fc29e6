// Package metrics exposes Prometheus counters for frame migration between
// host and device memory.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Migration directions.
const (
	DirectionToHost   = "device_to_host"
	DirectionToDevice = "host_to_device"
)

// Collector counts migrated frames, migrated bytes and failures.
// A nil *Collector is valid and records nothing.
type Collector struct {
	framesMigrated *prometheus.CounterVec
	bytesMigrated  *prometheus.CounterVec
	errors         *prometheus.CounterVec

	toHost   migration
	toDevice migration
}

type migration struct {
	frames atomic.Int64
	bytes  atomic.Int64
}

// Migration is a snapshot of the migration totals for one direction.
type Migration struct {
	Frames int64
	Bytes  int64
}

// New creates a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	return &Collector{
		framesMigrated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_migrated_total",
				Help:      "Total frames copied between host and device memory.",
			},
			[]string{"direction"},
		),
		bytesMigrated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_migrated_total",
				Help:      "Total bytes copied between host and device memory.",
			},
			[]string{"direction"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "serialize_errors_total",
				Help:      "Total serialization failures by kind.",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all collectors with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.framesMigrated, c.bytesMigrated, c.errors} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Migrated records one frame of n bytes copied in direction.
func (c *Collector) Migrated(direction string, n int) {
	if c == nil {
		return
	}
	c.framesMigrated.WithLabelValues(direction).Inc()
	c.bytesMigrated.WithLabelValues(direction).Add(float64(n))
	if m := c.migration(direction); m != nil {
		m.frames.Add(1)
		m.bytes.Add(int64(n))
	}
}

func (c *Collector) migration(direction string) *migration {
	switch direction {
	case DirectionToHost:
		return &c.toHost
	case DirectionToDevice:
		return &c.toDevice
	default:
		return nil
	}
}

// Totals returns the frames and bytes copied in direction so far.
// A nil collector reports zero.
func (c *Collector) Totals(direction string) Migration {
	if c == nil {
		return Migration{}
	}
	m := c.migration(direction)
	if m == nil {
		return Migration{}
	}
	return Migration{Frames: m.frames.Load(), Bytes: m.bytes.Load()}
}

// Failed records one failure of the given kind.
func (c *Collector) Failed(kind string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(kind).Inc()
}

// FramesMigrated returns the frame counter for direction.
func (c *Collector) FramesMigrated(direction string) prometheus.Counter {
	return c.framesMigrated.WithLabelValues(direction)
}

// BytesMigrated returns the byte counter for direction.
func (c *Collector) BytesMigrated(direction string) prometheus.Counter {
	return c.bytesMigrated.WithLabelValues(direction)
}

// Errors returns the failure counter for kind.
func (c *Collector) Errors(kind string) prometheus.Counter {
	return c.errors.WithLabelValues(kind)
}
