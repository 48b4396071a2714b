// Package stream persists hydraulic time series with bounded memory.
//
// Two on-disk forms exist. The append-stream form is a fixed 64-byte header
// followed by fixed-width records, one per reported period, plus sidecar
// files for IDs, times and metadata. The dense form preallocates three
// fixed-shape arrays sized to a known step capacity. Both are written step
// by step and finalized with a metadata rewrite.
package stream

import (
	"fmt"
	"strings"
)

// Format selects an on-disk form.
type Format int

const (
	// FormatStream is the append-stream form.
	FormatStream Format = iota
	// FormatDense is the preallocated array form.
	FormatDense
)

func (f Format) String() string {
	if f == FormatDense {
		return "dense"
	}
	return "stream"
}

// ParseFormat accepts "stream" or "dense".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stream":
		return FormatStream, nil
	case "dense":
		return FormatDense, nil
	}
	return FormatStream, fmt.Errorf("unknown output format %q", s)
}

// Append-stream layout.
const (
	Magic      = "HYDSTRM\x00"
	Version    = 2
	HeaderSize = 64
)

// File name suffixes of the append-stream form.
const (
	ExtRecords = ".out"
	ExtNodes   = ".nodes"
	ExtLinks   = ".links"
	ExtTimes   = ".times"
	ExtMeta    = ".meta.json"
)

// File names inside a dense output directory.
const (
	DensePressure = "pressure.f32"
	DenseFlow     = "flow.f32"
	DenseTimes    = "times.i64"
	DenseMeta     = "metadata.json"
)

// Dtype is the element type tag recorded in dense metadata.
const Dtype = "<f4"

// RecordSize returns the byte width of one append-stream record.
func RecordSize(nodes, links int) int {
	return 4 + 4*nodes + 4*links
}

// BaseName strips a trailing ".out" so either form of a stream path works.
func BaseName(path string) string {
	return strings.TrimSuffix(path, ExtRecords)
}
