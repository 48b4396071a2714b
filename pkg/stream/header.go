package stream

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed preamble of an append-stream output.
type Header struct {
	Version        uint16
	NodeCount      uint32
	LinkCount      uint32
	Created        int64 // unix seconds
	ReportInterval int32 // seconds
}

// MarshalBinary encodes h into exactly HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic)
	binary.LittleEndian.PutUint16(buf[8:10], h.Version)
	// buf[10:12] reserved
	binary.LittleEndian.PutUint32(buf[12:16], h.NodeCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.LinkCount)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.Created))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.ReportInterval))
	return buf, nil
}

// UnmarshalBinary decodes and verifies a header.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", ErrProtocolCorruption, len(buf), HeaderSize)
	}
	if string(buf[0:8]) != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrProtocolCorruption, buf[0:8])
	}
	h.Version = binary.LittleEndian.Uint16(buf[8:10])
	if h.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrProtocolCorruption, h.Version)
	}
	h.NodeCount = binary.LittleEndian.Uint32(buf[12:16])
	h.LinkCount = binary.LittleEndian.Uint32(buf[16:20])
	h.Created = int64(binary.LittleEndian.Uint64(buf[20:28]))
	h.ReportInterval = int32(binary.LittleEndian.Uint32(buf[28:32]))
	return nil
}

// RecordSize is the byte width of one record under h.
func (h Header) RecordSize() int {
	return RecordSize(int(h.NodeCount), int(h.LinkCount))
}
