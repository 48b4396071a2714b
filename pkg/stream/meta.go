package stream

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Meta is the JSON metadata written beside every output. It is written
// once at creation with Completed=false and rewritten when the sink is
// finalized or closed.
type Meta struct {
	Format         string    `json:"format"`
	Version        int       `json:"version"`
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	NodeCount      int       `json:"node_count"`
	LinkCount      int       `json:"link_count"`
	ReportInterval int32     `json:"report_interval"`
	Capacity       int       `json:"capacity"`
	Completed      bool      `json:"completed"`
	ActualSteps    int       `json:"actual_steps"`

	// Dense form only.
	Dtype         string   `json:"dtype,omitempty"`
	PressureShape []int    `json:"pressure_shape,omitempty"`
	FlowShape     []int    `json:"flow_shape,omitempty"`
	TimesShape    []int    `json:"times_shape,omitempty"`
	NodeIDs       []string `json:"node_ids,omitempty"`
	LinkIDs       []string `json:"link_ids,omitempty"`
}

// writeMeta replaces path atomically.
func writeMeta(path string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write metadata: %w", err)
	}
	// CreateTemp uses 0600; match the data files.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install metadata: %w", err)
	}
	return nil
}

// ReadMeta loads metadata from path.
func ReadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %v", ErrProtocolCorruption, path, err)
	}
	return &m, nil
}
