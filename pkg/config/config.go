// Package config loads batch run descriptions for the hydrosim command.
//
// A batch names one network document, the engine library to bind and a list
// of scenarios. Files are YAML; durations are Go duration strings ("6h",
// "15m"). A few fields can be overridden from the environment so the same
// file works across machines.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/session"
	"github.com/dd0wney/hydroturbo/pkg/stream"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvLibrary   = "HYDRO_LIBRARY"
	EnvOutputDir = "HYDRO_OUTPUT_DIR"
	EnvLogLevel  = "LOG_LEVEL"
)

// Scenario run modes.
const (
	ModeMemory = "memory"
	ModeStream = "stream"
)

// Batch is one batch file.
type Batch struct {
	// Library is the path of the engine shared library.
	Library string `yaml:"library" validate:"required"`
	// Network is the network document; relative paths resolve against the
	// batch file's directory.
	Network   string `yaml:"network" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`
	Format    string `yaml:"format" validate:"omitempty,oneof=stream dense"`
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// Workers bounds topology parsing; 0 selects GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`
	// Threads caps the solver's OpenMP threads; 0 keeps the library default.
	Threads       int    `yaml:"threads" validate:"gte=0,lte=1024"`
	TopologyCache bool   `yaml:"topology_cache"`
	PerIndex      bool   `yaml:"per_index"`
	MetricsAddr   string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	Scenarios []Scenario `yaml:"scenarios" validate:"required,min=1,dive"`
}

// Scenario is one entry of a batch.
type Scenario struct {
	Name           string             `yaml:"name" validate:"required,max=100"`
	Mode           string             `yaml:"mode" validate:"omitempty,oneof=memory stream"`
	Duration       time.Duration      `yaml:"duration"`
	ReportInterval time.Duration      `yaml:"report_interval"`
	Reset          string             `yaml:"reset" validate:"omitempty,oneof=restore_baseline continue"`
	Demands        map[string]float64 `yaml:"demands" validate:"omitempty,dive,keys,min=1,endkeys,gte=0"`
	Status         map[string]string  `yaml:"status" validate:"omitempty,dive,keys,min=1,endkeys,oneof=open closed"`
	Settings       map[string]float64 `yaml:"settings" validate:"omitempty,dive,keys,min=1,endkeys"`
}

// Load reads, resolves and validates the batch file at path. Environment
// overrides are applied before validation.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, err
	}
	b.ApplyEnv(os.Getenv)
	b.resolve(filepath.Dir(path))
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Parse decodes a batch without validating it. Unknown keys are rejected.
func Parse(data []byte) (*Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode batch file: %w", err)
	}
	return &b, nil
}

// ApplyEnv overrides fields from the environment through getenv.
func (b *Batch) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLibrary); v != "" {
		b.Library = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		b.OutputDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		b.LogLevel = v
	}
}

func (b *Batch) resolve(dir string) {
	if b.Network != "" && !filepath.IsAbs(b.Network) {
		b.Network = filepath.Join(dir, b.Network)
	}
	if b.OutputDir != "" && !filepath.IsAbs(b.OutputDir) {
		b.OutputDir = filepath.Join(dir, b.OutputDir)
	}
}

// OutputFormat returns the configured output form.
func (b *Batch) OutputFormat() stream.Format {
	f, _ := stream.ParseFormat(b.Format)
	return f
}

// Streamed reports whether the scenario writes its results to disk.
func (s Scenario) Streamed() bool { return s.Mode == ModeStream }

// Overrides converts the scenario's changes to session form.
func (s Scenario) Overrides() session.Overrides {
	o := session.Overrides{Demands: s.Demands, Settings: s.Settings}
	if len(s.Status) > 0 {
		o.Status = make(map[string]float64, len(s.Status))
		for id, st := range s.Status {
			o.Status[id] = engine.LinkOpen
			if st == "closed" {
				o.Status[id] = engine.LinkClosed
			}
		}
	}
	return o
}

// Options returns the in-memory run options of the scenario.
func (s Scenario) Options() session.ScenarioOptions {
	opts := session.ScenarioOptions{Overrides: s.Overrides(), Duration: s.Duration}
	if s.Reset == session.Continue.String() {
		opts.Reset = session.Continue
	}
	return opts
}

// StreamOptions returns the streamed run options of the scenario.
func (s Scenario) StreamOptions(format stream.Format) session.StreamOptions {
	return session.StreamOptions{
		ScenarioOptions: s.Options(),
		ReportInterval:  s.ReportInterval,
		Format:          format,
	}
}
