// Package session keeps one network model loaded in an external hydraulic
// engine and runs many isolated scenarios against it.
//
// Open performs the expensive work once: it creates the engine project,
// loads the document, opens the hydraulic solver and captures a baseline of
// every element's demand, status and setting. Each scenario then restores
// that baseline, applies its overrides and re-initializes the solver in
// place. A Context is not safe for concurrent use; run one per goroutine.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
	"github.com/dd0wney/hydroturbo/pkg/topology"
)

// Context is a model execution context bound to one engine instance.
type Context struct {
	doc     string
	h       *engine.Handle
	topo    *topology.Topology
	base    baseline
	logger  logging.Logger
	metrics *metrics.Registry

	// Index vectors 1..N and 1..M, and the value buffers every scenario
	// reuses.
	nodeIdx  []int32
	linkIdx  []int32
	pressure []float64
	flow     []float64
	nodePos  map[string]int
	xlate    translator

	tempDir string

	projectCreated bool
	modelOpen      bool
	hydraulicsOpen bool
	closed         bool
}

// Open loads documentPath into lib and prepares it for scenarios. On
// failure every partially acquired resource is released and the returned
// error is a *StageError naming the stage, or wraps ErrResourceNotFound
// when the document does not exist.
func Open(documentPath string, lib engine.Library, opts ...Option) (*Context, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger).With(logging.Component("session"), logging.Path(documentPath))

	if _, err := os.Stat(documentPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: network document %s", ErrResourceNotFound, documentPath)
		}
		return nil, fmt.Errorf("stat network document: %w", err)
	}

	hopts := []engine.HandleOption{
		engine.WithLogger(logger),
		engine.WithWarningHook(func(call string, _ engine.Status) { o.metrics.RecordEngineWarning(call) }),
	}
	if o.perIndex {
		hopts = append(hopts, engine.WithoutBatch())
	}

	c := &Context{
		doc:     documentPath,
		h:       engine.NewHandle(lib, hopts...),
		logger:  logger,
		metrics: o.metrics,
	}

	timer := logging.StartTimer(logger, "model context opened")
	if err := c.build(o); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			logger.Error("model context construction failed", logging.Stage(string(se.Stage)), logging.Error(se.Err))
			var ee *engine.EngineError
			if errors.As(err, &ee) {
				o.metrics.RecordEngineError(ee.Call)
			}
		}
		if terr := c.teardown(); terr != nil {
			logger.Warn("rollback after failed open", logging.Error(terr))
		}
		return nil, err
	}
	timer.End(
		logging.Int("nodes", c.topo.NodeCount()),
		logging.Int("links", c.topo.LinkCount()),
		logging.Bool("batched", c.h.Batched()),
	)
	c.metrics.SessionOpened()
	return c, nil
}

func (c *Context) build(o options) error {
	if err := c.h.CreateProject(); err != nil {
		return &StageError{Stage: StageCreateProject, Err: err}
	}
	c.projectCreated = true

	dir, err := os.MkdirTemp(o.tempRoot, "hydro-session-*")
	if err != nil {
		return &StageError{Stage: StageOpenModel, Err: fmt.Errorf("create scratch directory: %w", err)}
	}
	c.tempDir = dir
	if err := c.h.Open(c.doc, filepath.Join(dir, "model.rpt"), filepath.Join(dir, "model.out")); err != nil {
		return &StageError{Stage: StageOpenModel, Err: err}
	}
	c.modelOpen = true

	if err := c.loadTopology(o.provider); err != nil {
		return &StageError{Stage: StageLoadTopology, Err: err}
	}

	if err := c.h.OpenH(); err != nil {
		return &StageError{Stage: StageOpenHydraulics, Err: err}
	}
	c.hydraulicsOpen = true

	c.base, err = captureBaseline(c.h, c.topo.NodeCount(), c.topo.LinkCount())
	if err != nil {
		return &StageError{Stage: StageCaptureBaseline, Err: err}
	}
	return nil
}

func (c *Context) loadTopology(p topology.Provider) error {
	var (
		topo *topology.Topology
		err  error
	)
	if p == nil {
		topo, err = topology.EngineProvider{Handle: c.h}.Topology()
		if err != nil {
			return err
		}
	} else {
		nodes, err := c.h.Count(engine.NodeCount)
		if err != nil {
			return err
		}
		links, err := c.h.Count(engine.LinkCount)
		if err != nil {
			return err
		}
		if topo, err = p.Topology(); err != nil {
			return fmt.Errorf("topology provider: %w", err)
		}
		if topo.NodeCount() != nodes || topo.LinkCount() != links {
			return fmt.Errorf("topology provider reports %d nodes and %d links, engine has %d and %d",
				topo.NodeCount(), topo.LinkCount(), nodes, links)
		}
		if err := matchIDs("node", topo.NodeIDs(), c.h.NodeID); err != nil {
			return err
		}
		if err := matchIDs("link", topo.LinkIDs(), c.h.LinkID); err != nil {
			return err
		}
	}

	c.topo = topo
	n, m := topo.NodeCount(), topo.LinkCount()
	c.nodeIdx = sequence(n)
	c.linkIdx = sequence(m)
	c.pressure = make([]float64, n)
	c.flow = make([]float64, m)
	c.nodePos = make(map[string]int, n)
	for i, id := range topo.NodeIDs() {
		if _, dup := c.nodePos[id]; !dup {
			c.nodePos[id] = i
		}
	}
	return nil
}

// matchIDs checks that ids lists the engine's elements in engine order.
// Overrides are translated through these positions, so any disagreement
// would silently retarget them.
func matchIDs(kind string, ids []string, engineID func(int) (string, error)) error {
	for i, id := range ids {
		want, err := engineID(i + 1)
		if err != nil {
			return err
		}
		if id != want {
			return fmt.Errorf("topology provider %s %d is %q, engine has %q", kind, i+1, id, want)
		}
	}
	return nil
}

func sequence(n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = int32(i + 1)
	}
	return s
}

// teardown releases engine state in reverse acquisition order and removes
// the scratch directory. The first failure is returned; later ones are
// logged.
func (c *Context) teardown() error {
	var first error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		if first == nil {
			first = err
			return
		}
		c.logger.Warn("teardown step failed", logging.Operation(step), logging.Error(err))
	}

	if c.hydraulicsOpen {
		record("close_hydraulics", c.h.CloseH())
		c.hydraulicsOpen = false
	}
	if c.modelOpen {
		record("close_model", c.h.Close())
		c.modelOpen = false
	}
	if c.projectCreated {
		record("delete_project", c.h.DeleteProject())
		c.projectCreated = false
	}
	if c.tempDir != "" {
		record("remove_scratch", os.RemoveAll(c.tempDir))
		c.tempDir = ""
	}
	return first
}

// Close releases the engine. It is idempotent; only the first call does
// any work.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.teardown()
	c.metrics.SessionClosed()
	if err != nil {
		c.logger.Error("model context close failed", logging.Error(err))
		return err
	}
	c.logger.Debug("model context closed")
	return nil
}

// Topology returns the network layout.
func (c *Context) Topology() *topology.Topology { return c.topo }

// NodeIDs returns node IDs in engine order.
func (c *Context) NodeIDs() []string { return c.topo.NodeIDs() }

// LinkIDs returns link IDs in engine order.
func (c *Context) LinkIDs() []string { return c.topo.LinkIDs() }

// DocumentPath returns the loaded document.
func (c *Context) DocumentPath() string { return c.doc }

// TempDir returns the scratch directory holding engine report files. It is
// empty after Close.
func (c *Context) TempDir() string { return c.tempDir }

// Batched reports whether batched engine accessors are in use.
func (c *Context) Batched() bool { return c.h.Batched() }

// Profile returns the engine's solver timing breakdown, if it keeps one.
func (c *Context) Profile() (engine.Profile, bool) {
	if c.closed {
		return engine.Profile{}, false
	}
	return c.h.Profile()
}

// NodeValues reads prop for every node (ids == nil) or for the given IDs.
// Unknown IDs are left out of the result.
func (c *Context) NodeValues(prop engine.NodeProperty, ids []string) (map[string]float64, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if ids == nil {
		vals := make([]float64, c.topo.NodeCount())
		if err := c.h.AllNodeValues(prop, vals); err != nil {
			return nil, err
		}
		return zipValues(c.topo.NodeIDs(), vals), nil
	}
	idx, kept := resolve(ids, c.topo.NodeIndex)
	vals := make([]float64, len(idx))
	if err := c.h.NodeValues(prop, idx, vals); err != nil {
		return nil, err
	}
	return zipValues(kept, vals), nil
}

// LinkValues reads prop for every link (ids == nil) or for the given IDs.
// Unknown IDs are left out of the result.
func (c *Context) LinkValues(prop engine.LinkProperty, ids []string) (map[string]float64, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if ids == nil {
		vals := make([]float64, c.topo.LinkCount())
		if err := c.h.AllLinkValues(prop, vals); err != nil {
			return nil, err
		}
		return zipValues(c.topo.LinkIDs(), vals), nil
	}
	idx, kept := resolve(ids, c.topo.LinkIndex)
	vals := make([]float64, len(idx))
	if err := c.h.LinkValues(prop, idx, vals); err != nil {
		return nil, err
	}
	return zipValues(kept, vals), nil
}

func resolve(ids []string, lookup func(string) (int, bool)) ([]int32, []string) {
	idx := make([]int32, 0, len(ids))
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if i, ok := lookup(id); ok {
			idx = append(idx, int32(i))
			kept = append(kept, id)
		}
	}
	return idx, kept
}

func zipValues(ids []string, vals []float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		out[id] = vals[i]
	}
	return out
}

// seconds converts a duration to whole engine seconds.
func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
