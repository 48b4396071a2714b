package topology

import (
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/metrics"
)

// Provider yields the topology of one network.
type Provider interface {
	Topology() (*Topology, error)
}

// EngineProvider reads counts and IDs from an open engine handle.
type EngineProvider struct {
	Handle *engine.Handle
}

func (p EngineProvider) Topology() (*Topology, error) {
	nodes, err := p.Handle.Count(engine.NodeCount)
	if err != nil {
		return nil, err
	}
	links, err := p.Handle.Count(engine.LinkCount)
	if err != nil {
		return nil, err
	}

	nodeIDs := make([]string, nodes)
	for i := range nodeIDs {
		if nodeIDs[i], err = p.Handle.NodeID(i + 1); err != nil {
			return nil, err
		}
	}
	linkIDs := make([]string, links)
	for i := range linkIDs {
		if linkIDs[i], err = p.Handle.LinkID(i + 1); err != nil {
			return nil, err
		}
	}
	return FromIDs(nodeIDs, linkIDs), nil
}

// DocumentProvider parses a network document, consulting Cache first when
// one is set. A cache that cannot be written is logged and otherwise
// ignored.
type DocumentProvider struct {
	Path    string
	Cache   *Cache
	Workers int
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// NewDocumentProvider returns a cached provider for the document at path.
func NewDocumentProvider(path string, logger logging.Logger) *DocumentProvider {
	return &DocumentProvider{Path: path, Cache: NewCache(path), Logger: logger}
}

func (p *DocumentProvider) Topology() (*Topology, error) {
	logger := logging.OrNop(p.Logger).With(logging.Component("topology"), logging.Path(p.Path))

	if p.Cache != nil {
		t, err := p.Cache.Load()
		if err == nil {
			p.Metrics.RecordTopologyCache("hit")
			logger.Debug("topology cache hit", logging.Int("nodes", t.NodeCount()), logging.Int("links", t.LinkCount()))
			return t, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
		p.Metrics.RecordTopologyCache("miss")
		logger.Debug("topology cache miss", logging.Error(err))
	}

	start := time.Now()
	t, err := Parse(p.Path, p.Workers)
	if err != nil {
		return nil, fmt.Errorf("parse network document: %w", err)
	}
	p.Metrics.RecordTopologyParse(time.Since(start))
	logger.Info("parsed network document",
		logging.Int("nodes", t.NodeCount()),
		logging.Int("links", t.LinkCount()),
		logging.Latency(time.Since(start)))

	if p.Cache != nil {
		if err := p.Cache.Store(t); err != nil {
			p.Metrics.RecordTopologyCache("store_error")
			logger.Warn("failed to store topology cache", logging.Error(err))
		}
	}
	return t, nil
}
