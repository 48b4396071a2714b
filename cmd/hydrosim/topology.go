package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dd0wney/hydroturbo/pkg/logging"
	"github.com/dd0wney/hydroturbo/pkg/topology"
)

func topologyCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("topology", flag.ContinueOnError)
	workers := fs.Int("workers", 0, "Parser goroutines (0 = GOMAXPROCS)")
	noCache := fs.Bool("no-cache", false, "Parse without reading or writing the cache")
	refresh := fs.Bool("refresh", false, "Discard the cache before parsing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: hydrosim topology [-workers N] [-no-cache] [-refresh] <document>")
	}
	doc := fs.Arg(0)
	if _, err := os.Stat(doc); err != nil {
		return err
	}

	p := topology.NewDocumentProvider(doc, logging.NewFromEnv())
	p.Workers = *workers
	switch {
	case *noCache:
		p.Cache = nil
	case *refresh:
		if err := p.Cache.Remove(); err != nil {
			return fmt.Errorf("remove cache: %w", err)
		}
	}

	t, err := p.Topology()
	if err != nil {
		return err
	}
	describe(w, t)
	if p.Cache != nil {
		fmt.Fprintf(w, "cache:       %s\n", p.Cache.Path())
	}
	return nil
}

func describe(w io.Writer, t *topology.Topology) {
	links := make(map[topology.Kind]int)
	for _, l := range t.Links {
		links[l.Kind]++
	}
	fmt.Fprintf(w, "nodes:       %d (%d junctions, %d reservoirs, %d tanks)\n",
		t.NodeCount(),
		len(t.NodesOfKind(topology.Junction)),
		len(t.NodesOfKind(topology.Reservoir)),
		len(t.NodesOfKind(topology.Tank)))
	fmt.Fprintf(w, "links:       %d (%d pipes, %d pumps, %d valves)\n",
		t.LinkCount(), links[topology.Pipe], links[topology.Pump], links[topology.Valve])
	fmt.Fprintf(w, "coordinates: %d\n", len(t.Coords))
}
