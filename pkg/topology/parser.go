package topology

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/dd0wney/hydroturbo/pkg/parallel"
)

// Sections the parser reads. Everything else is skipped.
const (
	secJunctions   = "JUNCTIONS"
	secReservoirs  = "RESERVOIRS"
	secTanks       = "TANKS"
	secPipes       = "PIPES"
	secPumps       = "PUMPS"
	secValves      = "VALVES"
	secCoordinates = "COORDINATES"
)

var minFields = map[string]int{
	secJunctions:   1,
	secReservoirs:  1,
	secTanks:       1,
	secPipes:       3,
	secPumps:       3,
	secValves:      3,
	secCoordinates: 3,
}

const maxLineSize = 1 << 20

// span is the byte range of one section body.
type span struct {
	name       string
	start, end int64
}

// spanResult holds whatever one span produced.
type spanResult struct {
	nodes  []Node
	links  []Link
	coords []coord
}

type coord struct {
	id string
	p  Point
}

// Parse reads the network document at path. Sections are located in one
// sequential pass over a read-only mapping, then parsed concurrently on at
// most workers goroutines (<= 0 selects GOMAXPROCS).
//
// Node order follows the engine: junctions in file order, then reservoirs
// and tanks in order of appearance. Links keep their order of appearance
// across the PIPES, PUMPS and VALVES sections.
func Parse(path string, workers int) (*Topology, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("map document %s: %w", path, err)
	}
	defer r.Close()

	spans, err := scanSections(r)
	if err != nil {
		return nil, fmt.Errorf("scan sections of %s: %w", path, err)
	}

	results := make([]spanResult, len(spans))
	tasks := make([]parallel.Task, len(spans))
	for i, sp := range spans {
		tasks[i] = func() error {
			res, err := parseSpan(r, sp)
			if err != nil {
				return fmt.Errorf("parse [%s] at offset %d: %w", sp.name, sp.start, err)
			}
			results[i] = res
			return nil
		}
	}
	if err := parallel.Run(workers, tasks...); err != nil {
		return nil, err
	}

	return assemble(spans, results), nil
}

// scanSections finds every [SECTION] header of interest. A section body
// ends at the next header of any kind.
func scanSections(r *mmap.ReaderAt) ([]span, error) {
	size := int64(r.Len())
	br := bufio.NewReaderSize(io.NewSectionReader(r, 0, size), 64*1024)

	var (
		spans  []span
		open   = -1
		offset int64
	)
	for {
		line, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// Oversized line: consume the rest of it.
			n := int64(len(line))
			for err == bufio.ErrBufferFull {
				line, err = br.ReadSlice('\n')
				n += int64(len(line))
			}
			offset += n
			if err != nil && err != io.EOF {
				return nil, err
			}
			if err == io.EOF {
				break
			}
			continue
		}
		lineStart := offset
		offset += int64(len(line))

		if name, ok := sectionHeader(line); ok {
			if open >= 0 {
				spans[open].end = lineStart
				open = -1
			}
			if _, wanted := minFields[name]; wanted {
				spans = append(spans, span{name: name, start: offset, end: size})
				open = len(spans) - 1
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return spans, nil
}

func sectionHeader(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) < 3 || line[0] != '[' {
		return "", false
	}
	end := bytes.IndexByte(line, ']')
	if end < 2 {
		return "", false
	}
	return strings.ToUpper(string(line[1:end])), true
}

// fields splits a data line, dropping comments after ';'.
func fields(line string) []string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}

func num(f []string, i int) float64 {
	if i >= len(f) {
		return 0
	}
	v, err := strconv.ParseFloat(f[i], 64)
	if err != nil {
		return 0
	}
	return v
}

func str(f []string, i int) string {
	if i >= len(f) {
		return ""
	}
	return f[i]
}

func parseSpan(r *mmap.ReaderAt, sp span) (spanResult, error) {
	var res spanResult
	if sp.end <= sp.start {
		return res, nil
	}
	sc := bufio.NewScanner(io.NewSectionReader(r, sp.start, sp.end-sp.start))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	need := minFields[sp.name]
	for sc.Scan() {
		f := fields(sc.Text())
		if len(f) < need {
			continue
		}
		switch sp.name {
		case secJunctions:
			res.nodes = append(res.nodes, Node{ID: f[0], Kind: Junction, Value: num(f, 1), Demand: num(f, 2)})
		case secReservoirs:
			res.nodes = append(res.nodes, Node{ID: f[0], Kind: Reservoir, Value: num(f, 1)})
		case secTanks:
			res.nodes = append(res.nodes, Node{ID: f[0], Kind: Tank, Value: num(f, 1)})
		case secPipes:
			res.links = append(res.links, Link{ID: f[0], Kind: Pipe, From: f[1], To: f[2], Length: num(f, 3), Diameter: num(f, 4)})
		case secPumps:
			res.links = append(res.links, Link{ID: f[0], Kind: Pump, From: f[1], To: f[2]})
		case secValves:
			res.links = append(res.links, Link{ID: f[0], Kind: Valve, From: f[1], To: f[2], Diameter: num(f, 3), ValveType: strings.ToUpper(str(f, 4))})
		case secCoordinates:
			res.coords = append(res.coords, coord{id: f[0], p: Point{X: num(f, 1), Y: num(f, 2)}})
		}
	}
	return res, sc.Err()
}

func assemble(spans []span, results []spanResult) *Topology {
	order := make([]int, len(spans))
	for i := range order {
		order[i] = i
	}
	// Junctions first; everything else stays in file order.
	sort.SliceStable(order, func(a, b int) bool {
		return spans[order[a]].name == secJunctions && spans[order[b]].name != secJunctions
	})

	var (
		nodes  []Node
		links  []Link
		coords = make(map[string]Point)
	)
	for _, i := range order {
		res := results[i]
		nodes = append(nodes, res.nodes...)
		links = append(links, res.links...)
		for _, c := range res.coords {
			coords[c.id] = c.p
		}
	}
	return New(nodes, links, coords)
}
