// Package topology describes the element layout of a loaded network: the
// ordered node and link IDs, their 1-based engine indices, link endpoints
// and node coordinates.
package topology

import "slices"

// Kind classifies network elements.
type Kind uint8

const (
	Junction Kind = iota
	Reservoir
	Tank
	Pipe
	Pump
	Valve
)

func (k Kind) String() string {
	switch k {
	case Junction:
		return "junction"
	case Reservoir:
		return "reservoir"
	case Tank:
		return "tank"
	case Pipe:
		return "pipe"
	case Pump:
		return "pump"
	case Valve:
		return "valve"
	}
	return "unknown"
}

// Point is a plan coordinate.
type Point struct {
	X, Y float64
}

// Node is one node record. Value is the elevation of junctions and tanks
// and the total head of reservoirs; Demand is the junction base demand.
type Node struct {
	ID     string
	Kind   Kind
	Value  float64
	Demand float64
}

// Link is one link record.
type Link struct {
	ID        string
	Kind      Kind
	From, To  string
	Length    float64
	Diameter  float64
	ValveType string
}

// Topology is immutable once built. Exported fields exist for encoding;
// use the accessors.
type Topology struct {
	Nodes  []Node
	Links  []Link
	Coords map[string]Point

	nodeIndex map[string]int
	linkIndex map[string]int
}

// New builds a topology and its index maps.
func New(nodes []Node, links []Link, coords map[string]Point) *Topology {
	if coords == nil {
		coords = make(map[string]Point)
	}
	t := &Topology{Nodes: nodes, Links: links, Coords: coords}
	t.reindex()
	return t
}

// FromIDs builds a topology that only knows IDs, as reported by an engine.
func FromIDs(nodeIDs, linkIDs []string) *Topology {
	nodes := make([]Node, len(nodeIDs))
	for i, id := range nodeIDs {
		nodes[i] = Node{ID: id}
	}
	links := make([]Link, len(linkIDs))
	for i, id := range linkIDs {
		links[i] = Link{ID: id}
	}
	return New(nodes, links, nil)
}

// reindex rebuilds the lookup maps. The first occurrence of a duplicate ID
// wins.
func (t *Topology) reindex() {
	t.nodeIndex = make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		if _, dup := t.nodeIndex[n.ID]; !dup {
			t.nodeIndex[n.ID] = i + 1
		}
	}
	t.linkIndex = make(map[string]int, len(t.Links))
	for i, l := range t.Links {
		if _, dup := t.linkIndex[l.ID]; !dup {
			t.linkIndex[l.ID] = i + 1
		}
	}
}

func (t *Topology) NodeCount() int { return len(t.Nodes) }
func (t *Topology) LinkCount() int { return len(t.Links) }

// NodeIDs returns node IDs in engine index order.
func (t *Topology) NodeIDs() []string {
	ids := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// LinkIDs returns link IDs in engine index order.
func (t *Topology) LinkIDs() []string {
	ids := make([]string, len(t.Links))
	for i, l := range t.Links {
		ids[i] = l.ID
	}
	return ids
}

// NodeIndex returns the 1-based engine index of id.
func (t *Topology) NodeIndex(id string) (int, bool) {
	i, ok := t.nodeIndex[id]
	return i, ok
}

// LinkIndex returns the 1-based engine index of id.
func (t *Topology) LinkIndex(id string) (int, bool) {
	i, ok := t.linkIndex[id]
	return i, ok
}

// Coordinates returns the plan position of node id.
func (t *Topology) Coordinates(id string) (Point, bool) {
	p, ok := t.Coords[id]
	return p, ok
}

// LinkEnds returns the start and end node of link id.
func (t *Topology) LinkEnds(id string) (from, to string, ok bool) {
	i, ok := t.linkIndex[id]
	if !ok {
		return "", "", false
	}
	l := t.Links[i-1]
	return l.From, l.To, true
}

// NodesOfKind returns the IDs of every node of kind k, in index order.
func (t *Topology) NodesOfKind(k Kind) []string {
	var ids []string
	for _, n := range t.Nodes {
		if n.Kind == k {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Equal reports whether two topologies have the same element records.
func (t *Topology) Equal(o *Topology) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.Nodes, o.Nodes) || !slices.Equal(t.Links, o.Links) {
		return false
	}
	if len(t.Coords) != len(o.Coords) {
		return false
	}
	for id, p := range t.Coords {
		if q, ok := o.Coords[id]; !ok || q != p {
			return false
		}
	}
	return true
}
