// Package enginetest provides a deterministic in-memory engine for tests.
//
// The fake follows the native library's lifecycle rules closely enough to
// catch ordering bugs: hydraulics must be opened before they are
// initialized, initialized before they run, and a project must exist before
// a model is opened. Its "hydraulics" are a closed-form function of the
// current demands, link statuses, settings and elapsed time.
package enginetest

import (
	"fmt"
	"math"

	"github.com/dd0wney/hydroturbo/pkg/engine"
)

// NodeKind classifies nodes.
type NodeKind int

const (
	Junction NodeKind = iota
	Reservoir
	Tank
)

// LinkKind classifies links.
type LinkKind int

const (
	Pipe LinkKind = iota
	Pump
	Valve
)

// Node describes one fake node.
type Node struct {
	ID        string
	Kind      NodeKind
	Elevation float64
	Demand    float64
}

// Link describes one fake link.
type Link struct {
	ID       string
	Kind     LinkKind
	From, To string
	Status   float64
	Setting  float64
}

// Network is the model a Fake serves.
type Network struct {
	Nodes      []Node
	Links      []Link
	Duration   int64
	HydStep    int64
	ReportStep int64
	Head       float64
	Loss       float64
}

// Net9 returns a nine-node, three-link network with junction "11" at a base
// demand of 150 and junction "12" at 100, simulated for 24h in 1h periods.
func Net9() Network {
	return Network{
		Nodes: []Node{
			{ID: "10", Kind: Junction, Elevation: 710},
			{ID: "11", Kind: Junction, Elevation: 710, Demand: 150},
			{ID: "12", Kind: Junction, Elevation: 700, Demand: 100},
			{ID: "13", Kind: Junction, Elevation: 695, Demand: 100},
			{ID: "21", Kind: Junction, Elevation: 700, Demand: 150},
			{ID: "22", Kind: Junction, Elevation: 695, Demand: 200},
			{ID: "23", Kind: Junction, Elevation: 690, Demand: 150},
			{ID: "9", Kind: Reservoir, Elevation: 800},
			{ID: "2", Kind: Tank, Elevation: 850},
		},
		Links: []Link{
			{ID: "10", Kind: Pipe, From: "10", To: "11", Status: engine.LinkOpen},
			{ID: "9", Kind: Pump, From: "9", To: "10", Status: engine.LinkOpen, Setting: 1},
			{ID: "V1", Kind: Valve, From: "11", To: "12", Status: engine.LinkOpen, Setting: 60},
		},
		Duration:   24 * 3600,
		HydStep:    3600,
		ReportStep: 3600,
		Head:       900,
		Loss:       0.02,
	}
}

var errorTexts = map[engine.Status]string{
	101: "insufficient memory available",
	102: "no network data available",
	103: "hydraulics not initialized",
	104: "no hydraulics for water quality analysis",
	110: "cannot solve network hydraulic equations",
	202: "illegal numeric value assigned to a property",
	203: "undefined node",
	204: "undefined link",
	251: "invalid parameter code",
	302: "cannot open input file",
}

type fault struct {
	code  engine.Status
	after int
	times int
	seen  int
}

// Fake is an in-memory engine.Library. It exposes no batched accessors; use
// Batched for that code path.
type Fake struct {
	net Network

	created, opened, hydOpen, initialized bool

	demand  []float64
	status  []float64
	setting []float64

	t        int64
	pressure []float64
	flow     []float64

	calls  []string
	faults map[string]*fault

	// OpenedPaths records the arguments of the last Open call.
	OpenedPaths [3]string
}

// New returns a Fake serving net.
func New(net Network) *Fake {
	f := &Fake{
		net:      net,
		demand:   make([]float64, len(net.Nodes)),
		status:   make([]float64, len(net.Links)),
		setting:  make([]float64, len(net.Links)),
		pressure: make([]float64, len(net.Nodes)),
		flow:     make([]float64, len(net.Links)),
		faults:   make(map[string]*fault),
	}
	for i, n := range net.Nodes {
		f.demand[i] = n.Demand
	}
	for i, l := range net.Links {
		f.status[i] = l.Status
		f.setting[i] = l.Setting
	}
	return f
}

// Inject makes call return code after `after` successful invocations, for
// `times` invocations (times <= 0 means forever).
func (f *Fake) Inject(call string, code engine.Status, after, times int) {
	f.faults[call] = &fault{code: code, after: after, times: times}
}

// Calls returns every entry point invoked so far, in order.
func (f *Fake) Calls() []string {
	return append([]string(nil), f.calls...)
}

// CallCount returns how often call was invoked.
func (f *Fake) CallCount(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.calls = f.calls[:0]
}

// HydraulicsOpen reports whether the solver is currently open.
func (f *Fake) HydraulicsOpen() bool { return f.hydOpen }

// ProjectExists reports whether a project is currently allocated.
func (f *Fake) ProjectExists() bool { return f.created }

// enter logs call and returns an injected fault status, if any.
func (f *Fake) enter(call string) engine.Status {
	f.calls = append(f.calls, call)
	ft, ok := f.faults[call]
	if !ok {
		return engine.StatusOK
	}
	ft.seen++
	if ft.seen <= ft.after {
		return engine.StatusOK
	}
	if ft.times > 0 && ft.seen > ft.after+ft.times {
		return engine.StatusOK
	}
	return ft.code
}

func (f *Fake) CreateProject() engine.Status {
	if st := f.enter("CreateProject"); st != engine.StatusOK {
		return st
	}
	f.created = true
	return engine.StatusOK
}

func (f *Fake) DeleteProject() engine.Status {
	if st := f.enter("DeleteProject"); st != engine.StatusOK {
		return st
	}
	f.created = false
	return engine.StatusOK
}

func (f *Fake) Open(inpPath, rptPath, outPath string) engine.Status {
	if st := f.enter("Open"); st != engine.StatusOK {
		return st
	}
	if !f.created {
		return 102
	}
	f.OpenedPaths = [3]string{inpPath, rptPath, outPath}
	f.opened = true
	return engine.StatusOK
}

func (f *Fake) Close() engine.Status {
	if st := f.enter("Close"); st != engine.StatusOK {
		return st
	}
	f.opened = false
	return engine.StatusOK
}

func (f *Fake) OpenH() engine.Status {
	if st := f.enter("OpenH"); st != engine.StatusOK {
		return st
	}
	if !f.opened {
		return 102
	}
	f.hydOpen = true
	return engine.StatusOK
}

func (f *Fake) InitH(flag int) engine.Status {
	if st := f.enter("InitH"); st != engine.StatusOK {
		return st
	}
	if !f.hydOpen {
		return 103
	}
	f.t = 0
	f.initialized = true
	return engine.StatusOK
}

func (f *Fake) RunH() (int64, engine.Status) {
	if st := f.enter("RunH"); st.IsFatal() {
		return 0, st
	} else if st != engine.StatusOK {
		f.solve()
		return f.t, st
	}
	if !f.initialized {
		return 0, 103
	}
	f.solve()
	return f.t, engine.StatusOK
}

func (f *Fake) NextH() (int64, engine.Status) {
	if st := f.enter("NextH"); st.IsFatal() {
		return 0, st
	}
	if !f.initialized {
		return 0, 103
	}
	step := f.net.HydStep
	if remaining := f.net.Duration - f.t; remaining < step {
		step = remaining
	}
	if step <= 0 {
		return 0, engine.StatusOK
	}
	f.t += step
	return step, engine.StatusOK
}

func (f *Fake) CloseH() engine.Status {
	if st := f.enter("CloseH"); st != engine.StatusOK {
		return st
	}
	f.hydOpen = false
	f.initialized = false
	return engine.StatusOK
}

func (f *Fake) GetCount(code engine.CountCode) (int, engine.Status) {
	if st := f.enter("GetCount"); st != engine.StatusOK {
		return 0, st
	}
	switch code {
	case engine.NodeCount:
		return len(f.net.Nodes), engine.StatusOK
	case engine.LinkCount:
		return len(f.net.Links), engine.StatusOK
	case engine.TankCount:
		n := 0
		for _, nd := range f.net.Nodes {
			if nd.Kind != Junction {
				n++
			}
		}
		return n, engine.StatusOK
	}
	return 0, engine.StatusInvalidParam
}

func (f *Fake) GetNodeID(index int) (string, engine.Status) {
	if st := f.enter("GetNodeID"); st != engine.StatusOK {
		return "", st
	}
	if index < 1 || index > len(f.net.Nodes) {
		return "", 203
	}
	return f.net.Nodes[index-1].ID, engine.StatusOK
}

func (f *Fake) GetLinkID(index int) (string, engine.Status) {
	if st := f.enter("GetLinkID"); st != engine.StatusOK {
		return "", st
	}
	if index < 1 || index > len(f.net.Links) {
		return "", 204
	}
	return f.net.Links[index-1].ID, engine.StatusOK
}

func (f *Fake) GetNodeValue(index int, prop engine.NodeProperty) (float64, engine.Status) {
	if st := f.enter("GetNodeValue"); st != engine.StatusOK {
		return 0, st
	}
	return f.nodeValue(index, prop)
}

func (f *Fake) nodeValue(index int, prop engine.NodeProperty) (float64, engine.Status) {
	if index < 1 || index > len(f.net.Nodes) {
		return 0, 203
	}
	i := index - 1
	switch prop {
	case engine.NodeElevation:
		return f.net.Nodes[i].Elevation, engine.StatusOK
	case engine.NodeBaseDemand:
		return f.demand[i], engine.StatusOK
	case engine.NodeDemand:
		return f.demand[i] * f.multiplier(), engine.StatusOK
	case engine.NodePressure:
		return f.pressure[i], engine.StatusOK
	case engine.NodeHead:
		return f.pressure[i] + f.net.Nodes[i].Elevation, engine.StatusOK
	}
	return 0, engine.StatusInvalidParam
}

func (f *Fake) GetLinkValue(index int, prop engine.LinkProperty) (float64, engine.Status) {
	if st := f.enter("GetLinkValue"); st != engine.StatusOK {
		return 0, st
	}
	return f.linkValue(index, prop)
}

func (f *Fake) linkValue(index int, prop engine.LinkProperty) (float64, engine.Status) {
	if index < 1 || index > len(f.net.Links) {
		return 0, 204
	}
	i := index - 1
	switch prop {
	case engine.LinkInitStatus, engine.LinkStatus:
		return f.status[i], engine.StatusOK
	case engine.LinkInitSetting, engine.LinkSetting:
		return f.setting[i], engine.StatusOK
	case engine.LinkFlow:
		return f.flow[i], engine.StatusOK
	}
	return 0, engine.StatusInvalidParam
}

func (f *Fake) SetNodeValue(index int, prop engine.NodeProperty, v float64) engine.Status {
	if st := f.enter("SetNodeValue"); st != engine.StatusOK {
		return st
	}
	return f.setNode(index, prop, v)
}

func (f *Fake) setNode(index int, prop engine.NodeProperty, v float64) engine.Status {
	if index < 1 || index > len(f.net.Nodes) {
		return 203
	}
	if prop != engine.NodeBaseDemand {
		return engine.StatusInvalidParam
	}
	f.demand[index-1] = v
	return engine.StatusOK
}

func (f *Fake) SetLinkValue(index int, prop engine.LinkProperty, v float64) engine.Status {
	if st := f.enter("SetLinkValue"); st != engine.StatusOK {
		return st
	}
	return f.setLink(index, prop, v)
}

func (f *Fake) setLink(index int, prop engine.LinkProperty, v float64) engine.Status {
	if index < 1 || index > len(f.net.Links) {
		return 204
	}
	i := index - 1
	switch prop {
	case engine.LinkInitStatus:
		if v != engine.LinkOpen && v != engine.LinkClosed {
			return 202
		}
		f.status[i] = v
		return engine.StatusOK
	case engine.LinkInitSetting:
		if f.net.Links[i].Kind == Pipe {
			return engine.StatusInvalidParam
		}
		f.setting[i] = v
		return engine.StatusOK
	}
	return engine.StatusInvalidParam
}

func (f *Fake) GetTimeParam(p engine.TimeParam) (int64, engine.Status) {
	if st := f.enter("GetTimeParam"); st != engine.StatusOK {
		return 0, st
	}
	switch p {
	case engine.TimeDuration:
		return f.net.Duration, engine.StatusOK
	case engine.TimeHydStep:
		return f.net.HydStep, engine.StatusOK
	case engine.TimeReportStep:
		return f.net.ReportStep, engine.StatusOK
	}
	return 0, engine.StatusInvalidParam
}

func (f *Fake) ErrorText(code engine.Status) (string, bool) {
	msg, ok := errorTexts[code]
	return msg, ok
}

// multiplier is a smooth diurnal demand pattern.
func (f *Fake) multiplier() float64 {
	return 1 + 0.2*math.Sin(2*math.Pi*float64(f.t)/86400)
}

func (f *Fake) solve() {
	mult := f.multiplier()

	total := 0.0
	for i, n := range f.net.Nodes {
		if n.Kind == Junction {
			total += f.demand[i]
		}
	}
	total *= mult

	adjust := 0.0
	for i, l := range f.net.Links {
		if f.status[i] == engine.LinkClosed {
			adjust -= 5
			continue
		}
		switch l.Kind {
		case Pump:
			adjust += 10 * f.setting[i]
		case Valve:
			adjust += 0.05 * f.setting[i]
		}
	}

	n := float64(len(f.net.Nodes))
	for i, nd := range f.net.Nodes {
		switch nd.Kind {
		case Reservoir:
			f.pressure[i] = 0
		default:
			weight := 1 + float64(i)/n
			f.pressure[i] = f.net.Head - nd.Elevation - f.net.Loss*total*weight + adjust - 0.01*f.demand[i]*mult
		}
	}
	for i, l := range f.net.Links {
		if f.status[i] == engine.LinkClosed {
			f.flow[i] = 0
			continue
		}
		f.flow[i] = total * (1 - 0.1*float64(i))
		if l.Kind == Valve && f.setting[i] > 0 {
			f.flow[i] *= math.Min(1, f.setting[i]/100)
		}
	}
}

func (f *Fake) String() string {
	return fmt.Sprintf("enginetest.Fake(%d nodes, %d links)", len(f.net.Nodes), len(f.net.Links))
}

var _ engine.Library = (*Fake)(nil)
