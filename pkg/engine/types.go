// Package engine defines the fixed-signature surface of the external
// hydraulic solver and the Handle that owns one bound instance.
//
// A Library reports every call as a raw Status. Handle converts statuses into
// errors, logs warnings, and hides whether batched accessors are available.
package engine

// Status is the numeric result of an engine call.
type Status int

const (
	StatusOK Status = 0

	// Statuses 1..maxWarning are recoverable warnings.
	maxWarning Status = 10

	// StatusIllegalValue is returned for bad indices or buffer sizes.
	StatusIllegalValue Status = 202
	// StatusInvalidParam marks a parameter that does not apply to an
	// element, e.g. a setting on a plain pipe.
	StatusInvalidParam Status = 251
	// StatusUnsupported is returned by bindings for optional entry points
	// the loaded library does not export.
	StatusUnsupported Status = 299
)

// IsWarning reports whether s is in the recoverable warning range.
func (s Status) IsWarning() bool {
	return s > StatusOK && s <= maxWarning
}

// IsFatal reports whether s must abort the current operation.
func (s Status) IsFatal() bool {
	return s != StatusOK && !s.IsWarning()
}

// CountCode selects an element class for GetCount.
type CountCode int

const (
	NodeCount CountCode = 0
	TankCount CountCode = 1
	LinkCount CountCode = 2
)

// NodeProperty is a node value selector.
type NodeProperty int

const (
	NodeElevation  NodeProperty = 0
	NodeBaseDemand NodeProperty = 1
	NodeDemand     NodeProperty = 9
	NodeHead       NodeProperty = 10
	NodePressure   NodeProperty = 11
)

// LinkProperty is a link value selector.
type LinkProperty int

const (
	LinkDiameter    LinkProperty = 0
	LinkLength      LinkProperty = 1
	LinkRoughness   LinkProperty = 2
	LinkInitStatus  LinkProperty = 4
	LinkInitSetting LinkProperty = 5
	LinkFlow        LinkProperty = 8
	LinkVelocity    LinkProperty = 9
	LinkHeadloss    LinkProperty = 10
	LinkStatus      LinkProperty = 11
	LinkSetting     LinkProperty = 12
)

// Link status values accepted by LinkInitStatus.
const (
	LinkClosed = 0.0
	LinkOpen   = 1.0
)

// TimeParam selects a network time parameter (seconds).
type TimeParam int

const (
	TimeDuration   TimeParam = 0
	TimeHydStep    TimeParam = 1
	TimeReportStep TimeParam = 5
)

// InitNoSave initializes hydraulics without saving a results file.
const InitNoSave = 0

// Library is the per-instance engine surface. Indices are 1-based.
// Implementations hide the calling convention of the underlying library.
type Library interface {
	CreateProject() Status
	DeleteProject() Status
	Open(inpPath, rptPath, outPath string) Status
	Close() Status

	OpenH() Status
	InitH(flag int) Status
	RunH() (t int64, st Status)
	NextH() (tstep int64, st Status)
	CloseH() Status

	GetCount(code CountCode) (int, Status)
	GetNodeID(index int) (string, Status)
	GetLinkID(index int) (string, Status)
	GetNodeValue(index int, prop NodeProperty) (float64, Status)
	GetLinkValue(index int, prop LinkProperty) (float64, Status)
	SetNodeValue(index int, prop NodeProperty, v float64) Status
	SetLinkValue(index int, prop LinkProperty, v float64) Status
	GetTimeParam(p TimeParam) (int64, Status)

	// ErrorText returns the engine's message for code, if it has one.
	ErrorText(code Status) (string, bool)
}

// BatchAccessor is implemented by libraries that export batched value
// accessors. Batched setters stop at the first failing index and return
// its status, matching the native extension.
type BatchAccessor interface {
	SetNodeValues(prop NodeProperty, indices []int32, values []float64) Status
	SetLinkValues(prop LinkProperty, indices []int32, values []float64) Status
	GetNodeValues(prop NodeProperty, indices []int32, out []float64) Status
	GetLinkValues(prop LinkProperty, indices []int32, out []float64) Status
	GetAllNodeValues(prop NodeProperty, out []float64) Status
	GetAllLinkValues(prop LinkProperty, out []float64) Status
}

// Profile is the solver timing breakdown. The layout matches the native
// extension's struct so bindings can pass a pointer to it.
type Profile struct {
	Total              float64
	Assemble           float64
	LinearSolve        float64
	Headloss           float64
	Convergence        float64
	Controls           float64
	RulesTime          float64
	SimpleControlsTime float64
	StepCount          int32
	IterCount          int32
	RulesEvalCount     int32
	RulesFireCount     int32
	RulesSkipCount     int32
	SimpleEvalCount    int32
	SimpleFireCount    int32
	SimpleSkipCount    int32
}

// SolveEfficiency is the share of total time spent assembling and solving.
func (p Profile) SolveEfficiency() float64 {
	if p.Total <= 0 {
		return 0
	}
	return (p.Assemble + p.LinearSolve) / p.Total
}

// Profiler is implemented by libraries that expose solver timing.
type Profiler interface {
	Profile() (Profile, Status)
}
