package engine

import (
	"slices"

	"github.com/dd0wney/hydroturbo/pkg/logging"
)

// WarningHook observes warning statuses, e.g. to count them.
type WarningHook func(call string, code Status)

// Handle is the exclusive owner of one bound Library. It is not safe for
// concurrent use; one Handle serves exactly one session.
type Handle struct {
	lib    Library
	batch  BatchAccessor
	prof   Profiler
	logger logging.Logger
	onWarn WarningHook
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithLogger sets the logger used for warning statuses.
func WithLogger(l logging.Logger) HandleOption {
	return func(h *Handle) { h.logger = logging.OrNop(l) }
}

// WithWarningHook registers a callback for warning statuses.
func WithWarningHook(fn WarningHook) HandleOption {
	return func(h *Handle) { h.onWarn = fn }
}

// WithoutBatch forces the per-index code path even if lib has batched
// accessors.
func WithoutBatch() HandleOption {
	return func(h *Handle) { h.batch = nil }
}

// NewHandle binds lib. Optional capabilities are detected here once.
func NewHandle(lib Library, opts ...HandleOption) *Handle {
	h := &Handle{lib: lib, logger: logging.NopLogger{}}
	if b, ok := lib.(BatchAccessor); ok {
		h.batch = b
	}
	if p, ok := lib.(Profiler); ok {
		h.prof = p
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Batched reports whether batched accessors are in use.
func (h *Handle) Batched() bool {
	return h.batch != nil
}

// check converts st into an error. Warnings are logged and swallowed.
func (h *Handle) check(call string, st Status) error {
	if st == StatusOK {
		return nil
	}
	if st.IsWarning() {
		h.logger.Warn("engine warning", logging.Call(call), logging.Code(int(st)))
		if h.onWarn != nil {
			h.onWarn(call, st)
		}
		return nil
	}
	msg, _ := h.lib.ErrorText(st)
	return &EngineError{Call: call, Code: st, Message: msg}
}

func (h *Handle) CreateProject() error { return h.check("EN_createproject", h.lib.CreateProject()) }
func (h *Handle) DeleteProject() error { return h.check("EN_deleteproject", h.lib.DeleteProject()) }
func (h *Handle) Close() error         { return h.check("EN_close", h.lib.Close()) }
func (h *Handle) OpenH() error         { return h.check("EN_openH", h.lib.OpenH()) }
func (h *Handle) CloseH() error        { return h.check("EN_closeH", h.lib.CloseH()) }

func (h *Handle) Open(inpPath, rptPath, outPath string) error {
	return h.check("EN_open", h.lib.Open(inpPath, rptPath, outPath))
}

// InitH resets hydraulic state without reopening the solver.
func (h *Handle) InitH(flag int) error {
	return h.check("EN_initH", h.lib.InitH(flag))
}

// RunH solves the current period and returns its elapsed time.
func (h *Handle) RunH() (int64, error) {
	t, st := h.lib.RunH()
	return t, h.check("EN_runH", st)
}

// NextH advances one period and returns the step taken; 0 means done.
func (h *Handle) NextH() (int64, error) {
	step, st := h.lib.NextH()
	return step, h.check("EN_nextH", st)
}

func (h *Handle) Count(code CountCode) (int, error) {
	n, st := h.lib.GetCount(code)
	return n, h.check("EN_getcount", st)
}

func (h *Handle) NodeID(index int) (string, error) {
	id, st := h.lib.GetNodeID(index)
	return id, h.check("EN_getnodeid", st)
}

func (h *Handle) LinkID(index int) (string, error) {
	id, st := h.lib.GetLinkID(index)
	return id, h.check("EN_getlinkid", st)
}

func (h *Handle) NodeValue(index int, prop NodeProperty) (float64, error) {
	v, st := h.lib.GetNodeValue(index, prop)
	return v, h.check("EN_getnodevalue", st)
}

func (h *Handle) LinkValue(index int, prop LinkProperty) (float64, error) {
	v, st := h.lib.GetLinkValue(index, prop)
	return v, h.check("EN_getlinkvalue", st)
}

func (h *Handle) TimeParam(p TimeParam) (int64, error) {
	v, st := h.lib.GetTimeParam(p)
	return v, h.check("EN_gettimeparam", st)
}

// Profile returns the solver timing breakdown when the library exposes one.
func (h *Handle) Profile() (Profile, bool) {
	if h.prof == nil {
		return Profile{}, false
	}
	p, st := h.prof.Profile()
	if st != StatusOK {
		return Profile{}, false
	}
	return p, true
}

// SetNodeValues writes values[i] to indices[i]. Statuses listed in
// tolerate are treated as a no-op for the index that produced them.
func (h *Handle) SetNodeValues(prop NodeProperty, indices []int32, values []float64, tolerate ...Status) error {
	if len(indices) == 0 {
		return nil
	}
	if h.batch != nil {
		st := h.batch.SetNodeValues(prop, indices, values)
		if !slices.Contains(tolerate, st) {
			return h.check("ENT_set_node_values", st)
		}
		// The batch stopped at an inapplicable index; replay per index so
		// every applicable one is still written.
	}
	for i, idx := range indices {
		st := h.lib.SetNodeValue(int(idx), prop, values[i])
		if slices.Contains(tolerate, st) {
			continue
		}
		if err := h.check("EN_setnodevalue", st); err != nil {
			return err
		}
	}
	return nil
}

// SetLinkValues is the link counterpart of SetNodeValues.
func (h *Handle) SetLinkValues(prop LinkProperty, indices []int32, values []float64, tolerate ...Status) error {
	if len(indices) == 0 {
		return nil
	}
	if h.batch != nil {
		st := h.batch.SetLinkValues(prop, indices, values)
		if !slices.Contains(tolerate, st) {
			return h.check("ENT_set_link_values", st)
		}
	}
	for i, idx := range indices {
		st := h.lib.SetLinkValue(int(idx), prop, values[i])
		if slices.Contains(tolerate, st) {
			continue
		}
		if err := h.check("EN_setlinkvalue", st); err != nil {
			return err
		}
	}
	return nil
}

// AllNodeValues fills out (len = node count) with prop for every node.
func (h *Handle) AllNodeValues(prop NodeProperty, out []float64) error {
	if h.batch != nil {
		return h.check("ENT_get_all_node_values", h.batch.GetAllNodeValues(prop, out))
	}
	for i := range out {
		v, st := h.lib.GetNodeValue(i+1, prop)
		if err := h.check("EN_getnodevalue", st); err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// AllLinkValues fills out (len = link count) with prop for every link.
func (h *Handle) AllLinkValues(prop LinkProperty, out []float64) error {
	if h.batch != nil {
		return h.check("ENT_get_all_link_values", h.batch.GetAllLinkValues(prop, out))
	}
	for i := range out {
		v, st := h.lib.GetLinkValue(i+1, prop)
		if err := h.check("EN_getlinkvalue", st); err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// NodeValues reads prop for a subset of 1-based indices into out.
func (h *Handle) NodeValues(prop NodeProperty, indices []int32, out []float64) error {
	if len(indices) == 0 {
		return nil
	}
	if h.batch != nil {
		return h.check("ENT_get_node_values", h.batch.GetNodeValues(prop, indices, out))
	}
	for i, idx := range indices {
		v, st := h.lib.GetNodeValue(int(idx), prop)
		if err := h.check("EN_getnodevalue", st); err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

// LinkValues reads prop for a subset of 1-based indices into out.
func (h *Handle) LinkValues(prop LinkProperty, indices []int32, out []float64) error {
	if len(indices) == 0 {
		return nil
	}
	if h.batch != nil {
		return h.check("ENT_get_link_values", h.batch.GetLinkValues(prop, indices, out))
	}
	for i, idx := range indices {
		v, st := h.lib.GetLinkValue(int(idx), prop)
		if err := h.check("EN_getlinkvalue", st); err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}
