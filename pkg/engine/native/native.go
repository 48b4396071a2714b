//go:build darwin || linux

package native

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/dd0wney/hydroturbo/pkg/engine"
)

// idBufSize covers EN_MAXID with room to spare.
const idBufSize = 64

// errTextSize is the buffer handed to EN_geterror.
const errTextSize = 256

// legacyMu serializes ownership of the legacy API's single global instance.
var (
	legacyMu    sync.Mutex
	legacyOwner *Library
)

// calls is the convention-independent entry point table.
type calls struct {
	create       func() int32
	destroy      func() int32
	open         func(inp, rpt, out string) int32
	close        func() int32
	openH        func() int32
	initH        func(flag int32) int32
	runH         func(t *int64) int32
	nextH        func(t *int64) int32
	closeH       func() int32
	getCount     func(code int32, n *int32) int32
	getNodeID    func(index int32, buf *byte) int32
	getLinkID    func(index int32, buf *byte) int32
	getNodeValue func(index, prop int32, v *float64) int32
	getLinkValue func(index, prop int32, v *float64) int32
	setNodeValue func(index, prop int32, v float64) int32
	setLinkValue func(index, prop int32, v float64) int32
	getTimeParam func(p int32, v *int64) int32
	getError     func(code int32, buf *byte, n int32) int32
}

// turboCalls are the batched accessors of the turbo extension.
type turboCalls struct {
	setNodeValues    func(ph uintptr, prop int32, idx *int32, vals *float64, n int32) int32
	setLinkValues    func(ph uintptr, prop int32, idx *int32, vals *float64, n int32) int32
	getNodeValues    func(ph uintptr, prop int32, idx *int32, out *float64, n int32) int32
	getLinkValues    func(ph uintptr, prop int32, idx *int32, out *float64, n int32) int32
	getAllNodeValues func(ph uintptr, prop int32, out *float64) int32
	getAllLinkValues func(ph uintptr, prop int32, out *float64) int32
}

// profileFunc is the turbo extension's solver timing entry point. Some
// builds export it without the batched accessors, or the reverse.
type profileFunc func(ph uintptr, out *engine.Profile) int32

// Library is a loaded engine shared library. A Library serves one session at
// a time; it is not safe for concurrent use.
type Library struct {
	path   string
	handle uintptr
	ph     uintptr
	conv   Convention
	fn     calls
	turbo  *turboCalls
	prof   profileFunc
	idBuf  [idBufSize]byte
	loaded bool
}

// Load opens the shared library at path and resolves its entry points.
func Load(path string, opts ...LoadOption) (*Library, error) {
	if err := applyLoadOptions(opts); err != nil {
		return nil, err
	}
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("load engine library %s: %w", path, err)
	}
	l := &Library{path: path, handle: h, loaded: true}

	if hasSymbol(h, "EN_createproject") {
		l.conv = ProjectAPI
		err = l.bindProject()
	} else {
		l.conv = LegacyAPI
		err = l.bindLegacy()
	}
	if err != nil {
		_ = purego.Dlclose(h)
		return nil, err
	}
	if l.conv == ProjectAPI {
		l.turbo = bindTurbo(h)
		l.prof = bindProfile(h)
	}
	return l, nil
}

// Engine returns the engine surface of l. The result also implements
// engine.BatchAccessor when the turbo extension's batched accessors are
// present, and engine.Profiler when its profile entry point is. Either may
// exist without the other.
func (l *Library) Engine() (engine.Library, error) {
	if !l.loaded {
		return nil, ErrUnloaded
	}
	switch {
	case l.turbo != nil && l.prof != nil:
		return &profiledTurboLibrary{turboLibrary{Library: l}}, nil
	case l.turbo != nil:
		return &turboLibrary{Library: l}, nil
	case l.prof != nil:
		return &profiledLibrary{Library: l}, nil
	}
	return l, nil
}

// Convention reports which entry point family was bound.
func (l *Library) Convention() Convention { return l.conv }

// Batched reports whether the turbo extension's batched accessors exist.
func (l *Library) Batched() bool { return l.turbo != nil }

// Profiled reports whether the solver profile entry point exists.
func (l *Library) Profiled() bool { return l.prof != nil }

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

// Unload releases the shared library. The engine surface must not be used
// afterwards.
func (l *Library) Unload() error {
	if !l.loaded {
		return nil
	}
	l.loaded = false
	legacyMu.Lock()
	if legacyOwner == l {
		legacyOwner = nil
	}
	legacyMu.Unlock()
	return purego.Dlclose(l.handle)
}

func hasSymbol(h uintptr, name string) bool {
	_, err := purego.Dlsym(h, name)
	return err == nil
}

func register(h uintptr, fptr any, name string) error {
	sym, err := purego.Dlsym(h, name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMissingSymbol, name)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

func (l *Library) bindProject() error {
	var (
		createproject func(ph *uintptr) int32
		deleteproject func(ph uintptr) int32
		open          func(ph uintptr, inp, rpt, out string) int32
		closeFn       func(ph uintptr) int32
		openH         func(ph uintptr) int32
		initH         func(ph uintptr, flag int32) int32
		runH          func(ph uintptr, t *int64) int32
		nextH         func(ph uintptr, t *int64) int32
		closeH        func(ph uintptr) int32
		getcount      func(ph uintptr, code int32, n *int32) int32
		getnodeid     func(ph uintptr, index int32, buf *byte) int32
		getlinkid     func(ph uintptr, index int32, buf *byte) int32
		getnodevalue  func(ph uintptr, index, prop int32, v *float64) int32
		getlinkvalue  func(ph uintptr, index, prop int32, v *float64) int32
		setnodevalue  func(ph uintptr, index, prop int32, v float64) int32
		setlinkvalue  func(ph uintptr, index, prop int32, v float64) int32
		gettimeparam  func(ph uintptr, p int32, v *int64) int32
		geterror      func(code int32, buf *byte, n int32) int32
	)
	table := []struct {
		fptr any
		name string
	}{
		{&createproject, "EN_createproject"},
		{&deleteproject, "EN_deleteproject"},
		{&open, "EN_open"},
		{&closeFn, "EN_close"},
		{&openH, "EN_openH"},
		{&initH, "EN_initH"},
		{&runH, "EN_runH"},
		{&nextH, "EN_nextH"},
		{&closeH, "EN_closeH"},
		{&getcount, "EN_getcount"},
		{&getnodeid, "EN_getnodeid"},
		{&getlinkid, "EN_getlinkid"},
		{&getnodevalue, "EN_getnodevalue"},
		{&getlinkvalue, "EN_getlinkvalue"},
		{&setnodevalue, "EN_setnodevalue"},
		{&setlinkvalue, "EN_setlinkvalue"},
		{&gettimeparam, "EN_gettimeparam"},
		{&geterror, "EN_geterror"},
	}
	for _, e := range table {
		if err := register(l.handle, e.fptr, e.name); err != nil {
			return err
		}
	}

	l.fn = calls{
		create:       func() int32 { return createproject(&l.ph) },
		destroy:      func() int32 { st := deleteproject(l.ph); l.ph = 0; return st },
		open:         func(inp, rpt, out string) int32 { return open(l.ph, inp, rpt, out) },
		close:        func() int32 { return closeFn(l.ph) },
		openH:        func() int32 { return openH(l.ph) },
		initH:        func(flag int32) int32 { return initH(l.ph, flag) },
		runH:         func(t *int64) int32 { return runH(l.ph, t) },
		nextH:        func(t *int64) int32 { return nextH(l.ph, t) },
		closeH:       func() int32 { return closeH(l.ph) },
		getCount:     func(code int32, n *int32) int32 { return getcount(l.ph, code, n) },
		getNodeID:    func(i int32, buf *byte) int32 { return getnodeid(l.ph, i, buf) },
		getLinkID:    func(i int32, buf *byte) int32 { return getlinkid(l.ph, i, buf) },
		getNodeValue: func(i, p int32, v *float64) int32 { return getnodevalue(l.ph, i, p, v) },
		getLinkValue: func(i, p int32, v *float64) int32 { return getlinkvalue(l.ph, i, p, v) },
		setNodeValue: func(i, p int32, v float64) int32 { return setnodevalue(l.ph, i, p, v) },
		setLinkValue: func(i, p int32, v float64) int32 { return setlinkvalue(l.ph, i, p, v) },
		getTimeParam: func(p int32, v *int64) int32 { return gettimeparam(l.ph, p, v) },
		getError:     geterror,
	}
	return nil
}

// bindLegacy wraps the global API. Its value accessors use single
// precision, which is widened or narrowed at the boundary.
func (l *Library) bindLegacy() error {
	var (
		open         func(inp, rpt, out string) int32
		closeFn      func() int32
		openH        func() int32
		initH        func(flag int32) int32
		runH         func(t *int64) int32
		nextH        func(t *int64) int32
		closeH       func() int32
		getcount     func(code int32, n *int32) int32
		getnodeid    func(index int32, buf *byte) int32
		getlinkid    func(index int32, buf *byte) int32
		getnodevalue func(index, prop int32, v *float32) int32
		getlinkvalue func(index, prop int32, v *float32) int32
		setnodevalue func(index, prop int32, v float32) int32
		setlinkvalue func(index, prop int32, v float32) int32
		gettimeparam func(p int32, v *int64) int32
		geterror     func(code int32, buf *byte, n int32) int32
	)
	table := []struct {
		fptr any
		name string
	}{
		{&open, "ENopen"},
		{&closeFn, "ENclose"},
		{&openH, "ENopenH"},
		{&initH, "ENinitH"},
		{&runH, "ENrunH"},
		{&nextH, "ENnextH"},
		{&closeH, "ENcloseH"},
		{&getcount, "ENgetcount"},
		{&getnodeid, "ENgetnodeid"},
		{&getlinkid, "ENgetlinkid"},
		{&getnodevalue, "ENgetnodevalue"},
		{&getlinkvalue, "ENgetlinkvalue"},
		{&setnodevalue, "ENsetnodevalue"},
		{&setlinkvalue, "ENsetlinkvalue"},
		{&gettimeparam, "ENgettimeparam"},
		{&geterror, "ENgeterror"},
	}
	for _, e := range table {
		if err := register(l.handle, e.fptr, e.name); err != nil {
			return err
		}
	}

	l.fn = calls{
		create:       l.acquireLegacy,
		destroy:      l.releaseLegacy,
		open:         open,
		close:        closeFn,
		openH:        openH,
		initH:        initH,
		runH:         runH,
		nextH:        nextH,
		closeH:       closeH,
		getCount:     getcount,
		getNodeID:    getnodeid,
		getLinkID:    getlinkid,
		getNodeValue: widen(getnodevalue),
		getLinkValue: widen(getlinkvalue),
		setNodeValue: func(i, p int32, v float64) int32 { return setnodevalue(i, p, float32(v)) },
		setLinkValue: func(i, p int32, v float64) int32 { return setlinkvalue(i, p, float32(v)) },
		getTimeParam: gettimeparam,
		getError:     geterror,
	}
	return nil
}

func widen(get func(index, prop int32, v *float32) int32) func(index, prop int32, v *float64) int32 {
	return func(index, prop int32, v *float64) int32 {
		var f float32
		st := get(index, prop, &f)
		*v = float64(f)
		return st
	}
}

// acquireLegacy claims the process-wide legacy instance.
func (l *Library) acquireLegacy() int32 {
	legacyMu.Lock()
	defer legacyMu.Unlock()
	if legacyOwner != nil && legacyOwner != l {
		return 101
	}
	legacyOwner = l
	return 0
}

func (l *Library) releaseLegacy() int32 {
	legacyMu.Lock()
	defer legacyMu.Unlock()
	if legacyOwner == l {
		legacyOwner = nil
	}
	return 0
}

func bindTurbo(h uintptr) *turboCalls {
	t := &turboCalls{}
	names := []struct {
		fptr any
		name string
	}{
		{&t.setNodeValues, "ENT_set_node_values"},
		{&t.setLinkValues, "ENT_set_link_values"},
		{&t.getNodeValues, "ENT_get_node_values"},
		{&t.getLinkValues, "ENT_get_link_values"},
		{&t.getAllNodeValues, "ENT_get_all_node_values"},
		{&t.getAllLinkValues, "ENT_get_all_link_values"},
	}
	for _, e := range names {
		if register(h, e.fptr, e.name) != nil {
			return nil
		}
	}
	return t
}

func bindProfile(h uintptr) profileFunc {
	var fn profileFunc
	if register(h, &fn, "ENT_get_profile") != nil {
		return nil
	}
	return fn
}

func cString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

func (l *Library) CreateProject() engine.Status { return engine.Status(l.fn.create()) }
func (l *Library) DeleteProject() engine.Status { return engine.Status(l.fn.destroy()) }
func (l *Library) Close() engine.Status         { return engine.Status(l.fn.close()) }
func (l *Library) OpenH() engine.Status         { return engine.Status(l.fn.openH()) }
func (l *Library) CloseH() engine.Status        { return engine.Status(l.fn.closeH()) }

func (l *Library) Open(inpPath, rptPath, outPath string) engine.Status {
	return engine.Status(l.fn.open(inpPath, rptPath, outPath))
}

func (l *Library) InitH(flag int) engine.Status {
	return engine.Status(l.fn.initH(int32(flag)))
}

func (l *Library) RunH() (int64, engine.Status) {
	var t int64
	st := l.fn.runH(&t)
	return t, engine.Status(st)
}

func (l *Library) NextH() (int64, engine.Status) {
	var step int64
	st := l.fn.nextH(&step)
	return step, engine.Status(st)
}

func (l *Library) GetCount(code engine.CountCode) (int, engine.Status) {
	var n int32
	st := l.fn.getCount(int32(code), &n)
	return int(n), engine.Status(st)
}

func (l *Library) GetNodeID(index int) (string, engine.Status) {
	clear(l.idBuf[:])
	st := l.fn.getNodeID(int32(index), &l.idBuf[0])
	return cString(l.idBuf[:]), engine.Status(st)
}

func (l *Library) GetLinkID(index int) (string, engine.Status) {
	clear(l.idBuf[:])
	st := l.fn.getLinkID(int32(index), &l.idBuf[0])
	return cString(l.idBuf[:]), engine.Status(st)
}

func (l *Library) GetNodeValue(index int, prop engine.NodeProperty) (float64, engine.Status) {
	var v float64
	st := l.fn.getNodeValue(int32(index), int32(prop), &v)
	return v, engine.Status(st)
}

func (l *Library) GetLinkValue(index int, prop engine.LinkProperty) (float64, engine.Status) {
	var v float64
	st := l.fn.getLinkValue(int32(index), int32(prop), &v)
	return v, engine.Status(st)
}

func (l *Library) SetNodeValue(index int, prop engine.NodeProperty, v float64) engine.Status {
	return engine.Status(l.fn.setNodeValue(int32(index), int32(prop), v))
}

func (l *Library) SetLinkValue(index int, prop engine.LinkProperty, v float64) engine.Status {
	return engine.Status(l.fn.setLinkValue(int32(index), int32(prop), v))
}

func (l *Library) GetTimeParam(p engine.TimeParam) (int64, engine.Status) {
	var v int64
	st := l.fn.getTimeParam(int32(p), &v)
	return v, engine.Status(st)
}

func (l *Library) ErrorText(code engine.Status) (string, bool) {
	var buf [errTextSize]byte
	if l.fn.getError(int32(code), &buf[0], int32(len(buf)-1)) != 0 {
		return "", false
	}
	msg := cString(buf[:])
	return msg, msg != ""
}

// turboLibrary adds the batched accessors. It exists only for project API
// bindings since every turbo entry point takes the project handle.
type turboLibrary struct {
	*Library
}

func (t *turboLibrary) SetNodeValues(prop engine.NodeProperty, indices []int32, values []float64) engine.Status {
	if len(indices) == 0 {
		return engine.StatusOK
	}
	if len(values) < len(indices) {
		return engine.StatusIllegalValue
	}
	return engine.Status(t.turbo.setNodeValues(t.ph, int32(prop), &indices[0], &values[0], int32(len(indices))))
}

func (t *turboLibrary) SetLinkValues(prop engine.LinkProperty, indices []int32, values []float64) engine.Status {
	if len(indices) == 0 {
		return engine.StatusOK
	}
	if len(values) < len(indices) {
		return engine.StatusIllegalValue
	}
	return engine.Status(t.turbo.setLinkValues(t.ph, int32(prop), &indices[0], &values[0], int32(len(indices))))
}

func (t *turboLibrary) GetNodeValues(prop engine.NodeProperty, indices []int32, out []float64) engine.Status {
	if len(indices) == 0 {
		return engine.StatusOK
	}
	if len(out) < len(indices) {
		return engine.StatusIllegalValue
	}
	return engine.Status(t.turbo.getNodeValues(t.ph, int32(prop), &indices[0], &out[0], int32(len(indices))))
}

func (t *turboLibrary) GetLinkValues(prop engine.LinkProperty, indices []int32, out []float64) engine.Status {
	if len(indices) == 0 {
		return engine.StatusOK
	}
	if len(out) < len(indices) {
		return engine.StatusIllegalValue
	}
	return engine.Status(t.turbo.getLinkValues(t.ph, int32(prop), &indices[0], &out[0], int32(len(indices))))
}

func (t *turboLibrary) GetAllNodeValues(prop engine.NodeProperty, out []float64) engine.Status {
	if len(out) == 0 {
		return engine.StatusOK
	}
	return engine.Status(t.turbo.getAllNodeValues(t.ph, int32(prop), &out[0]))
}

func (t *turboLibrary) GetAllLinkValues(prop engine.LinkProperty, out []float64) engine.Status {
	if len(out) == 0 {
		return engine.StatusOK
	}
	return engine.Status(t.turbo.getAllLinkValues(t.ph, int32(prop), &out[0]))
}

func (l *Library) readProfile() (engine.Profile, engine.Status) {
	var p engine.Profile
	st := l.prof(l.ph, &p)
	return p, engine.Status(st)
}

// profiledTurboLibrary has both the batched accessors and the profile.
type profiledTurboLibrary struct {
	turboLibrary
}

func (t *profiledTurboLibrary) Profile() (engine.Profile, engine.Status) { return t.readProfile() }

// profiledLibrary has the profile but no batched accessors.
type profiledLibrary struct {
	*Library
}

func (p *profiledLibrary) Profile() (engine.Profile, engine.Status) { return p.readProfile() }

var (
	_ engine.Library       = (*Library)(nil)
	_ engine.BatchAccessor = (*turboLibrary)(nil)
	_ engine.BatchAccessor = (*profiledTurboLibrary)(nil)
	_ engine.Profiler      = (*profiledTurboLibrary)(nil)
	_ engine.Profiler      = (*profiledLibrary)(nil)
)
