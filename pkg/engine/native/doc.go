// Package native binds the EPANET shared library at runtime without cgo.
//
// Load resolves the entry points once. Libraries that export the
// handle-first project API (EN_createproject and friends) are preferred;
// older builds that only export the global ENxxx API are wrapped so callers
// see the same engine.Library surface. When the turbo extension's batched
// accessors are present, Engine returns a value that also implements
// engine.BatchAccessor and engine.Profiler.
package native
