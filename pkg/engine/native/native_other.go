//go:build !(darwin || linux)

package native

import "github.com/dd0wney/hydroturbo/pkg/engine"

// Library is unavailable on this platform.
type Library struct{}

func Load(path string, opts ...LoadOption) (*Library, error) { return nil, ErrUnsupportedPlatform }

func (l *Library) Engine() (engine.Library, error) { return nil, ErrUnsupportedPlatform }
func (l *Library) Convention() Convention         { return ProjectAPI }
func (l *Library) Batched() bool                  { return false }
func (l *Library) Profiled() bool                 { return false }
func (l *Library) Path() string                   { return "" }
func (l *Library) Unload() error                  { return nil }
