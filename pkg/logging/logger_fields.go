package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}

// Stage names a construction stage of a model context.
func Stage(name string) Field {
	return String("stage", name)
}

// Call names an engine entry point.
func Call(name string) Field {
	return String("call", name)
}

// Code carries a raw engine status code.
func Code(code int) Field {
	return Int("code", code)
}

// SimTime is an elapsed simulation time in seconds.
func SimTime(seconds int64) Field {
	return Int64("sim_time", seconds)
}

// Scenario tags a log line with the scenario mode (memory or stream).
func Scenario(mode string) Field {
	return String("scenario", mode)
}
