// Package config reads the handful of environment-driven tunables the
// runtime exposes, the way the pack's xyproto-flapc reads its own build
// configuration from the environment.
package config

import (
	"strconv"

	"github.com/xyproto/env/v2"
)

const (
	envHeapReservation = "WISP_HEAP_RESERVATION_BYTES"
	envGCThreshold      = "WISP_GC_INITIAL_THRESHOLD"
	envFiberStackSlots  = "WISP_FIBER_STACK_SLOTS"
	envDebugGC          = "WISP_DEBUG_GC"

	// DefaultHeapReservation is smaller than spec §4.A's illustrative
	// "e.g. 4 GiB" — the spec calls that figure an example, not a
	// requirement, and a 4 GiB reservation per interpreter instance is
	// wasteful for the short-lived scripts and tests this repo runs.
	DefaultHeapReservation int64 = 64 << 20 // 64 MiB
	DefaultGCThreshold     int64 = 1 << 20  // 1 MiB
	DefaultFiberStackSlots int   = 2048
)

// Config holds the tunables read once at startup.
type Config struct {
	HeapReservationBytes int64
	GCInitialThreshold   int64
	FiberStackSlots      int
	DebugGC              bool
}

// Load reads Config from the environment, falling back to the Default*
// constants above for anything unset or unparsable.
func Load() Config {
	return Config{
		HeapReservationBytes: int64OrDefault(envHeapReservation, DefaultHeapReservation),
		GCInitialThreshold:   int64OrDefault(envGCThreshold, DefaultGCThreshold),
		FiberStackSlots:      intOrDefault(envFiberStackSlots, DefaultFiberStackSlots),
		DebugGC:              env.Bool(envDebugGC),
	}
}

func int64OrDefault(name string, def int64) int64 {
	s := env.Str(name)
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func intOrDefault(name string, def int) int {
	return int(int64OrDefault(name, int64(def)))
}
