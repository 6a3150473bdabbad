package hook

import (
	"sync"
	"time"
)

// Config holds process-wide hook settings.
type Config struct {
	// Debug logs a message every time a callback body completes.
	Debug bool
	// InstallTimeout commits a pending session once it elapsed even if
	// Commit was never called. Zero waits for Commit.
	InstallTimeout time.Duration
}

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// Configure replaces the process-wide settings.
func Configure(c Config) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfg = c
}

// Current returns the process-wide settings.
func Current() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Callback priorities. A lower value runs its before body earlier and its
// after body later, so PriorityHighest wraps every other entry.
const (
	PriorityDefault = 50
	PriorityHighest = -10000
	PriorityLowest  = 10000
)

// DefaultTag labels entries declared without a tag.
const DefaultTag = "Default"
