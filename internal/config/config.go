package config

import (
	"github.com/me/ksched/internal/hostcpu"
)

// ServerConfig holds configuration for the ksched trace server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8090")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.ksched/ksched.db, ":memory:" for testing)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8090",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// SimConfig holds the machine and scheduler settings for a simulation.
// Scenario files override individual fields.
type SimConfig struct {
	CPUs         int  // Number of simulated CPUs
	TimeSlice    int  // Quantum in ticks
	Broadcast    bool // Signal all other CPUs on wake
	Uniprocessor bool // Disable cross-CPU signals
	Debug        bool // Enable scheduler debug assertions
	MaxSteps     int  // Upper bound on executed scenario steps (0 = unlimited)
}

// DefaultSimConfig returns sensible defaults, sized to the host's CPUs.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		CPUs:      hostcpu.Count(),
		TimeSlice: 5,
		Debug:     true,
		MaxSteps:  100000,
	}
}
