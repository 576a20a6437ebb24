// Package scenario loads the YAML scripts that drive a simulated machine.
package scenario

import (
	"fmt"
	"os"

	"github.com/me/ksched/internal/config"
	"github.com/me/ksched/pkg/model"
	"gopkg.in/yaml.v3"
)

// Op is a scripted scheduling action.
type Op string

const (
	OpWake       Op = "wake"       // Unblock a named thread
	OpWakeOne    Op = "wake_one"   // Unblock the tail of a wait queue
	OpWakeAll    Op = "wake_all"   // Unblock every thread on a wait queue
	OpBlock      Op = "block"      // Block the CPU's current thread, optionally on a queue
	OpYield      Op = "yield"      // Current thread yields
	OpPreempt    Op = "preempt"    // Interrupt-driven preemption of the current thread
	OpReschedule Op = "reschedule" // Current thread re-evaluates voluntarily
	OpTick       Op = "tick"       // Timer ticks on one CPU
	OpTickAll    Op = "tick_all"   // Timer ticks on every CPU
)

var knownOps = map[Op]bool{
	OpWake: true, OpWakeOne: true, OpWakeAll: true, OpBlock: true,
	OpYield: true, OpPreempt: true, OpReschedule: true, OpTick: true, OpTickAll: true,
}

// Start values for Thread.Start.
const (
	StartBlocked = "blocked"
	StartReady   = "ready"
)

// Scenario is a scripted simulation.
type Scenario struct {
	Name         string   `yaml:"name" json:"name"`
	CPUs         int      `yaml:"cpus,omitempty" json:"cpus,omitempty"`
	TimeSlice    int      `yaml:"time_slice,omitempty" json:"time_slice,omitempty"`
	Broadcast    bool     `yaml:"broadcast,omitempty" json:"broadcast,omitempty"`
	Uniprocessor bool     `yaml:"uniprocessor,omitempty" json:"uniprocessor,omitempty"`
	Threads      []Thread `yaml:"threads" json:"threads"`
	Events       []Event  `yaml:"events" json:"events"`
}

// Thread declares a thread of the scenario.
type Thread struct {
	Name     string `yaml:"name" json:"name"`
	Priority int    `yaml:"priority" json:"priority"`
	Pinned   *int   `yaml:"pinned,omitempty" json:"pinned,omitempty"`
	RealTime bool   `yaml:"real_time,omitempty" json:"real_time,omitempty"`
	Start    string `yaml:"start,omitempty" json:"start,omitempty"`
	Queue    string `yaml:"queue,omitempty" json:"queue,omitempty"` // Initial wait queue for blocked threads
}

// PinnedCPU returns the thread's pin, or model.NoCPU.
func (t Thread) PinnedCPU() model.CPUNum {
	if t.Pinned == nil {
		return model.NoCPU
	}
	return model.CPUNum(*t.Pinned)
}

// Event is one scripted action, executed on CPU.
type Event struct {
	At     int    `yaml:"at" json:"at"`
	CPU    int    `yaml:"cpu" json:"cpu"`
	Op     Op     `yaml:"op" json:"op"`
	Thread string `yaml:"thread,omitempty" json:"thread,omitempty"`
	Queue  string `yaml:"queue,omitempty" json:"queue,omitempty"`
	Count  int    `yaml:"count,omitempty" json:"count,omitempty"`
}

// Ticks returns the number of ticks a tick event carries.
func (e Event) Ticks() int {
	if e.Count <= 0 {
		return 1
	}
	return e.Count
}

// Parse decodes a scenario from YAML (or JSON, which YAML accepts).
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if sc.Name == "" {
		sc.Name = "unnamed"
	}
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Marshal renders the scenario back to YAML.
func (sc *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(sc)
}

// Config overlays the scenario's machine settings on base.
func (sc *Scenario) Config(base config.SimConfig) config.SimConfig {
	cfg := base
	if sc.CPUs > 0 {
		cfg.CPUs = sc.CPUs
	}
	if sc.TimeSlice > 0 {
		cfg.TimeSlice = sc.TimeSlice
	}
	if sc.Broadcast {
		cfg.Broadcast = true
	}
	if sc.Uniprocessor {
		cfg.Uniprocessor = true
		cfg.CPUs = 1
	}
	return cfg
}
