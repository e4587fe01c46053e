package architect

import "sync/atomic"

// Indicators is the output of a decision module's CalculateIndicators.
type Indicators struct {
	SMA5         float64
	SMA20        float64
	CurrentPrice float64
	AvgVolume    float64
	CurrentVolume float64
	Valid        bool
}

// Signal is the output of a decision module's GenerateSignal.
type Signal struct {
	Action     string
	Confidence float64
	Reason     string
}

// DecisionModule is the compiled-in function-pointer pair a loaded
// module exposes. Per the dynamic-module-reload design note, "reload
// the module" is modeled as swapping this struct behind a version
// counter rather than executing freshly-parsed source: the candidate
// source that passes every gate is recorded for audit/history, and the
// equivalent compiled-in strategy variant is what the signal-execution
// loop actually runs after the swap.
type DecisionModule struct {
	CalculateIndicators func(closes, volumes []float64) Indicators
	GenerateSignal      func(ind Indicators, analysisSignal string, analysisConfidence float64, analysisReasoning string) Signal
}

// Registry holds the currently-active decision module behind a version
// counter. The signal-execution loop re-reads Version() each tick and
// re-fetches Current() when it changes; Architect is the sole writer,
// exercised only during evolve's step 7/8.
type Registry struct {
	version atomic.Uint64
	current atomic.Pointer[DecisionModule]
}

func NewRegistry(initial DecisionModule) *Registry {
	r := &Registry{}
	r.current.Store(&initial)
	r.version.Store(1)
	return r
}

func (r *Registry) Version() uint64 {
	return r.version.Load()
}

func (r *Registry) Current() DecisionModule {
	return *r.current.Load()
}

// Swap installs a new module and bumps the version counter. Called only
// by Architect after a successful evolve.
func (r *Registry) Swap(m DecisionModule) uint64 {
	r.current.Store(&m)
	return r.version.Add(1)
}
