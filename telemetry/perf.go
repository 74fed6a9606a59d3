package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one part of an executor step.
type Phase uint8

const (
	PhaseSnapshot Phase = iota
	PhaseKernel
	PhaseApply
	PhaseOutput
	numPhases
)

var phaseNames = [numPhases]string{"snapshot", "kernel", "apply", "output"}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// stepTiming is the wall time of one step and of each of its phases.
type stepTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps the timings of the last window steps.
type PerfCollector struct {
	ring  []stepTiming
	next  int
	count int

	cur        stepTiming
	stepStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
}

// NewPerfCollector returns a collector over window steps (60 if window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]stepTiming, window)}
}

// StartStep begins timing a step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.cur = stepTiming{}
	p.inPhase = false
}

// StartPhase ends the running phase, if any, and starts ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase, p.phaseStart, p.inPhase = ph, now, true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase && p.phase < numPhases {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndStep records the current step into the window.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	p.closePhase(now)
	p.inPhase = false
	p.cur.total = now.Sub(p.stepStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	if p.count < len(p.ring) {
		p.count++
	}
}

// PerfStats summarizes the window.
type PerfStats struct {
	Steps   int
	AvgStep time.Duration
	MaxStep time.Duration

	// Phase holds the mean duration of each phase, Share its percentage of
	// the mean step.
	Phase [numPhases]time.Duration
	Share [numPhases]float64

	StepsPerSecond float64
}

// Stats aggregates the recorded steps. It is zero before the first step.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Steps: p.count}
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var phases [numPhases]time.Duration
	for _, st := range p.ring[:p.count] {
		total += st.total
		s.MaxStep = max(s.MaxStep, st.total)
		for i, d := range st.phases {
			phases[i] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgStep = total / n
	for i := range phases {
		s.Phase[i] = phases[i] / n
		if s.AvgStep > 0 {
			s.Share[i] = 100 * float64(s.Phase[i]) / float64(s.AvgStep)
		}
	}
	if s.AvgStep > 0 {
		s.StepsPerSecond = float64(time.Second) / float64(s.AvgStep)
	}
	return s
}

// LogStats logs the summary at info level.
func (s PerfStats) LogStats(logger *slog.Logger) {
	logger.Info("perf", "stats", s)
}

func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("avg_step_us", s.AvgStep.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	for i, share := range s.Share {
		attrs = append(attrs, slog.Float64(Phase(i).String()+"_pct", share))
	}
	return slog.GroupValue(attrs...)
}

// PerfRecord is one row of perf.csv.
type PerfRecord struct {
	Step        int     `csv:"step"`
	AvgStepUS   int64   `csv:"avg_step_us"`
	MaxStepUS   int64   `csv:"max_step_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	SnapshotPct float64 `csv:"snapshot_pct"`
	KernelPct   float64 `csv:"kernel_pct"`
	ApplyPct    float64 `csv:"apply_pct"`
	OutputPct   float64 `csv:"output_pct"`
}

// Record flattens the summary for the CSV row of step.
func (s PerfStats) Record(step int) PerfRecord {
	return PerfRecord{
		Step:        step,
		AvgStepUS:   s.AvgStep.Microseconds(),
		MaxStepUS:   s.MaxStep.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		SnapshotPct: s.Share[PhaseSnapshot],
		KernelPct:   s.Share[PhaseKernel],
		ApplyPct:    s.Share[PhaseApply],
		OutputPct:   s.Share[PhaseOutput],
	}
}
