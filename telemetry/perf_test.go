package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseSnapshot)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseKernel)
		time.Sleep(2 * time.Millisecond)
		pc.EndStep()
	}

	s := pc.Stats()
	if s.Steps != 5 {
		t.Errorf("Steps = %d, want 5", s.Steps)
	}
	if s.AvgStep <= 0 || s.MaxStep < s.AvgStep {
		t.Errorf("avg %v, max %v", s.AvgStep, s.MaxStep)
	}
	if s.Share[PhaseKernel] <= s.Share[PhaseSnapshot] {
		t.Errorf("kernel share %.1f%% should exceed snapshot share %.1f%%",
			s.Share[PhaseKernel], s.Share[PhaseSnapshot])
	}
	if s.Phase[PhaseApply] != 0 {
		t.Errorf("apply phase never ran, got %v", s.Phase[PhaseApply])
	}
}

func TestPerfCollectorWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	for i := 0; i < 12; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseApply)
		pc.EndStep()
	}
	if s := pc.Stats(); s.Steps != 5 {
		t.Errorf("Steps = %d, want window size 5", s.Steps)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	s := NewPerfCollector(0).Stats()
	if s.Steps != 0 || s.AvgStep != 0 || s.StepsPerSecond != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestPerfRecord(t *testing.T) {
	var s PerfStats
	s.AvgStep = 1500 * time.Microsecond
	s.Share[PhaseKernel] = 80
	s.Share[PhaseOutput] = 5
	row := s.Record(12)
	if row.Step != 12 || row.AvgStepUS != 1500 {
		t.Errorf("row = %+v", row)
	}
	if row.KernelPct != 80 || row.OutputPct != 5 || row.ApplyPct != 0 {
		t.Errorf("phase columns = %+v", row)
	}
	if PhaseApply.String() != "apply" || Phase(9).String() != "unknown" {
		t.Error("unexpected phase names")
	}
}
