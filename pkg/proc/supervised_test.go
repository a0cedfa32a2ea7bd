package proc

import (
	"errors"
	"testing"
	"time"
)

func updateUntilTerminated(t *testing.T, s *Supervised) []Update {
	t.Helper()
	var updates []Update
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		u := s.Update()
		updates = append(updates, u)
		if u.State == StateTerminated {
			return updates
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("supervised process did not terminate in time")
	return nil
}

func TestSupervisedFinalBurstNotLost(t *testing.T) {
	s := NewSupervised(Config{
		Kind: "test",
		Stdout: Table{
			Rules: []Rule{
				{Substr: "READY", Apply: func(_ []string, u *Update) { u.State = StateOK }},
				{Substr: "MARK", Apply: func(_ []string, u *Update) { u.SetFlag("marked") }},
			},
		},
		Flags:  []string{"marked"},
		Logger: testLogger(),
	})
	// The process exits before the first Update; its output must still be
	// classified before the exit check turns the state terminated.
	if err := s.Start([]string{"sh", "-c", "echo READY; echo MARK"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	updateUntilTerminated(t, s)
	if !s.Flag("marked") {
		t.Fatalf("flag from final output burst was lost")
	}
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated state, got %v", s.State())
	}
}

func TestSupervisedSilentStreamAnomalies(t *testing.T) {
	s := NewSupervised(Config{
		Kind:         "test",
		SilentStderr: true,
		Logger:       testLogger(),
	})
	if err := s.Start([]string{"sh", "-c", "echo oops 1>&2"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	var anomalies []error
	for _, u := range updateUntilTerminated(t, s) {
		anomalies = append(anomalies, u.Anomalies...)
	}
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %v", anomalies)
	}
	var unexpected *UnexpectedOutputError
	if !errors.As(anomalies[0], &unexpected) {
		t.Fatalf("expected *UnexpectedOutputError, got %T", anomalies[0])
	}
	if unexpected.Stream != "stderr" || unexpected.Line != "oops" {
		t.Fatalf("unexpected anomaly contents: %+v", unexpected)
	}
}

func TestSupervisedFlagFoldingAndClear(t *testing.T) {
	s := NewSupervised(Config{
		Kind: "test",
		Stdout: Table{
			Rules: []Rule{
				{Substr: "HIT", Apply: func(_ []string, u *Update) { u.SetFlag("hit") }},
			},
		},
		Flags:  []string{"hit"},
		Logger: testLogger(),
	})
	if err := s.Start([]string{"sh", "-c", "echo HIT"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	updateUntilTerminated(t, s)
	if !s.Flag("hit") {
		t.Fatalf("flag not folded into accumulated state")
	}
	s.ClearFlag("hit")
	if s.Flag("hit") {
		t.Fatalf("flag still set after ClearFlag")
	}
}

func TestSupervisedStatsKeepLastValue(t *testing.T) {
	s := NewSupervised(Config{
		Kind: "test",
		Stdout: Table{
			Rules: []Rule{
				{Substr: "one", Apply: func(_ []string, u *Update) { u.SetStat("n", 1) }},
				{Substr: "two", Apply: func(_ []string, u *Update) { u.SetStat("n", 2) }},
			},
		},
		Stats:  []string{"n"},
		Logger: testLogger(),
	})
	if err := s.Start([]string{"sh", "-c", "echo one; echo two"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	updateUntilTerminated(t, s)
	if got := s.Stat("n"); got != 2 {
		t.Fatalf("expected stat n=2, got %d", got)
	}
}

func TestSupervisedStartWhileRunning(t *testing.T) {
	s := NewSupervised(Config{Kind: "test", Logger: testLogger()})
	if err := s.Start([]string{"sleep", "30"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	if err := s.Start([]string{"sleep", "30"}, ""); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSupervisedNeverStarted(t *testing.T) {
	s := NewSupervised(Config{Kind: "test", Logger: testLogger()})
	if code, ok := s.Stop(); ok || code != 0 {
		t.Fatalf("Stop on never-started reported code=%d ok=%v", code, ok)
	}
	u := s.Update()
	if u.State != StateNew || len(u.Anomalies) != 0 {
		t.Fatalf("unexpected update on never-started: %+v", u)
	}
	s.Clean()
	s.Clean()
}

func TestSupervisedCleanAllowsRestart(t *testing.T) {
	s := NewSupervised(Config{
		Kind:   "test",
		Flags:  []string{"hit"},
		Logger: testLogger(),
	})
	if err := s.Start([]string{"sh", "-c", "true"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	updateUntilTerminated(t, s)
	dir := s.Dir()

	s.Clean()
	if s.State() != StateNew {
		t.Fatalf("expected new state after Clean, got %v", s.State())
	}
	if s.Dir() != "" {
		t.Fatalf("expected empty dir after Clean")
	}

	if err := s.Start([]string{"sh", "-c", "true"}, ""); err != nil {
		t.Fatalf("restart after Clean failed: %v", err)
	}
	defer s.Clean()
	if s.Dir() == dir {
		t.Fatalf("restart reused the released directory")
	}
	updateUntilTerminated(t, s)
}

func TestSupervisedStopRunningProcess(t *testing.T) {
	s := NewSupervised(Config{
		Kind:           "test",
		TerminateGrace: 200 * time.Millisecond,
		Logger:         testLogger(),
	})
	if err := s.Start([]string{"sleep", "30"}, ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Clean()

	if _, ok := s.Stop(); !ok {
		t.Fatalf("Stop reported no process")
	}
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated state after Stop, got %v", s.State())
	}
}
