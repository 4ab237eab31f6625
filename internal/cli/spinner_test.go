package cli

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/pylock/pkg/requirement"
	"github.com/matzehuels/pylock/pkg/resolvelib"
)

func TestSpinnerCancellation(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	interrupted, interrupt := context.WithCancel(context.Background())

	tests := []struct {
		name   string
		ctx    context.Context
		after  func()
		cancel bool
	}{
		{"running", context.Background(), func() {}, false},
		{"interrupted", interrupted, interrupt, true},
		{"deadline", expired, func() {}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSpinnerWithContext(tt.ctx, "Resolving dependencies...")
			s.Start()
			tt.after()
			time.Sleep(20 * time.Millisecond)
			if got := s.Cancelled(); got != tt.cancel {
				t.Errorf("Cancelled() = %v, want %v", got, tt.cancel)
			}
			s.Stop()
		})
	}
}

func TestSpinnerStops(t *testing.T) {
	s := newSpinner("Hashing artifacts...")
	s.Start()
	s.Stop()
	s.Stop()
	s.StopWithSuccess("Hashed 12 files")

	s = newSpinner("Building wheel...")
	s.Start()
	s.StopWithError("pip wheel failed")
}

func TestSpinnerSetMessage(t *testing.T) {
	s := newSpinner("Resolving...")
	s.SetMessage("Pinning requests==2.19.1...")
	if got := s.Message(); got != "Pinning requests==2.19.1..." {
		t.Errorf("Message() = %q", got)
	}
}

func TestSpinnerReporter(t *testing.T) {
	s := newSpinner("Resolving dependencies...")
	r := &spinnerReporter{spinner: s}

	r.StartingRound(0)
	if got, want := s.Message(), "Resolving dependencies (round 1, 0 pinned)..."; got != want {
		t.Errorf("after StartingRound: %q, want %q", got, want)
	}

	pin := requirement.New("requests", "==2.19.1")
	r.Pinning(pin)
	if got, want := s.Message(), "Pinning requests==2.19.1..."; got != want {
		t.Errorf("after Pinning: %q, want %q", got, want)
	}

	r.EndingRound(0, &resolvelib.State{Mapping: map[requirement.Identifier]*resolvelib.Candidate{"requests": pin}})
	r.StartingRound(1)
	if got, want := s.Message(), "Resolving dependencies (round 2, 1 pinned)..."; got != want {
		t.Errorf("after second round: %q, want %q", got, want)
	}

	r.Backtracking(requirement.New("urllib3", "==1.23"))
	if got, want := s.Message(), "Backtracking urllib3==1.23..."; got != want {
		t.Errorf("after Backtracking: %q, want %q", got, want)
	}
}
