package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionTableShape(t *testing.T) {
	for _, from := range Stages {
		if IsTransitionAllowed(from, from) {
			t.Errorf("%s allows a self-transition", from)
		}
		if IsTransitionAllowed(from, StageNew) {
			t.Errorf("%s allows moving back to NEW", from)
		}
	}

	for _, terminal := range []Stage{StageLost, StagePostTrip} {
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range Stages {
			if IsTransitionAllowed(terminal, to) {
				t.Errorf("terminal %s allows %s", terminal, to)
			}
		}
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageNew, StageQualified, true},
		{StageNew, StageLost, true},
		{StageNew, StageWon, false},
		{StageNew, StageProposalSent, false},
		{StageQualified, StageProposalSent, true},
		{StageProposalSent, StageNegotiation, true},
		{StageNegotiation, StageProposalSent, true},
		{StageInvoiceSent, StagePaymentReceived, true},
		{StagePaymentReceived, StageWon, true},
		{StagePaymentReceived, StageLost, false},
		{StageWon, StagePostTrip, true},
		{StageWon, StageLost, false},
		{StageLost, StageNew, false},
		{StagePostTrip, StageWon, false},
	}
	for _, tt := range tests {
		if got := IsTransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSLADueAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	due := SLADueAt(StageNew, base)
	if due == nil || !due.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("expected NEW due in 2h, got %v", due)
	}
	if got := SLADueAt(StageNegotiation, base); got == nil || !got.Equal(base.Add(48*time.Hour)) {
		t.Fatalf("expected NEGOTIATION due in 48h, got %v", got)
	}
	if SLADueAt(StageLost, base) != nil || SLADueAt(StagePostTrip, base) != nil {
		t.Fatalf("terminal stages must not have an SLA")
	}
}

func TestParseStage(t *testing.T) {
	got, err := ParseStage("  proposal_sent ")
	if err != nil || got != StageProposalSent {
		t.Fatalf("expected PROPOSAL_SENT, got %q (%v)", got, err)
	}
	if _, err := ParseStage("ARCHIVED"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestCheckTransitionReturnsTypedError(t *testing.T) {
	err := CheckTransition(StageNew, StageWon)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.From != StageNew || te.To != StageWon {
		t.Fatalf("unexpected error fields %+v", te)
	}
	if CheckTransition(StageNew, StageQualified) != nil {
		t.Fatalf("expected allowed transition")
	}
}

func TestOpenStages(t *testing.T) {
	open := map[Stage]bool{}
	for _, s := range Stages {
		if s.IsOpen() {
			open[s] = true
		}
	}
	for _, s := range []Stage{StageNew, StageQualified, StageProposalSent, StageNegotiation, StageWon} {
		if !open[s] {
			t.Errorf("%s should be open", s)
		}
	}
	if open[StageLost] || open[StagePostTrip] {
		t.Errorf("terminal stages must not be open")
	}
}
