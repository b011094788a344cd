// Package domain provides core business rules for the bookings bounded context:
// pipeline stages, pricing math and the booking concurrency token.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a position in the sales pipeline.
type Stage string

const (
	StageNew             Stage = "NEW"
	StageQualified       Stage = "QUALIFIED"
	StageProposalSent    Stage = "PROPOSAL_SENT"
	StageNegotiation     Stage = "NEGOTIATION"
	StageInvoiceSent     Stage = "INVOICE_SENT"
	StagePaymentReceived Stage = "PAYMENT_RECEIVED"
	StageWon             Stage = "WON"
	StageLost            Stage = "LOST"
	StagePostTrip        Stage = "POST_TRIP"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageNew,
	StageQualified,
	StageProposalSent,
	StageNegotiation,
	StageInvoiceSent,
	StagePaymentReceived,
	StageWon,
	StageLost,
	StagePostTrip,
}

// slaHours is the response window per stage. Zero means no SLA.
var slaHours = map[Stage]int{
	StageNew:             2,
	StageQualified:       8,
	StageProposalSent:    24,
	StageNegotiation:     48,
	StageInvoiceSent:     72,
	StagePaymentReceived: 24,
	StageWon:             24,
	StageLost:            0,
	StagePostTrip:        0,
}

// transitions is the allowed-next-stage table. Stages without an entry are terminal.
// Nothing leads back to NEW and no stage lists itself.
var transitions = map[Stage][]Stage{
	StageNew:             {StageQualified, StageLost},
	StageQualified:       {StageProposalSent, StageLost},
	StageProposalSent:    {StageNegotiation, StageInvoiceSent, StageWon, StageLost},
	StageNegotiation:     {StageProposalSent, StageInvoiceSent, StageWon, StageLost},
	StageInvoiceSent:     {StageNegotiation, StagePaymentReceived, StageLost},
	StagePaymentReceived: {StageWon},
	StageWon:             {StagePostTrip},
}

// ParseStage accepts a stage name case-insensitively.
func ParseStage(value string) (Stage, error) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := slaHours[candidate]; !ok {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return candidate, nil
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	_, ok := slaHours[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Stage) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// IsOpen reports whether bookings in s count toward an owner's workload.
func (s Stage) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal()
}

// AllowedTransitions returns a copy of the stages reachable from s.
func AllowedTransitions(s Stage) []Stage {
	return append([]Stage(nil), transitions[s]...)
}

// IsTransitionAllowed reports whether a booking may move from one stage to another.
func IsTransitionAllowed(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SLAHours returns the response window for s in hours.
func SLAHours(s Stage) int {
	return slaHours[s]
}

// SLADueAt returns from plus the stage's SLA window, or nil if the stage has none.
func SLADueAt(s Stage, from time.Time) *time.Time {
	hours := slaHours[s]
	if hours <= 0 {
		return nil
	}
	due := from.UTC().Add(time.Duration(hours) * time.Hour)
	return &due
}

// TransitionError reports a stage change the pipeline does not allow.
type TransitionError struct {
	From Stage
	To   Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %s to %s is not allowed", e.From, e.To)
}

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to Stage) error {
	if !IsTransitionAllowed(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
