package entity

import "fmt"

// Stage is a pipeline stage of a lead. Only the automated stages carry
// per-stage data on an AutomationRecord; Won and Lost end automation.
type Stage string

const (
	StageLead         Stage = "lead"
	StageNeverReplied Stage = "neverReplied"
	StageQualified    Stage = "qualified"
	StageProposalSent Stage = "proposalSent"
	StageNegotiations Stage = "negotiations"
	StageWon          Stage = "won"
	StageLost         Stage = "lost"
)

// AutomatedStages lists every stage tracked in StageData, in pipeline order.
var AutomatedStages = []Stage{
	StageLead,
	StageNeverReplied,
	StageQualified,
	StageProposalSent,
	StageNegotiations,
}

// IsTerminal reports whether reaching the stage pauses automation for good.
func (s Stage) IsTerminal() bool {
	return s == StageWon || s == StageLost
}

// IsAutomated reports whether the stage is tracked by an AutomationRecord.
func (s Stage) IsAutomated() bool {
	switch s {
	case StageLead, StageNeverReplied, StageQualified, StageProposalSent, StageNegotiations:
		return true
	}
	return false
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	return s.IsAutomated() || s.IsTerminal()
}

// Label is the human readable stage name used in alerts and admin views.
func (s Stage) Label() string {
	switch s {
	case StageLead:
		return "Lead"
	case StageNeverReplied:
		return "Never Replied"
	case StageQualified:
		return "Qualified"
	case StageProposalSent:
		return "Proposal Sent"
	case StageNegotiations:
		return "Negotiations"
	case StageWon:
		return "Won"
	case StageLost:
		return "Lost"
	}
	return string(s)
}

// ParseStage accepts either the stored value ("proposalSent") or the label ("Proposal Sent").
func ParseStage(v string) (Stage, error) {
	for _, s := range []Stage{StageLead, StageNeverReplied, StageQualified, StageProposalSent, StageNegotiations, StageWon, StageLost} {
		if v == string(s) || v == s.Label() {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", v)
}
