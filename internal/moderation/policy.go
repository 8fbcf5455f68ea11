package moderation

import "fmt"

// LabelUnavailable marks messages flagged because moderation could not run.
const LabelUnavailable = "moderation_unavailable"

// FailurePolicy decides the outcome of a message when the moderation
// service cannot produce a verdict.
type FailurePolicy string

const (
	// FailOpen lets the message through with no moderation data.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed blocks the message.
	FailClosed FailurePolicy = "fail_closed"
	// FailFlag lets the message through marked as unmoderated.
	FailFlag FailurePolicy = "fail_flag"
)

// ParsePolicy validates a configured policy name. Empty selects FailOpen.
func ParsePolicy(name string) (FailurePolicy, error) {
	switch p := FailurePolicy(name); p {
	case "":
		return FailOpen, nil
	case FailOpen, FailClosed, FailFlag:
		return p, nil
	default:
		return "", fmt.Errorf("unknown moderation failure policy %q", name)
	}
}

// Fallback returns the substitute verdict for an outage, or nil when the
// message should carry no moderation data (fail-open).
func (p FailurePolicy) Fallback() *Verdict {
	switch p {
	case FailClosed:
		return &Verdict{Action: ActionBlock, Labels: []string{LabelUnavailable}}
	case FailFlag:
		return &Verdict{Action: ActionFlag, Labels: []string{LabelUnavailable}}
	default:
		return nil
	}
}
