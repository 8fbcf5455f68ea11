// Package moderation talks to the external content-moderation service and
// defines how its verdicts and outages map onto message outcomes.
package moderation

import (
	"fmt"
	"math"
)

// Action is the decision returned by the moderation service.
type Action string

const (
	ActionAllow Action = "allow"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionFlag, ActionBlock:
		return true
	}
	return false
}

// Verdict is the moderation outcome for one message body.
type Verdict struct {
	Action Action             `json:"action"`
	Labels []string           `json:"labels"`
	Scores map[string]float64 `json:"scores"`
}

// Validate checks the verdict shape: a known action and scores within [0,1].
func (v Verdict) Validate() error {
	if !v.Action.Valid() {
		return fmt.Errorf("unknown action %q", v.Action)
	}
	for label, score := range v.Scores {
		if math.IsNaN(score) || score < 0 || score > 1 {
			return fmt.Errorf("score %q out of range: %v", label, score)
		}
	}
	return nil
}
