package mapping

import (
	"fmt"
)

// Outcome is a caller decision for a reported mapping conflict. The core
// never renders prompts; a UI collaborator turns a Conflict into whatever
// dialog it wants and feeds the chosen Outcome back through Resolve.
type Outcome string

const (
	// OutcomeAdd keeps the source's existing links and adds the new one.
	// Only offered in override mode.
	OutcomeAdd Outcome = "add"

	// OutcomeReplace clears the conflicting links before applying.
	OutcomeReplace Outcome = "replace"

	// OutcomeCancel leaves the state untouched.
	OutcomeCancel Outcome = "cancel"
)

// ConflictKind classifies why an AttemptMap call needs a decision.
type ConflictKind string

const (
	// ConflictTargetTaken: the target is mapped to a different source and
	// the new source has no other links.
	ConflictTargetTaken ConflictKind = "target_taken"

	// ConflictTargetAndSourceBusy: the target is mapped to a different
	// source and the new source also has links elsewhere.
	ConflictTargetAndSourceBusy ConflictKind = "target_and_source_busy"

	// ConflictSourceBusy: the target is free but the source already has
	// links.
	ConflictSourceBusy ConflictKind = "source_busy"
)

// Conflict describes a mapping attempt that needs a caller decision.
type Conflict struct {
	Kind     ConflictKind `json:"kind"`
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`

	// PreviousSourceID is the source currently feeding the target, set
	// for the target_taken kinds.
	PreviousSourceID string `json:"previous_source_id,omitempty"`

	// Choices are the outcomes the caller may pick, in presentation order.
	// Cancel is always last.
	Choices []Outcome `json:"choices"`
}

// offers reports whether the conflict allows the given outcome.
func (c *Conflict) offers(o Outcome) bool {
	for _, choice := range c.Choices {
		if choice == o {
			return true
		}
	}
	return false
}

// AttemptMap evaluates linking sourceID to targetID. Three results are
// possible:
//
//   - the target is already fed by this exact source: the link is removed
//     (idempotent toggle) and (nil, nil) is returned;
//   - no existing link conflicts: the link is applied and (nil, nil) is
//     returned;
//   - an existing link conflicts: nothing changes and a Conflict is
//     returned for the caller to pass to Resolve.
func (s *State) AttemptMap(sourceID, targetID string) (*Conflict, error) {
	if !s.hasSource(sourceID) {
		return nil, fmt.Errorf("unknown source field %q", sourceID)
	}
	if !s.hasTarget(targetID) {
		return nil, fmt.Errorf("unknown target field %q", targetID)
	}

	// Toggle off: mapping a pair that is already linked unlinks it.
	if s.TargetToSource[targetID] == sourceID {
		s.unlink(sourceID, targetID)
		return nil, nil
	}

	prev, targetTaken := s.TargetToSource[targetID]
	sourceBusy := len(s.SourceToTargets[sourceID]) > 0

	switch {
	case targetTaken && sourceBusy:
		choices := []Outcome{OutcomeReplace, OutcomeCancel}
		if s.Override {
			choices = []Outcome{OutcomeAdd, OutcomeReplace, OutcomeCancel}
		}
		return &Conflict{
			Kind:             ConflictTargetAndSourceBusy,
			SourceID:         sourceID,
			TargetID:         targetID,
			PreviousSourceID: prev,
			Choices:          choices,
		}, nil

	case targetTaken:
		return &Conflict{
			Kind:             ConflictTargetTaken,
			SourceID:         sourceID,
			TargetID:         targetID,
			PreviousSourceID: prev,
			Choices:          []Outcome{OutcomeReplace, OutcomeCancel},
		}, nil

	case sourceBusy:
		choices := []Outcome{OutcomeReplace, OutcomeCancel}
		if s.Override {
			choices = []Outcome{OutcomeAdd, OutcomeReplace, OutcomeCancel}
		}
		return &Conflict{
			Kind:     ConflictSourceBusy,
			SourceID: sourceID,
			TargetID: targetID,
			Choices:  choices,
		}, nil
	}

	// No conflict: both sides free from each other's point of view.
	s.link(sourceID, targetID)
	return nil, nil
}

// Resolve applies the caller's chosen outcome for a conflict previously
// returned by AttemptMap. Cancel leaves the state untouched.
func (s *State) Resolve(c *Conflict, choice Outcome) error {
	if c == nil {
		return fmt.Errorf("nil conflict")
	}
	if !c.offers(choice) {
		return fmt.Errorf("outcome %q not offered for %s conflict", choice, c.Kind)
	}
	if choice == OutcomeCancel {
		return nil
	}

	switch c.Kind {
	case ConflictTargetTaken:
		// Replace: the target's previous source loses the target.
		s.unlink(c.PreviousSourceID, c.TargetID)
		s.link(c.SourceID, c.TargetID)

	case ConflictTargetAndSourceBusy:
		s.unlink(c.PreviousSourceID, c.TargetID)
		if choice == OutcomeReplace {
			// Replace clears every prior link of the new source.
			s.clearSource(c.SourceID)
		}
		s.link(c.SourceID, c.TargetID)

	case ConflictSourceBusy:
		if choice == OutcomeReplace {
			s.clearSource(c.SourceID)
		}
		s.link(c.SourceID, c.TargetID)

	default:
		return fmt.Errorf("unknown conflict kind %q", c.Kind)
	}
	return nil
}

// Verify checks that the two link maps are mutual duals and that the
// single-target-per-source rule holds outside override mode.
func (s *State) Verify() error {
	for target, source := range s.TargetToSource {
		if !contains(s.SourceToTargets[source], target) {
			return fmt.Errorf("target %q maps to source %q but the reverse link is missing", target, source)
		}
	}
	for source, targets := range s.SourceToTargets {
		if !s.Override && len(targets) > 1 {
			return fmt.Errorf("source %q feeds %d targets without override", source, len(targets))
		}
		for _, target := range targets {
			if s.TargetToSource[target] != source {
				return fmt.Errorf("source %q claims target %q but the target disagrees", source, target)
			}
		}
	}
	return nil
}

func (s *State) hasSource(id string) bool {
	for _, f := range s.SourceFields {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (s *State) hasTarget(id string) bool {
	for _, f := range s.TargetFields {
		if f.ID == id {
			return true
		}
	}
	return false
}

// link records source -> target on both maps. Duplicate target entries on
// the source side are ignored.
func (s *State) link(sourceID, targetID string) {
	s.TargetToSource[targetID] = sourceID
	if !contains(s.SourceToTargets[sourceID], targetID) {
		s.SourceToTargets[sourceID] = append(s.SourceToTargets[sourceID], targetID)
	}
}

// unlink removes source -> target from both maps, dropping the source key
// entirely once its last target is gone.
func (s *State) unlink(sourceID, targetID string) {
	if s.TargetToSource[targetID] == sourceID {
		delete(s.TargetToSource, targetID)
	}
	targets := s.SourceToTargets[sourceID]
	for i, t := range targets {
		if t == targetID {
			targets = append(targets[:i], targets[i+1:]...)
			break
		}
	}
	if len(targets) == 0 {
		delete(s.SourceToTargets, sourceID)
	} else {
		s.SourceToTargets[sourceID] = targets
	}
}

// clearSource removes every link the source currently holds.
func (s *State) clearSource(sourceID string) {
	for _, target := range append([]string(nil), s.SourceToTargets[sourceID]...) {
		s.unlink(sourceID, target)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
