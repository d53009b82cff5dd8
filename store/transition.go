package store

import (
	"math"

	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// Transition classifies how a challenge counter moved between two
// observations.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionIncrement
	TransitionDecrement
	TransitionReset
)

func (t Transition) String() string {
	switch t {
	case TransitionIncrement:
		return "increment"
	case TransitionDecrement:
		return "decrement"
	case TransitionReset:
		return "reset"
	default:
		return "none"
	}
}

// Effects are the presentation hints derived from one transition together
// with the overlay configuration.
type Effects struct {
	Sound    bool `json:"sound"`
	Confetti bool `json:"confetti"`
}

// Tracker remembers the last seen counter value per challenge and classifies
// each new observation against it. A drop to exactly zero reads as a reset,
// any other drop as a decrement. The baseline always moves to the new value,
// so an unclassified first sighting never replays later.
//
// Trackers are per consumer (one per overlay connection), not shared, so no
// locking.
type Tracker struct {
	prev map[uint]int
}

func NewTracker() *Tracker {
	return &Tracker{prev: map[uint]int{}}
}

// Observe records the current value for a challenge and reports the
// transition since the previous observation. The first observation of an id
// yields TransitionNone.
func (t *Tracker) Observe(id uint, current int) Transition {
	prev, seen := t.prev[id]
	t.prev[id] = current
	if !seen || current == prev {
		return TransitionNone
	}
	if current > prev {
		return TransitionIncrement
	}
	if current == 0 {
		return TransitionReset
	}
	return TransitionDecrement
}

// Forget drops the baseline for a challenge, e.g. after it is deleted.
func (t *Tracker) Forget(id uint) {
	delete(t.prev, id)
}

// Baselines returns a copy of the tracked values keyed by challenge id.
func (t *Tracker) Baselines() map[uint]int {
	out := make(map[uint]int, len(t.prev))
	for id, v := range t.prev {
		out[id] = v
	}
	return out
}

// MilestoneStep is the spacing between celebration points: a tenth of the
// target, rounded up, never below one.
func MilestoneStep(maxValue int) int {
	if maxValue <= 0 {
		return 1
	}
	step := int(math.Ceil(float64(maxValue) / 10))
	if step < 1 {
		step = 1
	}
	return step
}

// IsMilestone reports whether a counter value lands on a milestone. Zero is
// never a milestone.
func IsMilestone(current, maxValue int) bool {
	return current > 0 && current%MilestoneStep(maxValue) == 0
}

// DecideEffects maps a transition to the effects the overlay should play,
// honoring the per-user toggles. Sound accompanies every classified
// transition; confetti only increments that land on a milestone.
func DecideEffects(tr Transition, ch models.Challenge, settings *models.OverlaySettings) Effects {
	if tr == TransitionNone || settings == nil {
		return Effects{}
	}
	return Effects{
		Sound:    settings.SoundEnabled,
		Confetti: settings.ConfettiEnabled && tr == TransitionIncrement && IsMilestone(ch.CurrentValue, ch.MaxValue),
	}
}
