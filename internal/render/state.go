package render

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is a step of the render state machine.
type State string

const (
	// StateValidating checks and normalizes the request. No scratch files exist yet.
	StateValidating State = "validating"
	// StateFetching downloads the audio and then every scene image.
	StateFetching State = "fetching"
	// StateEncoding turns every scene into a fixed-length segment.
	StateEncoding State = "encoding"
	// StateConcatenating joins the segments in scene order.
	StateConcatenating State = "concatenating"
	// StateMuxing adds the audio track.
	StateMuxing State = "muxing"
	// StatePublishing uploads the final video.
	StatePublishing State = "publishing"
	// StateDone is the terminal success state.
	StateDone State = "done"
	// StateFailed is the terminal failure state.
	StateFailed State = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateValidating:    {StateFetching, StateFailed},
	StateFetching:      {StateEncoding, StateFailed},
	StateEncoding:      {StateConcatenating, StateFailed},
	StateConcatenating: {StateMuxing, StateFailed},
	StateMuxing:        {StatePublishing, StateFailed},
	StatePublishing:    {StateDone, StateFailed},
	StateDone:          {},
	StateFailed:        {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is Done or Failed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Tracker holds the current state of one render and logs how long each
// state lasted.
type Tracker struct {
	mu      sync.Mutex
	state   State
	entered time.Time
	logger  *slog.Logger
}

// NewTracker creates a Tracker in StateValidating.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		state:   StateValidating,
		entered: time.Now(),
		logger:  logger,
	}
}

// TransitionTo moves the render to the given state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *Tracker) TransitionTo(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !canTransition(t.state, next) {
		return ErrInvalidTransition
	}

	now := time.Now()
	t.logger.Debug("render state finished",
		slog.String("state", string(t.state)),
		slog.String("next", string(next)),
		slog.Duration("elapsed", now.Sub(t.entered)),
	)
	t.state = next
	t.entered = now
	return nil
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
