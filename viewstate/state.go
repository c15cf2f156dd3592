package viewstate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrClosed completes commands issued to, or still pending in, a closed controller.
	ErrClosed = errors.New("viewstate: controller closed")
	// ErrSuperseded completes a fetch whose result was discarded because a newer
	// request had been issued (LatestIssuedWins only).
	ErrSuperseded = errors.New("viewstate: superseded by a newer request")
)

// None is the selector type for controllers that only ever fetch one variant.
type None struct{}

// State is an immutable snapshot of a controller's view state.
//
// Data is replaced as a whole or left untouched. While Loading is true it still
// holds the result of the last applied fetch. Data is shared between observers
// and must be treated as read-only.
type State[T any, S any] struct {
	Data          T
	Loading       bool
	Selection     S
	DataSelection S
	Err           error
	Generation    uint64
	Version       uint64
	UpdatedAt     time.Time
}

// HasError reports whether the error slot is occupied.
func (s State[T, S]) HasError() bool { return s.Err != nil }

// CommandError records which command put an error into the state.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string { return fmt.Sprintf("%s: %v", e.Command, e.Err) }

func (e *CommandError) Unwrap() error { return e.Err }

// RacePolicy decides what happens when overlapping fetches complete out of order.
type RacePolicy int

const (
	// LastCompletionWins applies every completed fetch; the latest to finish wins.
	LastCompletionWins RacePolicy = iota
	// LatestIssuedWins applies a fetch only if no newer fetch was issued after it.
	LatestIssuedWins
)

func (p RacePolicy) String() string {
	switch p {
	case LastCompletionWins:
		return "last_completion"
	case LatestIssuedWins:
		return "latest_issued"
	}
	return fmt.Sprintf("RacePolicy(%d)", int(p))
}

// ParseRacePolicy parses the names produced by String.
func ParseRacePolicy(s string) (RacePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_completion", "last_completion_wins":
		return LastCompletionWins, nil
	case "latest_issued", "latest_issued_wins", "generation":
		return LatestIssuedWins, nil
	}
	return 0, fmt.Errorf("unknown race policy %q", s)
}
