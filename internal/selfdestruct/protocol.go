// Package selfdestruct implements the guarded countdown for destroying a
// compromised bot.
package selfdestruct

import (
	"errors"
	"fmt"
)

// State of the protocol.
type State string

const (
	Idle     State = "Idle"
	Armed    State = "Armed"
	Executed State = "Executed"
)

// DefaultCountdown is the number of ticks between arming and execution.
const DefaultCountdown = 5

var (
	// ErrNotCaptured rejects arming while the capture flag is unset.
	ErrNotCaptured = errors.New("bot not captured")
	// ErrAlreadyArmed rejects a second arm while a countdown runs.
	ErrAlreadyArmed = errors.New("self-destruct already armed")
)

// Status is a point-in-time view of the protocol.
type Status struct {
	State     State  `json:"state"`
	Countdown int    `json:"countdown"`
	Captured  bool   `json:"captured"`
	BotID     string `json:"botId,omitempty"`
}

// Execution describes a completed self-destruct.
type Execution struct {
	BotID string
}

// Protocol is the Idle -> Armed -> Executed -> Idle state machine.
// It is not safe for concurrent use; the owning engine serialises access.
type Protocol struct {
	start     int
	state     State
	countdown int
	captured  bool
	botID     string
}

// New returns an idle protocol with the given countdown length.
func New(countdown int) *Protocol {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	return &Protocol{start: countdown, state: Idle, countdown: countdown}
}

// SetCaptured sets the precondition flag.
func (p *Protocol) SetCaptured(v bool) { p.captured = v }

// Arm starts the countdown for botID.
func (p *Protocol) Arm(botID string) error {
	if !p.captured {
		return ErrNotCaptured
	}
	if p.state == Armed {
		return fmt.Errorf("arm %s: %w", botID, ErrAlreadyArmed)
	}
	p.state = Armed
	p.countdown = p.start
	p.botID = botID
	return nil
}

// Disarm cancels a running countdown. It reports whether one was running.
func (p *Protocol) Disarm() bool {
	if p.state != Armed {
		return false
	}
	p.reset()
	return true
}

// Tick decrements the countdown. When it reaches zero the protocol passes
// through Executed, returns the execution and resets to Idle.
func (p *Protocol) Tick() (Execution, bool) {
	if p.state != Armed {
		return Execution{}, false
	}
	p.countdown--
	if p.countdown > 0 {
		return Execution{}, false
	}
	p.state = Executed
	ex := Execution{BotID: p.botID}
	p.reset()
	return ex, true
}

// Status returns the current view.
func (p *Protocol) Status() Status {
	return Status{State: p.state, Countdown: p.countdown, Captured: p.captured, BotID: p.botID}
}

func (p *Protocol) reset() {
	p.state = Idle
	p.countdown = p.start
	p.botID = ""
}
