// Package shell is the page state machine of the app: which screen a client
// should show and which actions are legal from it.
package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/raushankrgupta/fashionfit/models"
)

var ErrInvalidTransition = errors.New("invalid state transition")

type State int

const (
	Uninitialized State = iota
	LoggedOut
	AwaitingGenderChoice
	DashboardActive
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LoggedOut:
		return "logged_out"
	case AwaitingGenderChoice:
		return "awaiting_gender_choice"
	case DashboardActive:
		return "dashboard_active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type EventKind int

const (
	EventInitialized EventKind = iota + 1
	EventLoggedIn
	EventGenderSelected
	EventLoggedOut
)

func (k EventKind) String() string {
	switch k {
	case EventInitialized:
		return "initialized"
	case EventLoggedIn:
		return "logged_in"
	case EventGenderSelected:
		return "gender_selected"
	case EventLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type Event struct {
	Kind   EventKind
	User   *models.UserProfile
	Gender models.Gender
}

// Initialized carries the stored user found at startup, or nil.
func Initialized(user *models.UserProfile) Event {
	return Event{Kind: EventInitialized, User: user}
}

func LoggedIn(user models.UserProfile) Event {
	return Event{Kind: EventLoggedIn, User: &user}
}

func GenderSelected(g models.Gender) Event {
	return Event{Kind: EventGenderSelected, Gender: g}
}

func Logout() Event {
	return Event{Kind: EventLoggedOut}
}

// StateFor is the settled state for a user (nil means nobody signed in).
func StateFor(user *models.UserProfile) State {
	switch {
	case user == nil:
		return LoggedOut
	case !user.Gender.IsSet():
		return AwaitingGenderChoice
	default:
		return DashboardActive
	}
}

// Next applies ev to s. Illegal events return ErrInvalidTransition and s.
// Logging out is also accepted while the gender choice is pending.
func Next(s State, ev Event) (State, error) {
	switch {
	case s == Uninitialized && ev.Kind == EventInitialized:
		return StateFor(ev.User), nil
	case s == LoggedOut && ev.Kind == EventLoggedIn && ev.User != nil:
		return StateFor(ev.User), nil
	case s == AwaitingGenderChoice && ev.Kind == EventGenderSelected && ev.Gender.IsSet():
		return DashboardActive, nil
	case (s == DashboardActive || s == AwaitingGenderChoice) && ev.Kind == EventLoggedOut:
		return LoggedOut, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev.Kind, s)
}

// Machine holds the current state for a single client.
type Machine struct {
	mu    sync.Mutex
	state State
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies ev and returns the resulting state.
func (m *Machine) Fire(ev Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Next(m.state, ev)
	if err != nil {
		return m.state, err
	}
	m.state = next
	return next, nil
}
