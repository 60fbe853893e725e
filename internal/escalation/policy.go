package escalation

import (
	"fmt"
	"time"

	"rideguard/internal/models"
)

type RecipientClass string

const (
	RecipientEmergencyContacts RecipientClass = "emergency_contacts"
	RecipientPlatformAdmins    RecipientClass = "platform_admins"
	RecipientAuthorities       RecipientClass = "authorities"
	RecipientDispatch          RecipientClass = "dispatch"
)

// Level is one stage of the response timetable. Deadline is the offset from
// the emergency's creation time, not from when monitoring started.
type Level struct {
	Level      int
	Deadline   time.Duration
	Recipients RecipientClass
	Template   string
	Terminal   bool
}

// Policy is the static escalation configuration. It is read-only once
// validated; a malformed policy is a fatal startup error, never a per-incident
// one.
type Policy struct {
	Levels []Level
}

// DefaultPolicy returns the four-stage timetable: emergency contacts at two
// minutes, platform admins at five, external authorities at ten, and
// emergency services dispatch at fifteen.
func DefaultPolicy() *Policy {
	return &Policy{
		Levels: []Level{
			{
				Level:      1,
				Deadline:   2 * time.Minute,
				Recipients: RecipientEmergencyContacts,
				Template:   "URGENT: {name} triggered an SOS alert near {address} and has not been reached. Please check on them immediately.",
			},
			{
				Level:      2,
				Deadline:   5 * time.Minute,
				Recipients: RecipientPlatformAdmins,
				Template:   "Unresolved emergency {id} ({type}) requires admin attention. Triggered {elapsed} ago near {address}.",
			},
			{
				Level:      3,
				Deadline:   10 * time.Minute,
				Recipients: RecipientAuthorities,
				Template:   "Escalating emergency {id} to authorities. Rider unreachable since {created}. Last known position: {address}.",
			},
			{
				Level:      4,
				Deadline:   15 * time.Minute,
				Recipients: RecipientDispatch,
				Template:   "Requesting emergency services dispatch for incident {id}. Last known position: {address}.",
				Terminal:   true,
			},
		},
	}
}

// Validate checks the policy covers every reachable level with strictly
// increasing deadlines and a terminal final level.
func (p *Policy) Validate() error {
	if len(p.Levels) == 0 {
		return fmt.Errorf("escalation policy has no levels")
	}

	var lastDeadline time.Duration
	for i, level := range p.Levels {
		want := i + 1
		if level.Level != want {
			return fmt.Errorf("escalation policy level %d is out of sequence (expected %d)", level.Level, want)
		}
		if level.Deadline <= lastDeadline {
			return fmt.Errorf("escalation policy level %d deadline %s must exceed level %d's %s", level.Level, level.Deadline, level.Level-1, lastDeadline)
		}
		if level.Recipients == "" {
			return fmt.Errorf("escalation policy level %d has no recipient class", level.Level)
		}
		if level.Template == "" {
			return fmt.Errorf("escalation policy level %d has no message template", level.Level)
		}
		if level.Terminal && level.Level != len(p.Levels) {
			return fmt.Errorf("escalation policy level %d is terminal but not the final level", level.Level)
		}
		lastDeadline = level.Deadline
	}

	final := p.Levels[len(p.Levels)-1]
	if !final.Terminal {
		return fmt.Errorf("escalation policy final level %d must be terminal", final.Level)
	}
	if final.Level != models.MaxEscalationLevel {
		return fmt.Errorf("escalation policy ends at level %d, want %d", final.Level, models.MaxEscalationLevel)
	}

	return nil
}

// LevelsAbove returns the levels still pending for an incident currently at
// the given level, in firing order.
func (p *Policy) LevelsAbove(current int) []Level {
	for i, level := range p.Levels {
		if level.Level > current {
			return p.Levels[i:]
		}
	}
	return nil
}

// FinalLevel returns the terminal stage of the timetable.
func (p *Policy) FinalLevel() Level {
	return p.Levels[len(p.Levels)-1]
}
