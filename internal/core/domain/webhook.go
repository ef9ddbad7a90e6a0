package domain

import "time"

type EventKind string

const (
	EventIngressStarted EventKind = "ingress_started"
	EventIngressEnded   EventKind = "ingress_ended"
)

// WebhookEvent is a verified provider notification. Kinds other than the
// ingress lifecycle pair are carried verbatim.
type WebhookEvent struct {
	ID                  string
	Kind                EventKind
	IngressID           string
	RoomName            string
	ParticipantIdentity string
	CreatedAt           time.Time
}

// LiveTransition returns the is_live value the event implies.
func (e *WebhookEvent) LiveTransition() (live bool, ok bool) {
	switch e.Kind {
	case EventIngressStarted:
		return true, true
	case EventIngressEnded:
		return false, true
	default:
		return false, false
	}
}
