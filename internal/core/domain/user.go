package domain

import "strings"

// BroadcasterID is the stable identity used as room name and participant
// identity for every resource provisioned on the broadcaster's behalf.
type BroadcasterID string

func (id BroadcasterID) String() string {
	return string(id)
}

func (id BroadcasterID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

type Broadcaster struct {
	ID          BroadcasterID
	DisplayName string
}

// Label is the human readable name, falling back to the identity.
func (b Broadcaster) Label() string {
	if strings.TrimSpace(b.DisplayName) != "" {
		return b.DisplayName
	}
	return string(b.ID)
}
