package domain

type ReconcileReport struct {
	IngressesDeleted []string `json:"ingresses_deleted"`
	RoomsDeleted     []string `json:"rooms_deleted"`
	Skipped          []string `json:"skipped"`
	Failed           []string `json:"failed"`
}

func (r *ReconcileReport) Clean() bool {
	return len(r.Failed) == 0
}

// ReconcilePlan lists what a sweep would do without touching the provider.
type ReconcilePlan struct {
	Identity  BroadcasterID     `json:"identity"`
	Ingresses []IngressResource `json:"ingresses"`
	Rooms     []RoomResource    `json:"rooms"`
	Skipped   []string          `json:"skipped"`
}
