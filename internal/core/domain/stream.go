package domain

import (
	"time"
)

// StreamRecord is the persisted ingest state of one broadcaster. Credential
// fields stay nil until the first successful provision.
type StreamRecord struct {
	UserID    BroadcasterID
	IngressID *string
	ServerURL *string
	StreamKey *string
	IsLive    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StreamKeys is the read view served to the broadcaster's dashboard.
type StreamKeys struct {
	IngressID string `json:"ingress_id"`
	ServerURL string `json:"server_url"`
	StreamKey string `json:"stream_key"`
	IsLive    bool   `json:"is_live"`
}

func (r *StreamRecord) HasCredentials() bool {
	return r.IngressID != nil && r.ServerURL != nil && r.StreamKey != nil
}

func (r *StreamRecord) Keys() StreamKeys {
	keys := StreamKeys{IsLive: r.IsLive}
	if r.IngressID != nil {
		keys.IngressID = *r.IngressID
	}
	if r.ServerURL != nil {
		keys.ServerURL = *r.ServerURL
	}
	if r.StreamKey != nil {
		keys.StreamKey = *r.StreamKey
	}
	return keys
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *StreamRecord) Clone() *StreamRecord {
	c := *r
	c.IngressID = cloneString(r.IngressID)
	c.ServerURL = cloneString(r.ServerURL)
	c.StreamKey = cloneString(r.StreamKey)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
