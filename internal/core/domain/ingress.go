package domain

import (
	"fmt"
	"strings"
	"time"
)

type InputMode string

const (
	InputModeRTMP InputMode = "rtmp"
	InputModeWHIP InputMode = "whip"
)

func ParseInputMode(s string) (InputMode, error) {
	switch InputMode(strings.ToLower(strings.TrimSpace(s))) {
	case InputModeRTMP:
		return InputModeRTMP, nil
	case InputModeWHIP:
		return InputModeWHIP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidInputMode, s)
	}
}

type TrackSource string

const (
	TrackSourceCamera     TrackSource = "camera"
	TrackSourceMicrophone TrackSource = "microphone"
)

const (
	DefaultVideoPreset = "H264_1080P_30FPS_3_LAYERS"
	DefaultAudioPreset = "OPUS_STEREO_96KBPS"
)

type VideoOptions struct {
	Source TrackSource
	Preset string
}

type AudioOptions struct {
	Source TrackSource
	Preset string
}

type CreateIngressOptions struct {
	InputMode           InputMode
	Name                string
	RoomName            string
	ParticipantIdentity string
	ParticipantName     string
	BypassTranscoding   bool
	Video               *VideoOptions
	Audio               *AudioOptions
}

type IngressResource struct {
	IngressID           string
	Name                string
	RoomName            string
	ParticipantIdentity string
	ParticipantName     string
	InputMode           InputMode
	URL                 string
	StreamKey           string
}

// OwnedBy reports whether the ingress is scoped to identity. Only exact
// matches count; prefixes and case variants belong to someone else.
func (i IngressResource) OwnedBy(identity BroadcasterID) bool {
	id := string(identity)
	if id == "" {
		return false
	}
	return i.RoomName == id || i.ParticipantIdentity == id
}

type RoomResource struct {
	Name            string
	NumParticipants uint32
	CreatedAt       time.Time
}

func (r RoomResource) OwnedBy(identity BroadcasterID) bool {
	return identity != "" && r.Name == string(identity)
}

type IngressFilter struct {
	RoomName string
}

type Credentials struct {
	IngressID string `json:"ingress_id"`
	ServerURL string `json:"server_url"`
	StreamKey string `json:"stream_key"`
}
