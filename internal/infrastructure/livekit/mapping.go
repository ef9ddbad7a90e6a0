package livekit

import (
	"fmt"
	"time"

	"streamgate/internal/core/domain"

	lk "github.com/livekit/protocol/livekit"
)

func inputType(mode domain.InputMode) (lk.IngressInput, error) {
	switch mode {
	case domain.InputModeRTMP:
		return lk.IngressInput_RTMP_INPUT, nil
	case domain.InputModeWHIP:
		return lk.IngressInput_WHIP_INPUT, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidInputMode, mode)
	}
}

func inputMode(t lk.IngressInput) domain.InputMode {
	switch t {
	case lk.IngressInput_RTMP_INPUT:
		return domain.InputModeRTMP
	case lk.IngressInput_WHIP_INPUT:
		return domain.InputModeWHIP
	default:
		return domain.InputMode(t.String())
	}
}

func trackSource(s domain.TrackSource) lk.TrackSource {
	switch s {
	case domain.TrackSourceCamera:
		return lk.TrackSource_CAMERA
	case domain.TrackSourceMicrophone:
		return lk.TrackSource_MICROPHONE
	default:
		return lk.TrackSource_UNKNOWN
	}
}

func toCreateRequest(opts domain.CreateIngressOptions) (*lk.CreateIngressRequest, error) {
	in, err := inputType(opts.InputMode)
	if err != nil {
		return nil, err
	}

	req := &lk.CreateIngressRequest{
		InputType:           in,
		Name:                opts.Name,
		RoomName:            opts.RoomName,
		ParticipantIdentity: opts.ParticipantIdentity,
		ParticipantName:     opts.ParticipantName,
	}
	if opts.BypassTranscoding {
		// Older servers only honour the deprecated flag.
		req.BypassTranscoding = true
		enable := false
		req.EnableTranscoding = &enable
	}

	if v := opts.Video; v != nil {
		preset, ok := lk.IngressVideoEncodingPreset_value[v.Preset]
		if !ok {
			return nil, fmt.Errorf("unknown video preset %q", v.Preset)
		}
		req.Video = &lk.IngressVideoOptions{
			Source: trackSource(v.Source),
			EncodingOptions: &lk.IngressVideoOptions_Preset{
				Preset: lk.IngressVideoEncodingPreset(preset),
			},
		}
	}
	if a := opts.Audio; a != nil {
		preset, ok := lk.IngressAudioEncodingPreset_value[a.Preset]
		if !ok {
			return nil, fmt.Errorf("unknown audio preset %q", a.Preset)
		}
		req.Audio = &lk.IngressAudioOptions{
			Source: trackSource(a.Source),
			EncodingOptions: &lk.IngressAudioOptions_Preset{
				Preset: lk.IngressAudioEncodingPreset(preset),
			},
		}
	}
	return req, nil
}

func fromIngressInfo(info *lk.IngressInfo) *domain.IngressResource {
	if info == nil {
		return nil
	}
	return &domain.IngressResource{
		IngressID:           info.IngressId,
		Name:                info.Name,
		RoomName:            info.RoomName,
		ParticipantIdentity: info.ParticipantIdentity,
		ParticipantName:     info.ParticipantName,
		InputMode:           inputMode(info.InputType),
		URL:                 info.Url,
		StreamKey:           info.StreamKey,
	}
}

func fromRoom(room *lk.Room) domain.RoomResource {
	return domain.RoomResource{
		Name:            room.Name,
		NumParticipants: room.NumParticipants,
		CreatedAt:       time.Unix(room.CreationTime, 0).UTC(),
	}
}

func fromWebhookEvent(ev *lk.WebhookEvent) *domain.WebhookEvent {
	out := &domain.WebhookEvent{
		ID:        ev.Id,
		Kind:      domain.EventKind(ev.Event),
		CreatedAt: time.Unix(ev.CreatedAt, 0).UTC(),
	}
	if info := ev.IngressInfo; info != nil {
		out.IngressID = info.IngressId
		out.RoomName = info.RoomName
		out.ParticipantIdentity = info.ParticipantIdentity
	}
	return out
}
