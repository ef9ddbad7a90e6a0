package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputMode(t *testing.T) {
	mode, err := ParseInputMode("RTMP")
	require.NoError(t, err)
	assert.Equal(t, InputModeRTMP, mode)

	mode, err = ParseInputMode(" whip ")
	require.NoError(t, err)
	assert.Equal(t, InputModeWHIP, mode)

	for _, bad := range []string{"", "srt", "rtmps"} {
		_, err := ParseInputMode(bad)
		assert.ErrorIs(t, err, ErrInvalidInputMode, bad)
	}
}

func TestIngressOwnedBy(t *testing.T) {
	in := IngressResource{RoomName: "user123", ParticipantIdentity: "other"}
	assert.True(t, in.OwnedBy("user123"))
	assert.True(t, in.OwnedBy("other"))
	assert.False(t, in.OwnedBy("user12"))
	assert.False(t, in.OwnedBy("user1234"))
	assert.False(t, in.OwnedBy("USER123"))
	assert.False(t, in.OwnedBy(""))

	assert.False(t, IngressResource{}.OwnedBy(""), "empty fields never match an empty identity")
}

func TestRoomOwnedBy(t *testing.T) {
	room := RoomResource{Name: "user123"}
	assert.True(t, room.OwnedBy("user123"))
	assert.False(t, room.OwnedBy("user123 "))
	assert.False(t, RoomResource{}.OwnedBy(""))
}

func TestLiveTransition(t *testing.T) {
	live, ok := (&WebhookEvent{Kind: EventIngressStarted}).LiveTransition()
	assert.True(t, ok)
	assert.True(t, live)

	live, ok = (&WebhookEvent{Kind: EventIngressEnded}).LiveTransition()
	assert.True(t, ok)
	assert.False(t, live)

	_, ok = (&WebhookEvent{Kind: "room_finished"}).LiveTransition()
	assert.False(t, ok)
}

func TestProvisionErrorKindOf(t *testing.T) {
	err := NewProvisionError(ProvisionErrLocked, "busy", ErrLockTimeout)
	wrapped := fmt.Errorf("handler: %w", err)

	assert.Equal(t, ProvisionErrLocked, ProvisionErrorKindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrLockTimeout)
	assert.Equal(t, ProvisionErrorKind(""), ProvisionErrorKindOf(errors.New("plain")))
	assert.Equal(t, "provision incomplete: no response", NewProvisionError(ProvisionErrIncomplete, "no response", nil).Error())
}

func TestStreamRecordKeys(t *testing.T) {
	rec := &StreamRecord{UserID: "alice"}
	assert.False(t, rec.HasCredentials())
	assert.Equal(t, StreamKeys{}, rec.Keys())

	id, url, key := "IN_1", "rtmp://x", "sk"
	rec.IngressID, rec.ServerURL, rec.StreamKey, rec.IsLive = &id, &url, &key, true
	assert.True(t, rec.HasCredentials())
	assert.Equal(t, StreamKeys{IngressID: "IN_1", ServerURL: "rtmp://x", StreamKey: "sk", IsLive: true}, rec.Keys())

	clone := rec.Clone()
	*clone.StreamKey = "changed"
	assert.Equal(t, "sk", *rec.StreamKey)
}
