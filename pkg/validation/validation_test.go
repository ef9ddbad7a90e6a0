package validation

import (
	"strings"
	"testing"
)

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		wantErr  bool
	}{
		{"uuid", "3f1c0b7e-8f0e-4c4e-9d55-1c2b3a4d5e6f", false},
		{"email-like", "alice@example.com", false},
		{"unicode", "zoë", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"padded", " alice", true},
		{"control char", "ali\x00ce", true},
		{"too long", strings.Repeat("a", MaxIdentityLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentity(tt.identity)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentity(%q) error = %v, wantErr %v", tt.identity, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName(""); err != nil {
		t.Errorf("empty display name should be allowed: %v", err)
	}
	if err := ValidateDisplayName("Alice Streams"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDisplayName(strings.Repeat("é", MaxDisplayNameLength+1)); err == nil {
		t.Error("expected error for long display name")
	}
}

func TestValidateIngressID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"IN_abc123", false},
		{"", true},
		{"IN abc", true},
		{strings.Repeat("a", 101), true},
	}
	for _, tt := range tests {
		if err := ValidateIngressID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateIngressID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://livekit.example.com", false},
		{"wss://livekit.example.com", false},
		{"rtmp://ingest.example.com/live", true},
		{"", true},
		{"https://", true},
	}
	for _, tt := range tests {
		if err := ValidateURL(tt.url); (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}
