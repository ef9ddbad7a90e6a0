package livekit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"streamgate/internal/core/domain"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/webhook"
)

// WebhookVerifier checks the signed Authorization token against the body
// hash and decodes the event.
type WebhookVerifier struct {
	keys auth.KeyProvider
}

func NewWebhookVerifier(apiKey, apiSecret string) *WebhookVerifier {
	return &WebhookVerifier{keys: auth.NewSimpleKeyProvider(apiKey, apiSecret)}
}

func (v *WebhookVerifier) VerifyAndParse(ctx context.Context, body []byte, authorization string) (*domain.WebhookEvent, error) {
	if authorization == "" {
		return nil, domain.ErrWebhookUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookInvalid, err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/webhook+json")

	event, err := webhook.ReceiveWebhookEvent(req, v.keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookInvalid, err)
	}
	return fromWebhookEvent(event), nil
}
