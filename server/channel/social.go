package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"
)

// SocialPlatform identifies a graph-API messaging surface.
type SocialPlatform string

const (
	PlatformMessenger SocialPlatform = "messenger"
	PlatformInstagram SocialPlatform = "instagram"
	PlatformWhatsApp  SocialPlatform = "whatsapp"
)

// SocialEvent is one normalized inbound message from any platform shape.
type SocialEvent struct {
	Platform  SocialPlatform
	SenderID  string
	MessageID string
	Text      string
	Timestamp time.Time
}

// socialWebhook covers both graph webhook shapes: the direct messaging
// array style (Messenger, Instagram) and the business "changes" style
// (WhatsApp). Unknown fields are ignored.
type socialWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Timestamp int64 `json:"timestamp"`
			Message   struct {
				MID    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseSocialInbound normalizes a webhook body into canonical events.
// Echoed/outgoing messages and non-text payloads are dropped. A malformed
// body yields zero events, never an error the platform would retry on.
func ParseSocialInbound(body []byte) []SocialEvent {
	var payload socialWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("failed to decode social webhook", "error", err)
		return nil
	}

	platform := PlatformMessenger
	switch payload.Object {
	case "instagram":
		platform = PlatformInstagram
	case "whatsapp_business_account":
		platform = PlatformWhatsApp
	}

	var events []SocialEvent
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			if m.Message.IsEcho || m.Message.Text == "" {
				continue
			}
			events = append(events, SocialEvent{
				Platform:  platform,
				SenderID:  m.Sender.ID,
				MessageID: m.Message.MID,
				Text:      m.Message.Text,
				Timestamp: time.UnixMilli(m.Timestamp),
			})
		}
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				if m.Text.Body == "" {
					continue
				}
				events = append(events, SocialEvent{
					Platform:  PlatformWhatsApp,
					SenderID:  m.From,
					MessageID: m.ID,
					Text:      m.Text.Body,
					Timestamp: parseUnixSeconds(m.Timestamp),
				})
			}
		}
	}
	return events
}

func parseUnixSeconds(s string) time.Time {
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

// VerifySocialWebhook answers the platform's subscription challenge. The
// verification is a plain token-equality check against the configured
// shared secret.
func VerifySocialWebhook(mode, token, challenge, expected string) (string, bool) {
	if mode == "subscribe" && token != "" && token == expected {
		return challenge, true
	}
	return "", false
}

// SocialSender delivers outbound messages to the graph send APIs.
type SocialSender struct {
	client        *http.Client
	graphBaseURL  string
	phoneNumberID string
	sem           *semaphore.Weighted
}

// SocialSenderConfig configures the sender.
type SocialSenderConfig struct {
	AccessToken string
	// PhoneNumberID is the WhatsApp business phone number id.
	PhoneNumberID string
	// GraphBaseURL overrides the graph endpoint, for tests.
	GraphBaseURL string
	// MaxConcurrentSends bounds parallel outbound calls.
	MaxConcurrentSends int64
}

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// NewSocialSender creates a sender authenticated with the shared page
// access token.
func NewSocialSender(cfg SocialSenderConfig) *SocialSender {
	baseURL := cfg.GraphBaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	maxSends := cfg.MaxConcurrentSends
	if maxSends <= 0 {
		maxSends = 8
	}
	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.AccessToken},
	))
	client.Timeout = 10 * time.Second
	return &SocialSender{
		client:        client,
		graphBaseURL:  baseURL,
		phoneNumberID: cfg.PhoneNumberID,
		sem:           semaphore.NewWeighted(maxSends),
	}
}

// Send delivers text to a recipient, branching on platform for the correct
// endpoint and payload shape.
func (s *SocialSender) Send(ctx context.Context, platform SocialPlatform, recipientID, text string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "send slot unavailable")
	}
	defer s.sem.Release(1)

	var endpoint string
	var payload any
	switch platform {
	case PlatformWhatsApp:
		endpoint = fmt.Sprintf("%s/%s/messages", s.graphBaseURL, s.phoneNumberID)
		payload = map[string]any{
			"messaging_product": "whatsapp",
			"to":                recipientID,
			"type":              "text",
			"text":              map[string]string{"body": text},
		}
	default:
		endpoint = s.graphBaseURL + "/me/messages"
		payload = map[string]any{
			"recipient": map[string]string{"id": recipientID},
			"message":   map[string]string{"text": text},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode send payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build send request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send %s message", platform)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("%s send returned status %d", platform, resp.StatusCode)
	}
	return nil
}
