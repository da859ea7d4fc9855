package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSocialInbound_MessagingShape(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"messaging": [
				{
					"sender": {"id": "user-1"},
					"timestamp": 1756500000000,
					"message": {"mid": "m1", "text": "When is trash pickup?"}
				},
				{
					"sender": {"id": "page-1"},
					"timestamp": 1756500001000,
					"message": {"mid": "m2", "text": "Tuesdays.", "is_echo": true}
				}
			]
		}]
	}`)

	events := ParseSocialInbound(body)
	require.Len(t, events, 1)
	require.Equal(t, PlatformMessenger, events[0].Platform)
	require.Equal(t, "user-1", events[0].SenderID)
	require.Equal(t, "m1", events[0].MessageID)
	require.Equal(t, "When is trash pickup?", events[0].Text)
	require.Equal(t, int64(1756500000), events[0].Timestamp.Unix())
}

func TestParseSocialInbound_InstagramObject(t *testing.T) {
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"messaging": [{
				"sender": {"id": "ig-user"},
				"timestamp": 1756500000000,
				"message": {"mid": "m3", "text": "hola"}
			}]
		}]
	}`)

	events := ParseSocialInbound(body)
	require.Len(t, events, 1)
	require.Equal(t, PlatformInstagram, events[0].Platform)
}

func TestParseSocialInbound_BusinessShape(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [
				{
					"field": "messages",
					"value": {
						"messages": [{
							"from": "13055551234",
							"id": "wamid.1",
							"timestamp": "1756500000",
							"text": {"body": "I need to report a pothole"}
						}]
					}
				},
				{"field": "statuses", "value": {}}
			]
		}]
	}`)

	events := ParseSocialInbound(body)
	require.Len(t, events, 1)
	require.Equal(t, PlatformWhatsApp, events[0].Platform)
	require.Equal(t, "13055551234", events[0].SenderID)
	require.Equal(t, "I need to report a pothole", events[0].Text)
	require.Equal(t, int64(1756500000), events[0].Timestamp.Unix())
}

func TestParseSocialInbound_Malformed(t *testing.T) {
	require.Empty(t, ParseSocialInbound([]byte("not json")))
	require.Empty(t, ParseSocialInbound([]byte(`{"object": "page", "entry": []}`)))
}

func TestParseSocialInbound_NonTextDropped(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"messaging": [{
				"sender": {"id": "user-1"},
				"timestamp": 1756500000000,
				"message": {"mid": "m4"}
			}]
		}]
	}`)
	require.Empty(t, ParseSocialInbound(body))
}

func TestVerifySocialWebhook(t *testing.T) {
	challenge, ok := VerifySocialWebhook("subscribe", "secret", "1234", "secret")
	require.True(t, ok)
	require.Equal(t, "1234", challenge)

	_, ok = VerifySocialWebhook("subscribe", "wrong", "1234", "secret")
	require.False(t, ok)

	_, ok = VerifySocialWebhook("unsubscribe", "secret", "1234", "secret")
	require.False(t, ok)

	_, ok = VerifySocialWebhook("subscribe", "", "1234", "")
	require.False(t, ok)
}

func TestSocialSender_Send(t *testing.T) {
	type captured struct {
		path    string
		auth    string
		payload map[string]any
	}
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSocialSender(SocialSenderConfig{
		AccessToken:   "tok-123",
		PhoneNumberID: "555000",
		GraphBaseURL:  srv.URL,
	})

	ctx := context.Background()
	require.NoError(t, sender.Send(ctx, PlatformMessenger, "user-1", "Tuesdays."))
	require.Equal(t, "/me/messages", got.path)
	require.Equal(t, "Bearer tok-123", got.auth)
	require.Equal(t, "user-1", got.payload["recipient"].(map[string]any)["id"])
	require.Equal(t, "Tuesdays.", got.payload["message"].(map[string]any)["text"])

	require.NoError(t, sender.Send(ctx, PlatformWhatsApp, "13055551234", "Got it."))
	require.Equal(t, "/555000/messages", got.path)
	require.Equal(t, "whatsapp", got.payload["messaging_product"])
	require.Equal(t, "13055551234", got.payload["to"])
	require.Equal(t, "Got it.", got.payload["text"].(map[string]any)["body"])
}

func TestSocialSender_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sender := NewSocialSender(SocialSenderConfig{AccessToken: "tok", GraphBaseURL: srv.URL})
	err := sender.Send(context.Background(), PlatformMessenger, "user-1", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
