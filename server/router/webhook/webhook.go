// Package webhook exposes the channel provider endpoints: voice and SMS
// form posts and the social graph subscription. Providers retry on non-2xx
// responses, so every receive handler acknowledges with 200 even when
// processing fails. Failures surface in the logs, not to the provider.
package webhook

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/plugin/assistant"
	"github.com/solmari/civassist/plugin/assistant/workflow"
	"github.com/solmari/civassist/server/channel"
	"github.com/solmari/civassist/server/middleware"
)

// WebhookService handles inbound channel webhooks.
type WebhookService struct {
	Profile *profile.Profile
	Engine  *assistant.Engine
	Sender  *channel.SocialSender

	limiter *middleware.RateLimiter
}

// NewWebhookService creates the webhook handlers. Sender may be nil when no
// social access token is configured; social replies are then dropped.
func NewWebhookService(profile *profile.Profile, engine *assistant.Engine, sender *channel.SocialSender) *WebhookService {
	return &WebhookService{
		Profile: profile,
		Engine:  engine,
		Sender:  sender,
		limiter: middleware.NewRateLimiter(),
	}
}

// Register mounts the webhook routes on the echo server.
func (s *WebhookService) Register(echoServer *echo.Echo) {
	g := echoServer.Group("/webhooks", s.limiter.Middleware())
	g.GET("/social", s.verifySocial)
	g.POST("/social", s.receiveSocial)
	g.POST("/sms", s.receiveSMS)
	g.POST("/voice", s.receiveVoiceCall)
	g.POST("/voice/language", s.receiveVoiceLanguage)
	g.POST("/voice/turn", s.receiveVoiceTurn)
}

// renderOptions flattens a workflow option list into plain text, one label
// per line. Labels are rendered verbatim because option selection matches on
// the label text, not a position.
func renderOptions(options []workflow.Option) string {
	if len(options) == 0 {
		return ""
	}
	var b strings.Builder
	for i, opt := range options {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(opt.Label)
	}
	return b.String()
}

// replyText joins a reply message with its options for text channels.
func replyText(reply *assistant.Reply) string {
	text := channel.PlainText(reply.Message)
	if opts := renderOptions(reply.Options); opts != "" {
		text += "\n" + opts
	}
	return text
}
