// Package session provides per-(channel,user) conversation sessions and the
// cross-channel handoff tokens that move a conversation between channels.
package session

import (
	"context"
	"time"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
)

// Channel is one of the supported conversation transports.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelVoice  Channel = "voice"
	ChannelSMS    Channel = "sms"
	ChannelSocial Channel = "social"
)

// Valid reports whether c names a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelVoice, ChannelSMS, ChannelSocial:
		return true
	}
	return false
}

// SessionTimeout returns the channel's idle timeout. A session whose
// lastActivity is older than this is treated as absent.
func (c Channel) SessionTimeout() time.Duration {
	switch c {
	case ChannelWeb:
		return 30 * time.Minute
	case ChannelVoice:
		return 5 * time.Minute
	default:
		// SMS and social conversations resume over long gaps.
		return 24 * time.Hour
	}
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a live conversation on one channel.
type Session struct {
	ID           string                `json:"id"`
	Channel      Channel               `json:"channel"`
	UserID       string                `json:"user_id"`
	Language     langdetect.Language   `json:"language"`
	StartTime    time.Time             `json:"start_time"`
	LastActivity time.Time             `json:"last_activity"`
	Messages     []Message             `json:"messages"`
}

// Store defines the session persistence service interface. All operations
// are atomic per (channel,user) key.
type Store interface {
	// GetOrCreate returns the live session for (channel, userID), silently
	// replacing one whose idle timeout has elapsed. Timeout is a normal
	// transition, never an error.
	GetOrCreate(ctx context.Context, channel Channel, userID string, lang langdetect.Language) (*Session, error)

	// AddMessage appends a turn and bumps lastActivity. A session that
	// vanished concurrently makes this a no-op, not an error.
	AddMessage(ctx context.Context, channel Channel, userID, role, content string) error

	// SetLanguage records a detected language change on the session.
	SetLanguage(ctx context.Context, channel Channel, userID string, lang langdetect.Language) error

	// Clear removes the session.
	Clear(ctx context.Context, channel Channel, userID string) error

	// GenerateHandoffToken creates a single-use code that resumes this
	// conversation on another channel. Fails with ErrNoActiveSession when
	// no live session exists.
	GenerateHandoffToken(ctx context.Context, channel Channel, userID string) (string, error)

	// RedeemHandoffToken consumes a handoff code and materializes a session
	// on the target channel, seeded with the carried history.
	RedeemHandoffToken(ctx context.Context, token string, target Channel, targetUserID string) (*Session, error)

	// ReapExpired prunes expired sessions and tokens. Lookups self-expire,
	// so this is a housekeeping concern, not a correctness one.
	ReapExpired(ctx context.Context) (int, error)
}
