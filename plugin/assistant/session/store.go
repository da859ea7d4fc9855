package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/store/kv"
)

const (
	sessionKeyPrefix = "session:"
	handoffKeyPrefix = "handoff:"

	// handoffRecordTTL keeps redeemed and expired token records around long
	// enough to answer "already used" and "expired" precisely instead of
	// falling into the storage-miss path.
	handoffRecordTTL = 24 * time.Hour

	defaultMaxHistory = 50

	tokenGenerateRetries = 5
)

// Config holds the session store configuration.
type Config struct {
	KV kv.KV

	// AcceptUnverifiedHandoff accepts a well-formed handoff code whose side
	// record is missing (storage loss), creating an empty session instead
	// of rejecting. Deliberate availability-over-strictness trade for
	// stateless deployments; every acceptance is logged.
	AcceptUnverifiedHandoff bool

	// MaxHistory caps messages retained per session. Oldest turns drop first.
	MaxHistory int
}

type sessionStore struct {
	kv                kv.KV
	acceptUnverified  bool
	maxHistory        int
}

// NewStore creates a session store over the given KV.
func NewStore(cfg Config) Store {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &sessionStore{
		kv:               cfg.KV,
		acceptUnverified: cfg.AcceptUnverifiedHandoff,
		maxHistory:       maxHistory,
	}
}

func sessionKey(channel Channel, userID string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, channel, userID)
}

func handoffKey(token string) string {
	return handoffKeyPrefix + token
}

// live reports whether a stored session is still within its channel timeout.
// The KV layer usually expires sessions itself, but a restore from the
// durable tier can surface a stale copy.
func live(s *Session, now time.Time) bool {
	return s != nil && now.Sub(s.LastActivity) <= s.Channel.SessionTimeout()
}

func (s *sessionStore) GetOrCreate(ctx context.Context, channel Channel, userID string, lang langdetect.Language) (*Session, error) {
	if !channel.Valid() {
		return nil, ErrInvalidChannel
	}
	if !langdetect.Supported(string(lang)) {
		lang = langdetect.English
	}

	var result *Session
	err := s.kv.Update(ctx, sessionKey(channel, userID), channel.SessionTimeout(), func(current []byte, found bool) ([]byte, error) {
		now := time.Now()
		if found {
			existing := &Session{}
			if err := json.Unmarshal(current, existing); err == nil && live(existing, now) {
				result = existing
				return current, nil
			}
			// Expired or undecodable: fall through and replace silently.
		}

		result = &Session{
			ID:           shortuuid.New(),
			Channel:      channel,
			UserID:       userID,
			Language:     lang,
			StartTime:    now,
			LastActivity: now,
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create session: %w", err)
	}
	return result, nil
}

func (s *sessionStore) AddMessage(ctx context.Context, channel Channel, userID, role, content string) error {
	return s.mutate(ctx, channel, userID, func(sess *Session, now time.Time) {
		sess.Messages = append(sess.Messages, Message{Role: role, Content: content, Timestamp: now})
		if len(sess.Messages) > s.maxHistory {
			sess.Messages = sess.Messages[len(sess.Messages)-s.maxHistory:]
		}
		sess.LastActivity = now
	})
}

func (s *sessionStore) SetLanguage(ctx context.Context, channel Channel, userID string, lang langdetect.Language) error {
	if !langdetect.Supported(string(lang)) {
		return nil
	}
	return s.mutate(ctx, channel, userID, func(sess *Session, _ time.Time) {
		sess.Language = lang
	})
}

// mutate applies fn to a live session under the key's lock. A vanished or
// expired session makes the call a no-op.
func (s *sessionStore) mutate(ctx context.Context, channel Channel, userID string, fn func(*Session, time.Time)) error {
	if !channel.Valid() {
		return ErrInvalidChannel
	}
	err := s.kv.Update(ctx, sessionKey(channel, userID), channel.SessionTimeout(), func(current []byte, found bool) ([]byte, error) {
		now := time.Now()
		if !found {
			return nil, nil
		}
		sess := &Session{}
		if err := json.Unmarshal(current, sess); err != nil || !live(sess, now) {
			return nil, nil
		}
		fn(sess, now)
		return json.Marshal(sess)
	})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *sessionStore) Clear(ctx context.Context, channel Channel, userID string) error {
	return s.kv.Delete(ctx, sessionKey(channel, userID))
}

func (s *sessionStore) GenerateHandoffToken(ctx context.Context, channel Channel, userID string) (string, error) {
	raw, found, err := s.kv.Get(ctx, sessionKey(channel, userID))
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	sess := &Session{}
	if !found || json.Unmarshal(raw, sess) != nil || !live(sess, time.Now()) {
		return "", ErrNoActiveSession
	}

	for attempt := 0; attempt < tokenGenerateRetries; attempt++ {
		now := time.Now()
		token, err := newToken(channel, sess.Language, now)
		if err != nil {
			return "", err
		}
		if _, exists, _ := s.kv.Get(ctx, handoffKey(token)); exists {
			continue
		}

		record := handoffRecord{
			Token:         token,
			SourceChannel: channel,
			Language:      sess.Language,
			Messages:      sess.Messages,
			CreatedAt:     now,
			ExpiresAt:     now.Add(TokenTTL),
		}
		data, err := json.Marshal(record)
		if err != nil {
			return "", fmt.Errorf("failed to encode handoff record: %w", err)
		}
		if err := s.kv.Set(ctx, handoffKey(token), data, handoffRecordTTL); err != nil {
			return "", fmt.Errorf("failed to persist handoff record: %w", err)
		}

		slog.Info("handoff token generated",
			"channel", channel, "expires_at", record.ExpiresAt)
		return token, nil
	}
	return "", fmt.Errorf("failed to generate unique handoff token after %d attempts", tokenGenerateRetries)
}

func (s *sessionStore) RedeemHandoffToken(ctx context.Context, token string, target Channel, targetUserID string) (*Session, error) {
	if !target.Valid() {
		return nil, ErrInvalidChannel
	}
	token = canonicalToken(token)
	hint, err := decodeToken(token)
	if err != nil {
		return nil, err
	}

	var (
		carried    []Message
		language   langdetect.Language
		missing    bool
		rejectWith error
	)
	err = s.kv.Update(ctx, handoffKey(token), handoffRecordTTL, func(current []byte, found bool) ([]byte, error) {
		if !found {
			missing = true
			return nil, nil
		}
		record := handoffRecord{}
		if err := json.Unmarshal(current, &record); err != nil {
			missing = true
			return nil, nil
		}
		if record.Used {
			rejectWith = ErrTokenAlreadyUsed
			return current, nil
		}
		// Used flips permanently, on redemption and on expiry rejection
		// alike, so the record must be written even when rejecting.
		record.Used = true
		if time.Now().After(record.ExpiresAt) {
			rejectWith = ErrTokenExpired
		} else {
			carried = record.Messages
			language = record.Language
		}
		return json.Marshal(record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to redeem handoff token: %w", err)
	}
	if rejectWith != nil {
		return nil, rejectWith
	}

	if missing {
		if !s.acceptUnverified {
			return nil, ErrTokenExpired
		}
		// Storage loss: the token itself is our only evidence. decodeToken
		// already verified the format and the embedded mint time, so accept
		// it and start a fresh conversation.
		slog.Warn("handoff record missing, accepting token on format alone",
			"target_channel", target, "source_channel", hint.SourceChannel)
		language = hint.Language
	}

	now := time.Now()
	sess := &Session{
		ID:           shortuuid.New(),
		Channel:      target,
		UserID:       targetUserID,
		Language:     language,
		StartTime:    now,
		LastActivity: now,
		Messages:     carried,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey(target, targetUserID), data, target.SessionTimeout()); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	slog.Info("handoff token redeemed",
		"target_channel", target, "carried_messages", len(carried))
	return sess, nil
}

func (s *sessionStore) ReapExpired(ctx context.Context) (int, error) {
	// Scanning prunes expired session entries in the KV layer itself.
	if _, err := s.kv.Keys(ctx, sessionKeyPrefix); err != nil {
		return 0, err
	}

	// Handoff records outlive their validity window so redemption can say
	// "expired" precisely; reap only those past the record TTL grace.
	keys, err := s.kv.Keys(ctx, handoffKeyPrefix)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, key := range keys {
		raw, found, err := s.kv.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		record := handoffRecord{}
		if json.Unmarshal(raw, &record) != nil {
			continue
		}
		if time.Since(record.ExpiresAt) > handoffRecordTTL-TokenTTL {
			if err := s.kv.Delete(ctx, key); err == nil {
				reaped++
			}
		}
	}
	return reaped, nil
}
