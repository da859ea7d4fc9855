package session

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
)

// Handoff tokens are six characters from an alphabet chosen to survive being
// read over the phone: no B/I/L/O/S/Z and no lookalike digits. The first
// five characters reversibly encode version, source channel, language and the
// mint minute, so a token stays decodable and its validity window stays
// checkable even when its side record is lost.
const tokenAlphabet = "ACDEFGHJKMNPRTUVWXY34679"

const (
	// TokenLength is the fixed handoff code length.
	TokenLength = 6
	// TokenTTL is the validity window from creation.
	TokenTTL = 10 * time.Minute

	tokenVersionChar = 'A' // format version 1

	// The mint time is encoded as two base-24 characters holding the unix
	// minute modulo tokenBucketCount. The cycle (9.6h) dwarfs TokenTTL, so
	// within the window a bucket identifies the mint minute unambiguously.
	tokenTimeChars   = 2
	tokenBucketWidth = time.Minute
	tokenBucketCount = 24 * 24
)

var channelCodes = map[Channel]byte{
	ChannelWeb:    'W',
	ChannelVoice:  'V',
	ChannelSMS:    'M',
	ChannelSocial: 'G',
}

var languageCodes = map[langdetect.Language]byte{
	langdetect.English: 'E',
	langdetect.Spanish: 'A',
	langdetect.Creole:  'H',
}

// handoffRecord is the persisted side record for a token. It carries the
// full message history so the target channel restores continuity.
type handoffRecord struct {
	Token         string              `json:"token"`
	SourceChannel Channel             `json:"source_channel"`
	Language      langdetect.Language `json:"language"`
	Messages      []Message           `json:"messages"`
	CreatedAt     time.Time           `json:"created_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
	Used          bool                `json:"used"`
}

func tokenBucket(t time.Time) int {
	return int(t.Unix()/int64(tokenBucketWidth/time.Second)) % tokenBucketCount
}

// newToken builds a fresh handoff code for the given source session, minted
// at the given time.
func newToken(channel Channel, lang langdetect.Language, now time.Time) (string, error) {
	chCode, ok := channelCodes[channel]
	if !ok {
		return "", ErrInvalidChannel
	}
	langCode, ok := languageCodes[lang]
	if !ok {
		langCode = languageCodes[langdetect.English]
	}

	bucket := tokenBucket(now)
	t0 := tokenAlphabet[bucket/len(tokenAlphabet)]
	t1 := tokenAlphabet[bucket%len(tokenAlphabet)]

	suffix := make([]byte, TokenLength-3-tokenTimeChars)
	random := make([]byte, len(suffix))
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	for i, b := range random {
		suffix[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}

	return string([]byte{tokenVersionChar, chCode, langCode, t0, t1}) + string(suffix), nil
}

// tokenHint is the state recoverable from a bare token without its record.
type tokenHint struct {
	SourceChannel Channel
	Language      langdetect.Language
}

// decodeToken validates the lexical token format, recovers the embedded hint
// and checks the embedded mint time against TokenTTL. Returns
// ErrTokenMalformed for anything that could not have been produced by
// newToken and ErrTokenExpired for a well-formed but stale code.
func decodeToken(token string) (tokenHint, error) {
	return decodeTokenAt(token, time.Now())
}

func decodeTokenAt(token string, now time.Time) (tokenHint, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if len(token) != TokenLength || token[0] != tokenVersionChar {
		return tokenHint{}, ErrTokenMalformed
	}

	var hint tokenHint
	found := false
	for ch, code := range channelCodes {
		if code == token[1] {
			hint.SourceChannel, found = ch, true
			break
		}
	}
	if !found {
		return tokenHint{}, ErrTokenMalformed
	}

	found = false
	for lang, code := range languageCodes {
		if code == token[2] {
			hint.Language, found = lang, true
			break
		}
	}
	if !found {
		return tokenHint{}, ErrTokenMalformed
	}

	for i := 3; i < TokenLength; i++ {
		if !strings.ContainsRune(tokenAlphabet, rune(token[i])) {
			return tokenHint{}, ErrTokenMalformed
		}
	}

	bucket := strings.IndexByte(tokenAlphabet, token[3])*len(tokenAlphabet) +
		strings.IndexByte(tokenAlphabet, token[4])
	age := (tokenBucket(now) - bucket + tokenBucketCount) % tokenBucketCount
	if age == tokenBucketCount-1 {
		// A bucket one step in the future is clock skew, not age.
		age = 0
	}
	if time.Duration(age)*tokenBucketWidth > TokenTTL {
		return tokenHint{}, ErrTokenExpired
	}
	return hint, nil
}

// canonicalToken normalizes user-entered codes (spoken tokens come back with
// spaces, dashes and lowercase).
func canonicalToken(token string) string {
	token = strings.ToUpper(token)
	token = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, token)
	return token
}
