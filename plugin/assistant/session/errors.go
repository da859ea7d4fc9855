package session

import "errors"

var (
	// ErrNoActiveSession indicates a handoff was requested without a live
	// session to carry over.
	ErrNoActiveSession = errors.New("no active session")

	// ErrTokenMalformed indicates the code does not match the handoff token
	// format.
	ErrTokenMalformed = errors.New("malformed handoff token")

	// ErrTokenExpired indicates the token's validity window has passed.
	ErrTokenExpired = errors.New("handoff token expired")

	// ErrTokenAlreadyUsed indicates the token was redeemed before. Handoff
	// tokens are strictly single-use.
	ErrTokenAlreadyUsed = errors.New("handoff token already used")

	// ErrInvalidChannel indicates an unknown channel name.
	ErrInvalidChannel = errors.New("invalid channel")
)
