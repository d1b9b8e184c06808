package upstream

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoAccounts      = errors.New("no cloudflare accounts configured")
	ErrTimeout         = errors.New("cloudflare api timeout")
)

const (
	defaultErrorMessage  = "Cloudflare API error"
	defaultErrorDetail   = "Unknown error"
	networkFailureStatus = 502
)

// Error is a failed upstream call, normalized to a status code and two
// human readable strings.
type Error struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cloudflare api [%d]: %s: %s", e.StatusCode, e.Message, e.Detail)
}

type VerificationReason string

const (
	ReasonInvalidToken           VerificationReason = "invalid_token"
	ReasonInsufficientPermission VerificationReason = "insufficient_permission"
	ReasonWrongTokenType         VerificationReason = "wrong_token_type"
	ReasonUpstream               VerificationReason = "upstream"
	ReasonTimeout                VerificationReason = "timeout"
)

// VerificationError explains why a candidate token was not accepted.
type VerificationError struct {
	Reason     VerificationReason
	StatusCode int
	Err        error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token verification failed (%s): %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("token verification failed (%s)", e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ClientSide reports whether the token itself is at fault, as opposed to
// the upstream api being unavailable.
func (e *VerificationError) ClientSide() bool {
	switch e.Reason {
	case ReasonInvalidToken, ReasonInsufficientPermission, ReasonWrongTokenType:
		return true
	}
	return false
}
