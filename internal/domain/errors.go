package domain

import "errors"

var (
	// ErrContentUnavailable means the curriculum pool is too small to build a challenge.
	ErrContentUnavailable = errors.New("not enough content to generate questions")
	// ErrQuotaExceeded means a free creator hit the daily challenge limit.
	ErrQuotaExceeded = errors.New("daily challenge creation limit reached")
	// ErrChallengeNotFound indicates an unknown challenge code.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrCodeTaken signals a challenge code collision on insert.
	ErrCodeTaken = errors.New("challenge code already taken")
	// ErrChallengeInactive is returned when attempting a deactivated challenge.
	ErrChallengeInactive = errors.New("challenge is no longer active")
	// ErrChallengeExpired is returned when attempting a challenge past its expiry.
	ErrChallengeExpired = errors.New("challenge has expired")
	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptCompleted guards the one-way in-progress -> completed transition.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrUnknownLanguage indicates a language code the catalog cannot resolve.
	ErrUnknownLanguage = errors.New("unknown language code")
)
