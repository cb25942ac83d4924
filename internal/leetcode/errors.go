package leetcode

import (
	"errors"
	"fmt"
)

// Outcome classifies why a statistics lookup did not produce counts.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeMalformed
	OutcomeBadStatus
	OutcomeRateLimited
	OutcomeNetworkFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeBadStatus:
		return "bad_status"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrUserNotFound is wrapped by lookups for usernames LeetCode does not know.
var ErrUserNotFound = errors.New("leetcode user not found")

// FetchError describes a failed lookup for one username.
type FetchError struct {
	Username string
	Outcome  Outcome
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("leetcode %s: %s: %v", e.Username, e.Outcome, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OutcomeOf reports the Outcome carried by err, OutcomeSuccess for nil and
// OutcomeNetworkFailure for errors that are not a *FetchError.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Outcome
	}
	return OutcomeNetworkFailure
}
